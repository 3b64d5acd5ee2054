// Package report строит xlsx-выгрузки для отправки в чат.
package report

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/storedesk/internal/domain/catalog"
	"github.com/Spok95/storedesk/internal/domain/finance"
)

const dateLayout = "02.01.2006 15:04"

// Finance — сводка за период и список транзакций, попавших в него.
func Finance(s finance.Summary, txs []finance.Transaction) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summary := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(summary, "Сводка"); err != nil {
		return nil, err
	}
	summary = "Сводка"

	rows := [][]interface{}{
		{"Период", period(s)},
		{"Операций", s.Count},
		{"Доход", s.Revenue},
		{"Расход", s.Expense},
		{"Прибыль", s.Profit},
		{},
		{"Способ оплаты", "Доход"},
	}
	methods := make([]string, 0, len(s.ByMethod))
	for m := range s.ByMethod {
		methods = append(methods, string(m))
	}
	sort.Strings(methods)
	for _, m := range methods {
		rows = append(rows, []interface{}{m, s.ByMethod[finance.Method(m)]})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Категория", "Сумма"})
	for _, c := range s.Categories() {
		rows = append(rows, []interface{}{c, s.ByCategory[c]})
	}
	if err := writeRows(f, summary, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet("Транзакции"); err != nil {
		return nil, err
	}
	txRows := [][]interface{}{{"Дата", "Тип", "Категория", "Описание", "Способ", "Сумма"}}
	for _, t := range txs {
		if !s.Contains(t.Date) {
			continue
		}
		txRows = append(txRows, []interface{}{
			t.Date.Format(dateLayout), string(t.Kind), t.Category, t.Description, string(t.Method), t.Amount,
		})
	}
	if err := writeRows(f, "Транзакции", txRows); err != nil {
		return nil, err
	}
	return toBytes(f)
}

// Stock — остатки товаров; товары ниже минимума помечены.
func Stock(products []catalog.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows := [][]interface{}{{"id", "Название", "Артикул", "Категория", "Цена", "Остаток", "Минимум", "Мало"}}
	for _, p := range products {
		low := ""
		if p.LowStock() {
			low = "да"
		}
		rows = append(rows, []interface{}{p.ID, p.Name, p.SKU, p.Category, p.Price, p.Stock, p.MinStock, low})
	}
	if err := writeRows(f, sheet, rows); err != nil {
		return nil, err
	}
	return toBytes(f)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("report: row %d: %w", i+1, err)
		}
	}
	return nil
}

func toBytes(f *excelize.File) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func period(s finance.Summary) string {
	from, to := "…", "…"
	if !s.From.IsZero() {
		from = s.From.Format("02.01.2006")
	}
	if !s.To.IsZero() {
		to = s.To.Format("02.01.2006")
	}
	return from + " - " + to
}
