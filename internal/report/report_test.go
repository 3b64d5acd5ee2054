package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Spok95/storedesk/internal/domain/catalog"
	"github.com/Spok95/storedesk/internal/domain/finance"
)

func TestFinance(t *testing.T) {
	day := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	txs := []finance.Transaction{
		{ID: "t1", Kind: finance.KindIncome, Category: "sale", Description: "Cola", Amount: 50, Method: finance.MethodCash, Date: day},
		{ID: "t2", Kind: finance.KindExpense, Category: "rent", Amount: 20, Method: finance.MethodTransfer, Date: day.Add(time.Hour)},
		{ID: "t3", Kind: finance.KindIncome, Category: "sale", Amount: 999, Method: finance.MethodCard, Date: day.AddDate(0, 1, 0)},
	}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	s := finance.Summarize(txs, from, to)

	data, err := Finance(s, txs)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Сводка", "Транзакции"}, f.GetSheetList())
	profit, err := f.GetCellValue("Сводка", "B5")
	require.NoError(t, err)
	assert.Equal(t, "30", profit)

	rows, err := f.GetRows("Транзакции")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Cola", rows[1][3])
}

func TestStock(t *testing.T) {
	data, err := Stock([]catalog.Product{
		{ID: "p1", Name: "Cola", Stock: 1, MinStock: 5},
		{ID: "p2", Name: "Chips", Stock: 10, MinStock: 5},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "да", rows[1][7])
	assert.Len(t, rows[2], 7)
}
