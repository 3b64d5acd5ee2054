package finance

import (
	"math"
	"sort"
	"time"
)

type Summary struct {
	From       time.Time
	To         time.Time
	Count      int
	Revenue    float64
	Expense    float64
	Profit     float64
	ByMethod   map[Method]float64 // только доходы
	ByCategory map[string]float64 // доходы со знаком +, расходы со знаком -
}

// Summarize считает выручку, расходы и прибыль по транзакциям с датой в [from, to).
// Нулевые from/to не ограничивают период.
func Summarize(txs []Transaction, from, to time.Time) Summary {
	s := Summary{
		From:       from,
		To:         to,
		ByMethod:   make(map[Method]float64),
		ByCategory: make(map[string]float64),
	}
	for _, t := range txs {
		if !inPeriod(t.Date, from, to) {
			continue
		}
		s.Count++
		switch t.Kind {
		case KindIncome:
			s.Revenue += t.Amount
			s.ByMethod[t.Method] += t.Amount
			s.ByCategory[t.Category] += t.Amount
		case KindExpense:
			s.Expense += t.Amount
			s.ByCategory[t.Category] -= t.Amount
		}
	}
	s.Revenue = round2(s.Revenue)
	s.Expense = round2(s.Expense)
	s.Profit = round2(s.Revenue - s.Expense)
	for k, v := range s.ByMethod {
		s.ByMethod[k] = round2(v)
	}
	for k, v := range s.ByCategory {
		s.ByCategory[k] = round2(v)
	}
	return s
}

// Contains — попадает ли момент t в период сводки.
func (s Summary) Contains(t time.Time) bool { return inPeriod(t, s.From, s.To) }

// Categories — категории в порядке убывания суммы (для отчётов).
func (s Summary) Categories() []string {
	out := make([]string, 0, len(s.ByCategory))
	for k := range s.ByCategory {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.ByCategory[out[i]] == s.ByCategory[out[j]] {
			return out[i] < out[j]
		}
		return s.ByCategory[out[i]] > s.ByCategory[out[j]]
	})
	return out
}

// CloseCash считает закрытие кассы за календарный день day (в его часовом поясе):
// учитываются только наличные операции.
func CloseCash(opening, counted float64, txs []Transaction, day time.Time) CashClosing {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	c := CashClosing{Date: start, Opening: round2(opening), Counted: round2(counted)}
	for _, t := range txs {
		if t.Method != MethodCash || !inPeriod(t.Date, start, end) {
			continue
		}
		switch t.Kind {
		case KindIncome:
			c.CashIn += t.Amount
		case KindExpense:
			c.CashOut += t.Amount
		}
	}
	c.CashIn = round2(c.CashIn)
	c.CashOut = round2(c.CashOut)
	c.Expected = round2(c.Opening + c.CashIn - c.CashOut)
	c.Difference = round2(c.Counted - c.Expected)
	return c
}

func inPeriod(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
