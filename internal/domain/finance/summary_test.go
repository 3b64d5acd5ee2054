package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

func sample() []Transaction {
	return []Transaction{
		{ID: "1", Kind: KindIncome, Category: "sale", Amount: 100.10, Method: MethodCash, Date: at(9)},
		{ID: "2", Kind: KindIncome, Category: "service", Amount: 50.20, Method: MethodCard, Date: at(10)},
		{ID: "3", Kind: KindExpense, Category: "rent", Amount: 30, Method: MethodCash, Date: at(11)},
		{ID: "4", Kind: KindExpense, Category: "supplies", Amount: 5.05, Method: MethodTransfer, Date: at(12)},
		{ID: "5", Kind: KindIncome, Category: "sale", Amount: 999, Method: MethodCash, Date: at(30)}, // следующий день
	}
}

func TestSummarizePeriod(t *testing.T) {
	s := Summarize(sample(), day, day.AddDate(0, 0, 1))

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 150.30, s.Revenue)
	assert.Equal(t, 35.05, s.Expense)
	assert.Equal(t, 115.25, s.Profit)
	assert.Equal(t, 100.10, s.ByMethod[MethodCash])
	assert.Equal(t, 50.20, s.ByMethod[MethodCard])
	assert.Equal(t, -30.0, s.ByCategory["rent"])
	assert.Equal(t, []string{"sale", "service", "supplies", "rent"}, s.Categories())
}

func TestSummarizeUnbounded(t *testing.T) {
	s := Summarize(sample(), time.Time{}, time.Time{})
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 1149.30, s.Revenue)
}

func TestCloseCash(t *testing.T) {
	c := CloseCash(200, 265, sample(), at(20))

	assert.Equal(t, day, c.Date)
	assert.Equal(t, 100.10, c.CashIn)
	assert.Equal(t, 30.0, c.CashOut)
	assert.Equal(t, 270.10, c.Expected)
	assert.Equal(t, -5.10, c.Difference)
}
