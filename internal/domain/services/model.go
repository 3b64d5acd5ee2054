package services

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusDelivered  Status = "delivered"
	StatusCanceled   Status = "canceled"
)

// ServiceOrder — заказ на ремонт/обслуживание.
type ServiceOrder struct {
	ID            string     `json:"id"`
	StoreID       string     `json:"store_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	Device        string     `json:"device"`
	Problem       string     `json:"problem"`
	Status        Status     `json:"status"`
	Price         float64    `json:"price"`
	CreatedAt     time.Time  `json:"created_at"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	LastUpdate    time.Time  `json:"last_update"`
}

func (o ServiceOrder) EntityID() string { return o.ID }

var next = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusCanceled},
	StatusInProgress: {StatusDone, StatusCanceled},
	StatusDone:       {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WithStatus возвращает копию заказа в новом статусе.
func (o ServiceOrder) WithStatus(to Status, at time.Time) (ServiceOrder, error) {
	if !CanTransition(o.Status, to) {
		return o, fmt.Errorf("services: %s -> %s not allowed", o.Status, to)
	}
	o.Status = to
	o.LastUpdate = at
	return o, nil
}

func (o ServiceOrder) Overdue(now time.Time) bool {
	if o.DueDate == nil {
		return false
	}
	return (o.Status == StatusOpen || o.Status == StatusInProgress) && now.After(*o.DueDate)
}
