package catalog

type Product struct {
	ID         string  `json:"id"`
	StoreID    string  `json:"store_id"`
	Name       string  `json:"name"`
	SKU        string  `json:"sku,omitempty"`
	Category   string  `json:"category,omitempty"`
	Price      float64 `json:"price"`
	Cost       float64 `json:"cost"`
	Stock      float64 `json:"stock"`
	MinStock   float64 `json:"min_stock"`
	SupplierID string  `json:"supplier_id,omitempty"`
	Active     bool    `json:"active"`
}

func (p Product) EntityID() string { return p.ID }

// LowStock — остаток на минимуме или ниже (MinStock 0 — не следим).
func (p Product) LowStock() bool { return p.MinStock > 0 && p.Stock <= p.MinStock }

// WithStockDelta возвращает копию с изменённым остатком (может уйти в минус, как на складе).
func (p Product) WithStockDelta(delta float64) Product {
	p.Stock += delta
	return p
}

func (p Product) Margin() float64 {
	if p.Price == 0 {
		return 0
	}
	return (p.Price - p.Cost) / p.Price
}

type Supplier struct {
	ID      string `json:"id"`
	StoreID string `json:"store_id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

func (s Supplier) EntityID() string { return s.ID }
