package models

// Product is read-only reference data for the order core. Only the ordering
// fields are modelled here; menu management lives in a separate service.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Available   bool    `json:"available"`
	Rate        float64 `json:"rate"`
	Raters      int     `json:"raters"`
}

// Table is a physical ordering point within a tenant. It owns the ids of the
// orders placed from it, archived ones included.
type Table struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id"`
	Number   int      `json:"number"`
	OrderIDs []string `json:"order_ids"`
}
