package domain

type Medicine struct {
	ID          int64    `db:"id" json:"id"`
	PharmacyID  int64    `db:"pharmacy_id" json:"pharmacy_id"`
	Name        string   `db:"name" json:"name"`
	Description *string  `db:"description" json:"description,omitempty"`
	Price       *float64 `db:"price" json:"price,omitempty"`
	IsAvailable bool     `db:"is_available" json:"is_available"`
}
