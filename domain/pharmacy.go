package domain

type Pharmacy struct {
	ID      int64    `db:"id" json:"id"`
	UserID  int64    `db:"user_id" json:"user_id"`
	Name    string   `db:"name" json:"name"`
	Address *string  `db:"address" json:"address,omitempty"`
	Lat     *float64 `db:"lat" json:"lat,omitempty"`
	Lng     *float64 `db:"lng" json:"lng,omitempty"`
	Phone   *string  `db:"phone" json:"phone,omitempty"`
}
