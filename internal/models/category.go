package models

import "time"

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryDetail is a category together with the products filed under it.
type CategoryDetail struct {
	Category
	Products []Product `json:"products"`
}
