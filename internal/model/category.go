package model

import "time"

// Category groups products in the storefront navigation.
type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Slug        string    `json:"slug" gorm:"uniqueIndex;size:255;not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	ImageURL    string    `json:"image_url,omitempty" gorm:"size:500"`
	Active      bool      `json:"active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Number of active products, filled by the listing query.
	ProductCount int64 `json:"product_count" gorm:"->;-:migration"`
}
