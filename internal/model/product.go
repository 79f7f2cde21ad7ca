package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is an auto part offered in the catalog. Products are never removed;
// deleting one clears Active.
type Product struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	Name         string          `json:"name" gorm:"size:255;not null"`
	Description  string          `json:"description,omitempty" gorm:"type:text"`
	Price        decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Stock        int             `json:"stock" gorm:"not null;default:0"`
	CategoryID   uint            `json:"category_id" gorm:"not null;index"`
	Brand        string          `json:"brand,omitempty" gorm:"size:100;index"`
	VehicleModel string          `json:"model,omitempty" gorm:"column:model;size:100"`
	PartNumber   string          `json:"part_number,omitempty" gorm:"size:100"`
	Images       StringList      `json:"images" gorm:"type:text"`
	Active       bool            `json:"active" gorm:"not null;default:true;index"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Filled by catalog queries that join categories.
	CategoryName string `json:"category_name,omitempty" gorm:"->;-:migration"`
	CategorySlug string `json:"category_slug,omitempty" gorm:"->;-:migration"`

	// Relations
	Category *Category `json:"-" gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
