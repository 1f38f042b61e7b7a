// internal/models/product.go
package models

// Product is a sellable SKU. Rows referenced by a purchase or license are
// never edited in place; a price change is a new product.
type Product struct {
	BaseModel
	AppSlug      string `json:"app_slug" gorm:"size:100;not null;index"`
	Name         string `json:"name" gorm:"size:255;not null"`
	Description  string `json:"description" gorm:"type:text"`
	PriceCents   int64  `json:"price_cents" gorm:"not null"`
	Currency     string `json:"currency" gorm:"size:3;not null"`
	DurationDays int    `json:"duration_days" gorm:"not null"`
	MaxDevices   int    `json:"max_devices" gorm:"not null"`
	IsActive     bool   `json:"is_active" gorm:"not null;index"`
	SortOrder    int    `json:"sort_order" gorm:"not null;default:0"`
}
