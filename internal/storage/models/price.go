// internal/storage/models/price.go
package models

import "time"

// PriceSample is one quote captured from the price feed.
type PriceSample struct {
	BaseModel
	Symbol    string    `gorm:"index;not null;type:varchar(16)"`
	PriceUSD  float64   `gorm:"type:decimal(20,9);not null"`
	Change24h float64   `gorm:"type:decimal(10,4)"`
	SampledAt time.Time `gorm:"index;not null"`
}
