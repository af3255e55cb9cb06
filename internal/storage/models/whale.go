// internal/storage/models/whale.go
package models

import "time"

// WhaleSighting is a large native transfer captured by the tracker.
type WhaleSighting struct {
	BaseModel
	TxHash      string    `gorm:"unique;not null;type:varchar(66)"`
	FromAddress string    `gorm:"index;not null;type:varchar(42)"`
	ToAddress   string    `gorm:"index;not null;type:varchar(42)"`
	Amount      string    `gorm:"not null;type:varchar(64)"`
	ValueUSD    float64   `gorm:"type:decimal(20,2);not null"`
	Size        string    `gorm:"not null;type:varchar(16)"`
	Method      string    `gorm:"type:varchar(64)"`
	ObservedAt  time.Time `gorm:"index;not null"`
}
