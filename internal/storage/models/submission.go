// internal/storage/models/submission.go
package models

import "time"

// Submission is one allocation update pushed to the contract.
type Submission struct {
	BaseModel
	SubmissionID  string `gorm:"unique;not null;type:varchar(36)"`
	TxHash        string `gorm:"index;type:varchar(66)"`
	WalletAddress string `gorm:"index;type:varchar(42)"`
	Status        string `gorm:"not null;type:varchar(20)"`
	// Requested and Prior hold the JSON-encoded allocation sets so a failed
	// submission can be replayed or audited later.
	Requested    string `gorm:"not null;type:text"`
	Prior        string `gorm:"not null;type:text"`
	ErrorMessage string `gorm:"type:text"`
	CompletedAt  *time.Time
}
