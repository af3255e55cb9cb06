// internal/explorer/types.go
package explorer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a native-token transfer observed on chain.
type Transaction struct {
	Hash        string          `json:"hash"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Value       decimal.Decimal `json:"value"`
	ValueUSD    decimal.Decimal `json:"value_usd"`
	Timestamp   time.Time       `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
	GasUsed     string          `json:"gas_used"`
	Method      string          `json:"method,omitempty"`
	Swap        bool            `json:"swap"`
}

// Holder is an address ranked by native-token balance.
type Holder struct {
	Address    string          `json:"address"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage string          `json:"percentage"`
	USDValue   decimal.Decimal `json:"usd_value"`
	Contract   bool            `json:"is_contract"`
}

// NetworkStats aggregates holder-derived chain statistics.
type NetworkStats struct {
	TotalSupply     decimal.Decimal `json:"total_supply"`
	TotalHolders    int             `json:"total_holders"`
	ActiveAddresses int             `json:"active_addresses"`
}

// WhaleSize buckets a transaction by its USD value.
type WhaleSize string

const (
	SizeShrimp    WhaleSize = "shrimp"
	SizeFish      WhaleSize = "fish"
	SizeDolphin   WhaleSize = "dolphin"
	SizeWhale     WhaleSize = "whale"
	SizeHumpback  WhaleSize = "humpback"
	SizeBlueWhale WhaleSize = "blue-whale"
)

var sizeThresholds = []struct {
	limit decimal.Decimal
	size  WhaleSize
}{
	{decimal.NewFromInt(1_000), SizeShrimp},
	{decimal.NewFromInt(10_000), SizeFish},
	{decimal.NewFromInt(100_000), SizeDolphin},
	{decimal.NewFromInt(1_000_000), SizeWhale},
	{decimal.NewFromInt(10_000_000), SizeHumpback},
}

// ClassifySize maps a USD value onto a whale-size bucket.
func ClassifySize(valueUSD decimal.Decimal) WhaleSize {
	for _, t := range sizeThresholds {
		if valueUSD.LessThan(t.limit) {
			return t.size
		}
	}
	return SizeBlueWhale
}
