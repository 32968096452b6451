// internal/models/transaction.go
package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const EventTypeRoyaltyPaid = "RoyaltyPaid"

// RoyaltyEvent is one royalty payment event as listed by the transactions API.
type RoyaltyEvent struct {
	TxHash      string `json:"txHash"`
	BlockNumber int64  `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"`
	IPID        string `json:"ipId"`
}

// ResolvedTransfer is the payment carried by a royalty transaction, as reported by the explorer.
// Resolved is false when the lookup failed; Amount is then zero and must not be aggregated.
type ResolvedTransfer struct {
	TxHash          string           `json:"txHash"`
	Resolved        bool             `json:"resolved"`
	From            string           `json:"from"`
	Amount          *big.Int         `json:"amount"`
	Decimals        int              `json:"decimals"`
	Symbol          string           `json:"symbol"`
	TokenAddress    string           `json:"tokenAddress,omitempty"`
	ExchangeRateUSD *decimal.Decimal `json:"exchangeRateUsd,omitempty"`
	Timestamp       int64            `json:"timestamp"`
}

// Transaction is the client-facing view of one royalty payment.
type Transaction struct {
	TxHash    string `json:"txHash"`
	From      string `json:"from"`
	Value     string `json:"value"`
	Symbol    string `json:"symbol"`
	Timestamp int64  `json:"timestamp"`
}

type TokenTotal struct {
	Total string `json:"total"`
	Count int    `json:"count"`
}

type Licensee struct {
	Address             string `json:"address"`
	Count               int    `json:"count"`
	TotalAmount         string `json:"totalAmount"`
	TotalValueFormatted string `json:"totalValueFormatted"`
}

// RoyaltyReport is the aggregated royalty picture of one asset.
type RoyaltyReport struct {
	TotalsByToken map[string]TokenTotal `json:"totalsByToken"`
	TotalUSD      string                `json:"totalUsd"`
	TopLicensees  []Licensee            `json:"topLicensees"`
	Transactions  []Transaction         `json:"transactions"`
}

// EmptyRoyaltyReport has every collection initialised so it encodes as {} / [] rather than null.
func EmptyRoyaltyReport() RoyaltyReport {
	return RoyaltyReport{
		TotalsByToken: map[string]TokenTotal{},
		TotalUSD:      "$0.00",
		TopLicensees:  []Licensee{},
		Transactions:  []Transaction{},
	}
}

// TransferRecord persists resolved transfers. Confirmed transfers never change, so rows are
// kept indefinitely.
type TransferRecord struct {
	TxHash          string    `json:"tx_hash" gorm:"primaryKey;size:66"`
	FromAddress     string    `json:"from_address" gorm:"size:42;index"`
	Amount          string    `json:"amount" gorm:"type:numeric(78,0);not null"`
	Decimals        int       `json:"decimals" gorm:"not null"`
	Symbol          string    `json:"symbol" gorm:"size:32;index"`
	TokenAddress    string    `json:"token_address" gorm:"size:42"`
	ExchangeRateUSD *string   `json:"exchange_rate_usd" gorm:"type:numeric(38,18)"`
	BlockTimestamp  int64     `json:"block_timestamp"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
