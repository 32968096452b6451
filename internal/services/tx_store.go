// internal/services/tx_store.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/ipscope/internal/models"
)

// TransferStore persists resolved transfers. Confirmed transfers never change, so a stored
// record is authoritative.
type TransferStore interface {
	Get(ctx context.Context, txHash string) (models.ResolvedTransfer, bool, error)
	Put(ctx context.Context, transfer models.ResolvedTransfer) error
}

// NopTransferStore is used when no database is configured.
type NopTransferStore struct{}

func (NopTransferStore) Get(context.Context, string) (models.ResolvedTransfer, bool, error) {
	return models.ResolvedTransfer{}, false, nil
}

func (NopTransferStore) Put(context.Context, models.ResolvedTransfer) error {
	return nil
}

type GormTransferStore struct {
	db *gorm.DB
}

func NewGormTransferStore(db *gorm.DB) *GormTransferStore {
	return &GormTransferStore{db: db}
}

func (s *GormTransferStore) Get(ctx context.Context, txHash string) (models.ResolvedTransfer, bool, error) {
	var record models.TransferRecord
	err := s.db.WithContext(ctx).First(&record, "tx_hash = ?", strings.ToLower(txHash)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ResolvedTransfer{}, false, nil
	}
	if err != nil {
		return models.ResolvedTransfer{}, false, fmt.Errorf("failed to load transfer: %w", err)
	}

	transfer, err := transferFromRecord(record)
	if err != nil {
		return models.ResolvedTransfer{}, false, err
	}
	return transfer, true, nil
}

// Put stores a resolved transfer; unresolved sentinels are ignored.
func (s *GormTransferStore) Put(ctx context.Context, transfer models.ResolvedTransfer) error {
	if !transfer.Resolved {
		return nil
	}

	record := transferToRecord(transfer)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save transfer: %w", err)
	}
	return nil
}

func transferToRecord(t models.ResolvedTransfer) models.TransferRecord {
	amount := "0"
	if t.Amount != nil {
		amount = t.Amount.String()
	}

	record := models.TransferRecord{
		TxHash:         strings.ToLower(t.TxHash),
		FromAddress:    strings.ToLower(t.From),
		Amount:         amount,
		Decimals:       t.Decimals,
		Symbol:         t.Symbol,
		TokenAddress:   strings.ToLower(t.TokenAddress),
		BlockTimestamp: t.Timestamp,
	}
	if t.ExchangeRateUSD != nil {
		rate := t.ExchangeRateUSD.String()
		record.ExchangeRateUSD = &rate
	}
	return record
}

func transferFromRecord(r models.TransferRecord) (models.ResolvedTransfer, error) {
	amount, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok {
		return models.ResolvedTransfer{}, fmt.Errorf("stored transfer %s has invalid amount %q", r.TxHash, r.Amount)
	}

	t := models.ResolvedTransfer{
		TxHash:       r.TxHash,
		Resolved:     true,
		From:         r.FromAddress,
		Amount:       amount,
		Decimals:     r.Decimals,
		Symbol:       r.Symbol,
		TokenAddress: r.TokenAddress,
		Timestamp:    r.BlockTimestamp,
	}
	if r.ExchangeRateUSD != nil {
		if rate, err := decimal.NewFromString(*r.ExchangeRateUSD); err == nil {
			t.ExchangeRateUSD = &rate
		}
	}
	return t, nil
}
