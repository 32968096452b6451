package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ipscope/internal/models"
)

func TestTransferRecordConversion(t *testing.T) {
	original := withRate(transfer("0xABCD", "0xPAYER", "123456789012345678901234567890", "WIP", 1717000000), "0.75")
	original.TokenAddress = "0xTOKEN"

	record := transferToRecord(original)
	assert.Equal(t, "0xabcd", record.TxHash)
	assert.Equal(t, "0xpayer", record.FromAddress)
	assert.Equal(t, "123456789012345678901234567890", record.Amount)
	require.NotNil(t, record.ExchangeRateUSD)
	assert.Equal(t, "0.75", *record.ExchangeRateUSD)

	back, err := transferFromRecord(record)
	require.NoError(t, err)
	assert.True(t, back.Resolved)
	assert.Equal(t, 0, back.Amount.Cmp(original.Amount))
	assert.Equal(t, "0xtoken", back.TokenAddress)
	assert.Equal(t, int64(1717000000), back.Timestamp)
	require.NotNil(t, back.ExchangeRateUSD)
	assert.True(t, back.ExchangeRateUSD.Equal(*original.ExchangeRateUSD))
}

func TestTransferRecordInvalidAmount(t *testing.T) {
	_, err := transferFromRecord(models.TransferRecord{TxHash: "0x1", Amount: "abc"})
	assert.Error(t, err)
}

func TestNopTransferStore(t *testing.T) {
	var store TransferStore = NopTransferStore{}
	require.NoError(t, store.Put(context.Background(), transfer("0x1", "0xa", "1", "WIP", 1)))

	_, ok, err := store.Get(context.Background(), "0x1")
	assert.NoError(t, err)
	assert.False(t, ok)
}
