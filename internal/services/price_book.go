// internal/services/price_book.go
package services

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/shopspring/decimal"
)

const defaultPriceBookTTL = time.Minute

// PriceBook remembers the last USD exchange rate seen per token symbol across pipeline runs.
type PriceBook struct {
	rates *ttlcache.Cache[string, decimal.Decimal]
}

func NewPriceBook(ttl time.Duration) *PriceBook {
	if ttl <= 0 {
		ttl = defaultPriceBookTTL
	}
	withTTL := ttlcache.WithTTL[string, decimal.Decimal](ttl)
	rates := ttlcache.New[string, decimal.Decimal](withTTL, ttlcache.WithDisableTouchOnHit[string, decimal.Decimal]())

	go rates.Start()

	return &PriceBook{rates: rates}
}

func (p *PriceBook) Observe(symbol string, rate decimal.Decimal) {
	if symbol == "" || rate.IsNegative() {
		return
	}
	p.rates.Set(strings.ToUpper(symbol), rate, ttlcache.DefaultTTL)
}

// Rate returns the last rate observed for symbol within the TTL.
func (p *PriceBook) Rate(symbol string) (decimal.Decimal, bool) {
	item := p.rates.Get(strings.ToUpper(symbol))
	if item == nil {
		return decimal.Zero, false
	}
	return item.Value(), true
}

// Stop halts the expiry loop.
func (p *PriceBook) Stop() {
	p.rates.Stop()
}
