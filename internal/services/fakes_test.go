package services

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ipscope/internal/cache"
	"github.com/javajoker/ipscope/internal/config"
	"github.com/javajoker/ipscope/internal/models"
	"github.com/javajoker/ipscope/internal/upstream"
)

func testConfig() *config.Config {
	return &config.Config{
		Explorer: config.ExplorerConfig{BatchSize: 3, BatchDelay: time.Millisecond},
		Royalty:  config.RoyaltyConfig{PageSize: 200, MaxPages: 50},
	}
}

func newTestCache(t *testing.T) *cache.TTLCache {
	t.Helper()
	c, err := cache.New(time.Minute, 256, cache.WithName("test"))
	require.NoError(t, err)
	return c
}

func wei(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad amount " + s)
	}
	return n
}

func transfer(hash, from, amount, symbol string, ts int64) models.ResolvedTransfer {
	return models.ResolvedTransfer{
		TxHash:    hash,
		Resolved:  true,
		From:      from,
		Amount:    wei(amount),
		Decimals:  18,
		Symbol:    symbol,
		Timestamp: ts,
	}
}

func withRate(t models.ResolvedTransfer, rate string) models.ResolvedTransfer {
	d := decimal.RequireFromString(rate)
	t.ExchangeRateUSD = &d
	return t
}

// fakeEvents serves pages of royalty events keyed by asset ID.
type fakeEvents struct {
	mu      sync.Mutex
	events  map[string][]models.RoyaltyEvent
	failAt  int // offset that fails, -1 for never
	queries []upstream.TxQuery
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{events: map[string][]models.RoyaltyEvent{}, failAt: -1}
}

func (f *fakeEvents) add(ipID string, hashes ...string) {
	for i, h := range hashes {
		f.events[ipID] = append(f.events[ipID], models.RoyaltyEvent{
			TxHash:      h,
			BlockNumber: int64(1000 - i),
			Timestamp:   int64(1700000000 - i),
			IPID:        ipID,
		})
	}
}

func (f *fakeEvents) Transactions(ctx context.Context, q upstream.TxQuery) (models.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	if f.failAt >= 0 && q.Offset >= f.failAt {
		return models.EventPage{Events: []models.RoyaltyEvent{}}, &upstream.DegradedError{Service: "fake", Op: "events", Status: 503}
	}

	all := f.events[q.IPIDs[0]]
	start := min(q.Offset, len(all))
	end := min(q.Offset+q.Limit, len(all))
	page := make([]models.RoyaltyEvent, end-start)
	copy(page, all[start:end])
	return models.EventPage{Events: page}, nil
}

func (f *fakeEvents) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// fakeExplorer resolves from a fixed table; unknown hashes yield the unresolved sentinel.
type fakeExplorer struct {
	mu        sync.Mutex
	transfers map[string]models.ResolvedTransfer
	lookups   map[string]int
	failures  map[string]int // lookups of a hash that fail before the table answers

	// When gate is set every lookup signals entered and blocks until gate closes or ctx ends.
	gate    chan struct{}
	entered chan string
}

func newFakeExplorer(transfers ...models.ResolvedTransfer) *fakeExplorer {
	f := &fakeExplorer{
		transfers: map[string]models.ResolvedTransfer{},
		lookups:   map[string]int{},
		failures:  map[string]int{},
	}
	for _, t := range transfers {
		f.transfers[strings.ToLower(t.TxHash)] = t
	}
	return f
}

func (f *fakeExplorer) failFirst(hash string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[strings.ToLower(hash)] = n
}

func (f *fakeExplorer) ResolveTransfer(ctx context.Context, txHash string) models.ResolvedTransfer {
	f.mu.Lock()
	f.lookups[txHash]++
	t, ok := f.transfers[txHash]
	failing := f.failures[txHash] > 0
	if failing {
		f.failures[txHash]--
	}
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- txHash
		}
		select {
		case <-ctx.Done():
			return upstream.UnresolvedTransfer(txHash)
		case <-gate:
		}
	}

	if !ok || failing {
		return upstream.UnresolvedTransfer(txHash)
	}
	return t
}

func (f *fakeExplorer) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.lookups {
		n += c
	}
	return n
}

type memStore struct {
	mu   sync.Mutex
	data map[string]models.ResolvedTransfer
}

func newMemStore() *memStore {
	return &memStore{data: map[string]models.ResolvedTransfer{}}
}

func (m *memStore) Get(ctx context.Context, txHash string) (models.ResolvedTransfer, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data[txHash]
	return t, ok, nil
}

func (m *memStore) Put(ctx context.Context, t models.ResolvedTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[t.TxHash] = t
	return nil
}

// fakeAssets is an in-memory Story API.
type fakeAssets struct {
	mu         sync.Mutex
	byOwner    map[string][]models.IPAsset
	byContract map[string][]models.IPAsset
	assets     map[string]models.IPAsset
	children   map[string][]models.IPAsset
	terms      map[string][]models.LicenseTerms
	disputes   map[string][]models.Dispute
	err        error // returned by every list call when set
	disputeErr error
	queries    []upstream.AssetQuery
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{
		byOwner:    map[string][]models.IPAsset{},
		byContract: map[string][]models.IPAsset{},
		assets:     map[string]models.IPAsset{},
		children:   map[string][]models.IPAsset{},
		terms:      map[string][]models.LicenseTerms{},
		disputes:   map[string][]models.Dispute{},
	}
}

func pageOf(assets []models.IPAsset, limit, offset int) models.AssetPage {
	page := models.EmptyAssetPage(limit, offset)
	start := min(offset, len(assets))
	end := min(offset+limit, len(assets))
	page.Data = append(page.Data, assets[start:end]...)
	page.Pagination.Total = len(assets)
	return page
}

func (f *fakeAssets) Assets(ctx context.Context, q upstream.AssetQuery) (models.AssetPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	if f.err != nil {
		return models.EmptyAssetPage(q.Limit, q.Offset), f.err
	}
	switch {
	case q.OwnerAddress != "":
		return pageOf(f.byOwner[q.OwnerAddress], q.Limit, q.Offset), nil
	case q.TokenContract != "":
		return pageOf(f.byContract[q.TokenContract], q.Limit, q.Offset), nil
	}
	return models.EmptyAssetPage(q.Limit, q.Offset), nil
}

func (f *fakeAssets) Asset(ctx context.Context, ipID string) (*models.IPAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	asset, ok := f.assets[ipID]
	if !ok {
		return nil, nil
	}
	return &asset, nil
}

func (f *fakeAssets) Children(ctx context.Context, ipID string, limit, offset int) (models.AssetPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.EmptyAssetPage(limit, offset), f.err
	}
	return pageOf(f.children[ipID], limit, offset), nil
}

func (f *fakeAssets) LicenseTerms(ctx context.Context, ipID string) ([]models.LicenseTerms, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	terms := f.terms[ipID]
	if terms == nil {
		terms = []models.LicenseTerms{}
	}
	return terms, nil
}

func (f *fakeAssets) Disputes(ctx context.Context, ipID string) ([]models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disputeErr != nil {
		return []models.Dispute{}, f.disputeErr
	}
	return f.disputes[ipID], nil
}

func (f *fakeAssets) assetQueries() []upstream.AssetQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstream.AssetQuery(nil), f.queries...)
}
