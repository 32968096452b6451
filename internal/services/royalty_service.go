// internal/services/royalty_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/javajoker/ipscope/internal/cache"
	"github.com/javajoker/ipscope/internal/config"
	"github.com/javajoker/ipscope/internal/metrics"
	"github.com/javajoker/ipscope/internal/models"
	"github.com/javajoker/ipscope/internal/upstream"
	"github.com/javajoker/ipscope/internal/utils"
)

const topLicenseeLimit = 10

// ErrUnresolvedTransfers marks a report that is missing payments the explorer could not read.
var ErrUnresolvedTransfers = errors.New("royalty transfers unresolved")

// EventSource lists protocol events; implemented by *upstream.Client.
type EventSource interface {
	Transactions(ctx context.Context, q upstream.TxQuery) (models.EventPage, error)
}

// TransferResolver reads the payment carried by a transaction; implemented by *upstream.Explorer.
// It must not fail: lookups that go wrong return upstream.UnresolvedTransfer.
type TransferResolver interface {
	ResolveTransfer(ctx context.Context, txHash string) models.ResolvedTransfer
}

type RoyaltyService struct {
	events   EventSource
	explorer TransferResolver
	cache    *cache.TTLCache
	store    TransferStore
	prices   *PriceBook
	pageSize int
	maxPages int
	batch    utils.BatchOptions
	sf       singleflight.Group
}

func NewRoyaltyService(events EventSource, explorer TransferResolver, ttlCache *cache.TTLCache, store TransferStore, prices *PriceBook, cfg *config.Config) *RoyaltyService {
	if store == nil {
		store = NopTransferStore{}
	}
	batch := utils.BatchOptions{Size: cfg.Explorer.BatchSize, Delay: cfg.Explorer.BatchDelay}
	if cfg.Explorer.RequestsPerSecond > 0 {
		batch = utils.BatchOptionsFor(cfg.Explorer.RequestsPerSecond)
	}
	return &RoyaltyService{
		events:   events,
		explorer: explorer,
		cache:    ttlCache,
		store:    store,
		prices:   prices,
		pageSize: cfg.Royalty.PageSize,
		maxPages: cfg.Royalty.MaxPages,
		batch:    batch,
	}
}

func reportKey(ipID string) string   { return "royalty:" + strings.ToLower(ipID) }
func transferKey(hash string) string { return "tx:" + strings.ToLower(hash) }

// Report builds the royalty picture of one asset. The report is always usable; a non-nil error
// only says it may be incomplete (it wraps upstream.ErrDegraded or the context error).
func (s *RoyaltyService) Report(ctx context.Context, ipID string) (models.RoyaltyReport, error) {
	var cached models.RoyaltyReport
	if s.cache.Get(reportKey(ipID), &cached) {
		return cached, nil
	}

	events, fetchErr := s.fetchEvents(ctx, ipID)
	hashes := uniqueHashes(events)

	transfers, resolveErr := s.resolveAll(ctx, hashes)
	report, unresolved := s.aggregate(events, transfers)

	err := errors.Join(fetchErr, resolveErr)
	if unresolved > 0 {
		err = errors.Join(err, &upstream.DegradedError{
			Service: "royalty",
			Op:      "resolve transfers",
			Err:     fmt.Errorf("%w: %d of %d", ErrUnresolvedTransfers, unresolved, len(hashes)),
		})
	}
	if err == nil {
		s.cache.Set(reportKey(ipID), report)
	}

	logrus.WithFields(logrus.Fields{
		"ip_id":      ipID,
		"events":     len(events),
		"unique_txs": len(hashes),
		"unresolved": unresolved,
		"partial":    err != nil,
	}).Debug("Royalty report built")

	return report, err
}

// fetchEvents pages through RoyaltyPaid events one page at a time. It stops at a short page, at
// the page cap or at the first failure, keeping whatever was gathered.
func (s *RoyaltyService) fetchEvents(ctx context.Context, ipID string) ([]models.RoyaltyEvent, error) {
	var events []models.RoyaltyEvent

	for page := 0; page < s.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return events, err
		}

		res, err := s.events.Transactions(ctx, upstream.TxQuery{
			EventTypes: []string{models.EventTypeRoyaltyPaid},
			IPIDs:      []string{ipID},
			Limit:      s.pageSize,
			Offset:     page * s.pageSize,
		})
		events = append(events, res.Events...)
		metrics.RoyaltyEventsFetched.Add(float64(len(res.Events)))

		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"ip_id": ipID,
				"page":  page,
			}).Warn("Stopped fetching royalty events early")
			if !upstream.IsDegraded(err) {
				err = &upstream.DegradedError{Service: "royalty", Op: "fetch events", Err: err}
			}
			return events, err
		}
		if len(res.Events) < s.pageSize {
			return events, nil
		}
	}

	logrus.WithFields(logrus.Fields{
		"ip_id":     ipID,
		"max_pages": s.maxPages,
	}).Warn("Royalty event page cap reached")
	return events, nil
}

func uniqueHashes(events []models.RoyaltyEvent) []string {
	seen := make(map[string]struct{}, len(events))
	hashes := make([]string, 0, len(events))
	for _, ev := range events {
		hash := strings.ToLower(ev.TxHash)
		if hash == "" {
			continue
		}
		if _, ok := seen[hash]; ok {
			continue
		}
		seen[hash] = struct{}{}
		hashes = append(hashes, hash)
	}
	return hashes
}

// resolveAll looks every hash up in the cache, then the store, then the explorer.
func (s *RoyaltyService) resolveAll(ctx context.Context, hashes []string) (map[string]models.ResolvedTransfer, error) {
	resolved := make(map[string]models.ResolvedTransfer, len(hashes))
	var pending []string

	for _, hash := range hashes {
		var t models.ResolvedTransfer
		if s.cache.Get(transferKey(hash), &t) {
			metrics.TransferResolutions.WithLabelValues("cache").Inc()
			resolved[hash] = t
			continue
		}

		stored, ok, err := s.store.Get(ctx, hash)
		if err != nil {
			logrus.WithError(err).WithField("tx_hash", hash).Warn("Transfer store lookup failed")
		}
		if ok {
			metrics.TransferResolutions.WithLabelValues("store").Inc()
			s.cache.Set(transferKey(hash), stored)
			resolved[hash] = stored
			continue
		}
		pending = append(pending, hash)
	}

	if len(pending) == 0 {
		return resolved, nil
	}

	results, err := utils.MapInBatches(ctx, pending, s.batch, s.resolveOne)
	for i, hash := range pending {
		t := results[i]
		if t.TxHash == "" {
			t = upstream.UnresolvedTransfer(hash)
		}
		resolved[hash] = t
	}
	return resolved, err
}

// resolveOne asks the explorer, coalescing concurrent lookups of the same hash. The shared lookup
// is detached from any single caller; each caller stops waiting when its own ctx ends.
func (s *RoyaltyService) resolveOne(ctx context.Context, hash string) models.ResolvedTransfer {
	lookupCtx := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(hash, func() (any, error) {
		t := s.explorer.ResolveTransfer(lookupCtx, hash)
		if !t.Resolved {
			metrics.TransferResolutions.WithLabelValues("failed").Inc()
			return t, nil
		}

		metrics.TransferResolutions.WithLabelValues("explorer").Inc()
		s.cache.Set(transferKey(hash), t)
		if err := s.store.Put(lookupCtx, t); err != nil {
			logrus.WithError(err).WithField("tx_hash", hash).Warn("Failed to persist transfer")
		}
		return t, nil
	})

	select {
	case <-ctx.Done():
		return upstream.UnresolvedTransfer(hash)
	case res := <-ch:
		t, ok := res.Val.(models.ResolvedTransfer)
		if !ok {
			return upstream.UnresolvedTransfer(hash)
		}
		return t
	}
}

type tokenAccumulator struct {
	total    decimal.Decimal
	count    int
	rate     *decimal.Decimal
	rateSeen int64
}

type licenseeAccumulator struct {
	address string
	count   int
	amount  decimal.Decimal
	usd     decimal.Decimal
}

// aggregate folds resolved transfers into a report and returns how many lookups failed.
func (s *RoyaltyService) aggregate(events []models.RoyaltyEvent, transfers map[string]models.ResolvedTransfer) (models.RoyaltyReport, int) {
	report := models.EmptyRoyaltyReport()
	tokens := map[string]*tokenAccumulator{}
	var symbols []string
	var contributing []models.ResolvedTransfer
	unresolved := 0

	eventTime := make(map[string]int64, len(events))
	for _, ev := range events {
		hash := strings.ToLower(ev.TxHash)
		if _, ok := eventTime[hash]; !ok {
			eventTime[hash] = ev.Timestamp
		}
	}

	for _, hash := range uniqueHashes(events) {
		t, ok := transfers[hash]
		if !ok || !t.Resolved || t.Amount == nil {
			unresolved++
			continue
		}
		if t.Timestamp == 0 {
			t.Timestamp = eventTime[hash]
		}

		report.Transactions = append(report.Transactions, models.Transaction{
			TxHash:    t.TxHash,
			From:      t.From,
			Value:     utils.FormatBaseUnits(t.Amount, t.Decimals, utils.DefaultMaxFractionDigits),
			Symbol:    t.Symbol,
			Timestamp: t.Timestamp,
		})

		// Resolved zero amounts are listed but do not count towards totals.
		if t.Amount.Sign() == 0 {
			continue
		}

		acc, ok := tokens[t.Symbol]
		if !ok {
			acc = &tokenAccumulator{}
			tokens[t.Symbol] = acc
			symbols = append(symbols, t.Symbol)
		}
		acc.total = acc.total.Add(utils.ToDecimal(t.Amount, t.Decimals))
		acc.count++
		if t.ExchangeRateUSD != nil && (acc.rate == nil || t.Timestamp >= acc.rateSeen) {
			acc.rate = t.ExchangeRateUSD
			acc.rateSeen = t.Timestamp
		}
		contributing = append(contributing, t)
	}

	totalUSD := decimal.Zero
	for _, symbol := range symbols {
		acc := tokens[symbol]
		if acc.rate != nil {
			if s.prices != nil {
				s.prices.Observe(symbol, *acc.rate)
			}
		} else if s.prices != nil {
			if rate, ok := s.prices.Rate(symbol); ok {
				acc.rate = &rate
			}
		}

		report.TotalsByToken[symbol] = models.TokenTotal{
			Total: utils.FormatDecimal(acc.total, utils.DefaultMaxFractionDigits),
			Count: acc.count,
		}
		if acc.rate != nil {
			totalUSD = totalUSD.Add(acc.total.Mul(*acc.rate))
		}
	}
	report.TotalUSD = utils.FormatUSD(totalUSD)
	report.TopLicensees = rankLicensees(contributing, tokens)

	sort.SliceStable(report.Transactions, func(i, j int) bool {
		return report.Transactions[i].Timestamp > report.Transactions[j].Timestamp
	})
	return report, unresolved
}

// rankLicensees orders payers by cumulative amount, highest first; ties keep first-seen order.
func rankLicensees(transfers []models.ResolvedTransfer, tokens map[string]*tokenAccumulator) []models.Licensee {
	byAddress := map[string]*licenseeAccumulator{}
	var order []*licenseeAccumulator

	for _, t := range transfers {
		address := strings.ToLower(t.From)
		if address == "" {
			continue
		}
		acc, ok := byAddress[address]
		if !ok {
			acc = &licenseeAccumulator{address: address}
			byAddress[address] = acc
			order = append(order, acc)
		}

		amount := utils.ToDecimal(t.Amount, t.Decimals)
		acc.count++
		acc.amount = acc.amount.Add(amount)
		if token := tokens[t.Symbol]; token != nil && token.rate != nil {
			acc.usd = acc.usd.Add(amount.Mul(*token.rate))
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].amount.GreaterThan(order[j].amount)
	})
	if len(order) > topLicenseeLimit {
		order = order[:topLicenseeLimit]
	}

	licensees := make([]models.Licensee, 0, len(order))
	for _, acc := range order {
		licensees = append(licensees, models.Licensee{
			Address:             acc.address,
			Count:               acc.count,
			TotalAmount:         utils.FormatDecimal(acc.amount, utils.DefaultMaxFractionDigits),
			TotalValueFormatted: utils.FormatUSD(acc.usd),
		})
	}
	return licensees
}
