// internal/services/asset_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/javajoker/ipscope/internal/cache"
	"github.com/javajoker/ipscope/internal/models"
	"github.com/javajoker/ipscope/internal/upstream"
)

// AssetSource is the subset of the Story API the asset service reads from.
type AssetSource interface {
	Assets(ctx context.Context, q upstream.AssetQuery) (models.AssetPage, error)
	Asset(ctx context.Context, ipID string) (*models.IPAsset, error)
	Children(ctx context.Context, ipID string, limit, offset int) (models.AssetPage, error)
	LicenseTerms(ctx context.Context, ipID string) ([]models.LicenseTerms, error)
	Disputes(ctx context.Context, ipID string) ([]models.Dispute, error)
}

type RoyaltyReporter interface {
	Report(ctx context.Context, ipID string) (models.RoyaltyReport, error)
}

type AssetService struct {
	assets    AssetSource
	royalties RoyaltyReporter
	cache     *cache.TTLCache
}

func NewAssetService(assets AssetSource, royalties RoyaltyReporter, ttlCache *cache.TTLCache) *AssetService {
	return &AssetService{
		assets:    assets,
		royalties: royalties,
		cache:     ttlCache,
	}
}

func (s *AssetService) ListByOwner(ctx context.Context, owner string, limit, offset int) (models.AssetPage, error) {
	key := fmt.Sprintf("assets:owner:%s:%d:%d", strings.ToLower(owner), limit, offset)
	return s.cachedPage(key, func() (models.AssetPage, error) {
		return s.assets.Assets(ctx, upstream.AssetQuery{OwnerAddress: owner, Limit: limit, Offset: offset})
	})
}

func (s *AssetService) ListByContract(ctx context.Context, contract string, limit, offset int) (models.AssetPage, error) {
	key := fmt.Sprintf("assets:contract:%s:%d:%d", strings.ToLower(contract), limit, offset)
	return s.cachedPage(key, func() (models.AssetPage, error) {
		return s.assets.Assets(ctx, upstream.AssetQuery{TokenContract: contract, Limit: limit, Offset: offset})
	})
}

// Children lists direct derivative works of an asset.
func (s *AssetService) Children(ctx context.Context, ipID string, limit, offset int) (models.AssetPage, error) {
	key := fmt.Sprintf("children:%s:%d:%d", strings.ToLower(ipID), limit, offset)
	return s.cachedPage(key, func() (models.AssetPage, error) {
		return s.assets.Children(ctx, ipID, limit, offset)
	})
}

func (s *AssetService) cachedPage(key string, fetch func() (models.AssetPage, error)) (models.AssetPage, error) {
	var page models.AssetPage
	if s.cache.Get(key, &page) {
		return page, nil
	}

	page, err := fetch()
	if err != nil {
		return page, err
	}
	s.cache.Set(key, page)
	return page, nil
}

// Detail returns an asset with its license terms and analytics attached, or nil when the asset
// does not exist. If the asset was found but some enrichment failed, the asset is returned with
// Analytics.Partial set together with an error wrapping upstream.ErrDegraded.
func (s *AssetService) Detail(ctx context.Context, ipID string) (*models.IPAsset, error) {
	key := "asset:" + strings.ToLower(ipID)

	var cached models.IPAsset
	if s.cache.Get(key, &cached) {
		return &cached, nil
	}

	asset, err := s.assets.Asset(ctx, ipID)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, nil
	}

	var (
		terms      []models.LicenseTerms
		disputes   []models.Dispute
		report     models.RoyaltyReport
		termsErr   error
		disputeErr error
		royaltyErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		terms, termsErr = s.assets.LicenseTerms(ctx, ipID)
		return nil
	})
	g.Go(func() error {
		disputes, disputeErr = s.assets.Disputes(ctx, ipID)
		return nil
	})
	g.Go(func() error {
		report, royaltyErr = s.royalties.Report(ctx, ipID)
		return nil
	})
	g.Wait()

	status, count := disputeSummary(disputes)
	asset.LicenseTerms = terms
	asset.Analytics = &models.Analytics{
		RoyaltyReport: report,
		DisputeStatus: status,
		DisputeCount:  count,
	}

	if err := errors.Join(termsErr, disputeErr, royaltyErr); err != nil {
		logrus.WithError(err).WithField("ip_id", ipID).Warn("Asset detail is incomplete")
		asset.Analytics.Partial = true
		if !upstream.IsDegraded(err) {
			err = &upstream.DegradedError{Service: "assets", Op: "enrich detail", Err: err}
		}
		return asset, err
	}

	s.cache.Set(key, asset)
	return asset, nil
}

// Transactions returns the newest royalty payments of an asset, at most limit of them.
func (s *AssetService) Transactions(ctx context.Context, ipID string, limit int) ([]models.Transaction, error) {
	report, err := s.royalties.Report(ctx, ipID)

	txs := report.Transactions
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	out := make([]models.Transaction, len(txs))
	copy(out, txs)
	return out, err
}

// disputeSummary reports the status of the most recent dispute, or "None".
func disputeSummary(disputes []models.Dispute) (string, int) {
	if len(disputes) == 0 {
		return models.DisputeStatusNone, 0
	}

	latest := disputes[0]
	for _, d := range disputes[1:] {
		if d.RaisedAt > latest.RaisedAt {
			latest = d
		}
	}
	status := latest.Status
	if status == "" {
		status = models.DisputeStatusNone
	}
	return status, len(disputes)
}
