// internal/services/asset_resolver.go
package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/javajoker/ipscope/internal/models"
)

type AssetLister interface {
	ListByOwner(ctx context.Context, owner string, limit, offset int) (models.AssetPage, error)
	ListByContract(ctx context.Context, contract string, limit, offset int) (models.AssetPage, error)
}

// Resolution is an asset page plus the interpretation of the address that produced it.
type Resolution struct {
	models.AssetPage
	Via models.ResolvedVia `json:"resolvedVia"`
}

// AssetResolver decides whether a caller supplied address is a wallet or a token contract.
type AssetResolver struct {
	assets AssetLister
}

func NewAssetResolver(assets AssetLister) *AssetResolver {
	return &AssetResolver{assets: assets}
}

// Resolve lists assets owned by address. When the owner has none and address is a well formed
// hex address, it is retried as a token contract. A degraded owner lookup is returned as is,
// since an empty page from a failing upstream says nothing about ownership.
func (r *AssetResolver) Resolve(ctx context.Context, address string, limit, offset int) (Resolution, error) {
	page, err := r.assets.ListByOwner(ctx, address, limit, offset)
	if err != nil || page.Pagination.Total > 0 || len(page.Data) > 0 || !common.IsHexAddress(address) {
		return Resolution{AssetPage: page, Via: models.ResolvedViaOwner}, err
	}

	page, err = r.assets.ListByContract(ctx, address, limit, offset)
	return Resolution{AssetPage: page, Via: models.ResolvedViaContract}, err
}

// ByContract lists assets minted by a token contract without trying ownership first.
func (r *AssetResolver) ByContract(ctx context.Context, contract string, limit, offset int) (Resolution, error) {
	page, err := r.assets.ListByContract(ctx, contract, limit, offset)
	return Resolution{AssetPage: page, Via: models.ResolvedViaContract}, err
}
