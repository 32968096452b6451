package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/ipscope/internal/models"
	"github.com/javajoker/ipscope/internal/upstream"
)

const contractAddress = "0x1234567890abcdef1234567890abcdef12345678"

func newTestResolver(t *testing.T, assets *fakeAssets) *AssetResolver {
	t.Helper()
	return NewAssetResolver(NewAssetService(assets, &fakeReporter{}, newTestCache(t)))
}

func TestResolveFallsBackToContract(t *testing.T) {
	assets := newFakeAssets()
	assets.byContract[contractAddress] = []models.IPAsset{{IPID: "0xa"}, {IPID: "0xb"}}

	res, err := newTestResolver(t, assets).Resolve(context.Background(), contractAddress, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, models.ResolvedViaContract, res.Via)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, 2, res.Pagination.Total)

	queries := assets.assetQueries()
	require.Len(t, queries, 2)
	assert.Equal(t, contractAddress, queries[0].OwnerAddress)
	assert.Equal(t, contractAddress, queries[1].TokenContract)
}

func TestResolvePrefersOwner(t *testing.T) {
	assets := newFakeAssets()
	assets.byOwner[contractAddress] = []models.IPAsset{{IPID: "0xowned"}}
	assets.byContract[contractAddress] = []models.IPAsset{{IPID: "0xa"}, {IPID: "0xb"}}

	res, err := newTestResolver(t, assets).Resolve(context.Background(), contractAddress, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, models.ResolvedViaOwner, res.Via)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "0xowned", res.Data[0].IPID)
	assert.Len(t, assets.assetQueries(), 1)
}

func TestResolveOwnerPastLastPageDoesNotFallBack(t *testing.T) {
	assets := newFakeAssets()
	assets.byOwner[contractAddress] = []models.IPAsset{{IPID: "0xowned"}}

	res, err := newTestResolver(t, assets).Resolve(context.Background(), contractAddress, 20, 40)
	require.NoError(t, err)
	assert.Equal(t, models.ResolvedViaOwner, res.Via)
	assert.Empty(t, res.Data)
	assert.Len(t, assets.assetQueries(), 1)
}

func TestResolveNonAddressStaysOwner(t *testing.T) {
	assets := newFakeAssets()

	res, err := newTestResolver(t, assets).Resolve(context.Background(), "not-an-address", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, models.ResolvedViaOwner, res.Via)
	assert.Empty(t, res.Data)
	assert.Len(t, assets.assetQueries(), 1)
}

func TestResolveDegradedOwnerDoesNotFallBack(t *testing.T) {
	assets := newFakeAssets()
	assets.err = &upstream.DegradedError{Service: "story-api", Op: "list assets", Status: 500}

	res, err := newTestResolver(t, assets).Resolve(context.Background(), contractAddress, 20, 0)
	assert.True(t, upstream.IsDegraded(err))
	assert.Equal(t, models.ResolvedViaOwner, res.Via)
	assert.NotNil(t, res.Data)
	assert.Len(t, assets.assetQueries(), 1)
}

func TestByContract(t *testing.T) {
	assets := newFakeAssets()
	assets.byContract[contractAddress] = []models.IPAsset{{IPID: "0xa"}}

	res, err := newTestResolver(t, assets).ByContract(context.Background(), contractAddress, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, models.ResolvedViaContract, res.Via)
	assert.Len(t, res.Data, 1)
}
