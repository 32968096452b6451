// internal/handlers/ip_asset.go
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/ipscope/internal/i18n"
	"github.com/javajoker/ipscope/internal/models"
	"github.com/javajoker/ipscope/internal/services"
	"github.com/javajoker/ipscope/internal/upstream"
	"github.com/javajoker/ipscope/internal/utils"
)

// AssetReader is implemented by *services.AssetService.
type AssetReader interface {
	Detail(ctx context.Context, ipID string) (*models.IPAsset, error)
	Children(ctx context.Context, ipID string, limit, offset int) (models.AssetPage, error)
	Transactions(ctx context.Context, ipID string, limit int) ([]models.Transaction, error)
}

// AddressResolver is implemented by *services.AssetResolver.
type AddressResolver interface {
	Resolve(ctx context.Context, address string, limit, offset int) (services.Resolution, error)
	ByContract(ctx context.Context, contract string, limit, offset int) (services.Resolution, error)
}

type IPAssetHandler struct {
	assets   AssetReader
	resolver AddressResolver
}

func NewIPAssetHandler(assets AssetReader, resolver AddressResolver) *IPAssetHandler {
	return &IPAssetHandler{
		assets:   assets,
		resolver: resolver,
	}
}

type assetListQuery struct {
	utils.PageQuery
	OwnerAddress  string `form:"ownerAddress" binding:"required_without=TokenContract,max=128"`
	TokenContract string `form:"tokenContract" binding:"omitempty,hexaddr"`
}

type assetURI struct {
	IPID string `uri:"ipId" binding:"required,hexaddr"`
}

// GET /api/assets
func (h *IPAssetHandler) GetAssets(c *gin.Context) {
	var query assetListQuery
	if !bindQuery(c, &query) {
		return
	}
	limit, offset := query.Window()

	var (
		res services.Resolution
		err error
	)
	if query.TokenContract != "" {
		res, err = h.resolver.ByContract(c.Request.Context(), query.TokenContract, limit, offset)
	} else {
		res, err = h.resolver.Resolve(c.Request.Context(), query.OwnerAddress, limit, offset)
	}
	if err != nil {
		h.respondError(c, err, res.Data, &res.Pagination)
		return
	}

	c.JSON(http.StatusOK, res)
}

// GET /api/assets/:ipId
func (h *IPAssetHandler) GetAsset(c *gin.Context) {
	ipID, ok := bindAssetURI(c)
	if !ok {
		return
	}

	asset, err := h.assets.Detail(c.Request.Context(), ipID)
	switch {
	case asset != nil && err != nil && upstream.IsDegraded(err):
		// Served with analytics.partial set
		logrus.WithError(err).WithField("ip_id", ipID).Info("Serving partial asset detail")
	case err != nil:
		h.respondError(c, err, []models.IPAsset{}, nil)
		return
	case asset == nil:
		utils.NotFoundResponse(c, i18n.KeyAssetNotFound)
		return
	}

	c.JSON(http.StatusOK, asset)
}

// GET /api/assets/:ipId/transactions
func (h *IPAssetHandler) GetAssetTransactions(c *gin.Context) {
	ipID, ok := bindAssetURI(c)
	if !ok {
		return
	}
	var query utils.TransactionQuery
	if !bindQuery(c, &query) {
		return
	}

	txs, err := h.assets.Transactions(c.Request.Context(), ipID, query.LimitOrDefault())
	if err != nil {
		h.respondError(c, err, txs, nil)
		return
	}

	c.JSON(http.StatusOK, txs)
}

// GET /api/assets/:ipId/children
func (h *IPAssetHandler) GetAssetChildren(c *gin.Context) {
	ipID, ok := bindAssetURI(c)
	if !ok {
		return
	}
	var query utils.PageQuery
	if !bindQuery(c, &query) {
		return
	}
	limit, offset := query.Window()

	page, err := h.assets.Children(c.Request.Context(), ipID, limit, offset)
	if err != nil {
		h.respondError(c, err, page.Data, &page.Pagination)
		return
	}

	c.JSON(http.StatusOK, page)
}

// respondError maps service errors onto the HTTP contract: degraded upstreams become 202 with
// whatever data survived, upstream rejections 502, anything else 500.
func (h *IPAssetHandler) respondError(c *gin.Context, err error, data interface{}, pagination *models.Pagination) {
	log := logrus.WithError(err).WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"request_id": utils.GetRequestIDFromContext(c),
	})

	var clientErr *upstream.ClientError
	switch {
	case upstream.IsDegraded(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("Responding with degraded result")
		utils.DegradedResponse(c, data, pagination)
	case errors.As(err, &clientErr):
		log.WithField("upstream_status", clientErr.Status).Error("Upstream rejected request")
		utils.UpstreamErrorResponse(c)
	default:
		log.Error("Unexpected error")
		utils.InternalErrorResponse(c)
	}
}

func bindQuery(c *gin.Context, query interface{}) bool {
	if err := c.ShouldBindQuery(query); err != nil {
		respondBindError(c, err)
		return false
	}
	return true
}

func bindAssetURI(c *gin.Context) (string, bool) {
	var uri assetURI
	if err := c.ShouldBindUri(&uri); err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyAssetInvalidID), nil)
		return "", false
	}
	return uri.IPID, true
}

func respondBindError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)
	if details := utils.GetValidationErrors(err, lang); len(details) > 0 {
		for _, d := range details {
			if d.Tag == "required_without" {
				utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyAssetAddressMissing), details)
				return
			}
		}
		utils.ValidationErrorResponse(c, details)
		return
	}
	utils.BadRequestResponse(c, "", nil)
}
