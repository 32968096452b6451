// internal/upstream/normalize.go
package upstream

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/javajoker/ipscope/internal/models"
	"github.com/javajoker/ipscope/internal/utils"
)

// aliases lists gjson paths for one logical field, most preferred first. Upstream payloads
// have moved fields around between API versions and endpoints; every known spelling lives in
// the tables below and nowhere else.
type aliases []string

func (a aliases) lookup(r gjson.Result) gjson.Result {
	for _, path := range a {
		if v := r.Get(path); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func (a aliases) str(r gjson.Result) string {
	return strings.TrimSpace(a.lookup(r).String())
}

func (a aliases) integer(r gjson.Result) int64 {
	v := a.lookup(r)
	if v.Type == gjson.String {
		n, _ := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		return n
	}
	return v.Int()
}

func (a aliases) boolean(r gjson.Result) bool {
	return a.lookup(r).Bool()
}

// array returns the first alias that holds a JSON array.
func (a aliases) array(r gjson.Result) ([]gjson.Result, bool) {
	for _, path := range a {
		if v := r.Get(path); v.IsArray() {
			return v.Array(), true
		}
	}
	return nil, false
}

// unixTime accepts unix seconds (number or numeric string) or RFC 3339 timestamps.
func (a aliases) unixTime(r gjson.Result) int64 {
	v := a.lookup(r)
	switch v.Type {
	case gjson.Number:
		return normalizeUnix(v.Int())
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return normalizeUnix(n)
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}

// Millisecond timestamps are folded into seconds.
func normalizeUnix(n int64) int64 {
	if n > 1e12 {
		return n / 1000
	}
	return n
}

var listPayload = aliases{"data", "data.data", "data.assets", "assets", "results", "items"}

var totalFields = aliases{"pagination.total", "data.pagination.total", "meta.pagination.total", "total", "totalCount"}

var assetFields = struct {
	IPID, Title, Description, MediaType, ImageURL, Owner, TokenContract, TokenID, ChainID,
	CreatedAt, ParentIPIDs, ParentsCount, ChildrenCount aliases
}{
	IPID:          aliases{"ipId", "id", "ip_id"},
	Title:         aliases{"title", "name", "nftMetadata.name", "ipaMetadata.title"},
	Description:   aliases{"description", "nftMetadata.description", "ipaMetadata.description"},
	MediaType:     aliases{"mediaType", "ipaMetadata.mediaType", "nftMetadata.mediaType"},
	ImageURL:      aliases{"nftMetadata.imageUrl", "nftMetadata.image.cachedUrl", "imageUrl", "image"},
	Owner:         aliases{"ownerAddress", "owner", "nftMetadata.ownerAddress"},
	TokenContract: aliases{"tokenContract", "nftMetadata.tokenContract", "tokenContractAddress"},
	TokenID:       aliases{"tokenId", "nftMetadata.tokenId"},
	ChainID:       aliases{"chainId", "nftMetadata.chainId"},
	CreatedAt:     aliases{"createdAt", "blockTimestamp", "registrationDate"},
	ParentIPIDs:   aliases{"parentIpIds", "parents", "parentIps"},
	ParentsCount:  aliases{"parentsCount", "parentCount", "parentIpCount"},
	ChildrenCount: aliases{"childrenCount", "childCount", "childIpCount"},
}

// edgePayload lists where child edges have been observed for the edges endpoint.
var edgePayload = aliases{"children", "data.children", "data.data.children", "data", "edges", "data.edges"}

var edgeFields = struct{ Child, ChildIPID aliases }{
	Child:     aliases{"childIp", "child", "childAsset"},
	ChildIPID: aliases{"childIpId", "childIpID", "ipId"},
}

var eventFields = struct{ TxHash, BlockNumber, Timestamp, IPID aliases }{
	TxHash:      aliases{"txHash", "transactionHash", "hash", "tx_hash", "transaction.hash"},
	BlockNumber: aliases{"blockNumber", "block_number", "block"},
	Timestamp:   aliases{"blockTimestamp", "timestamp", "createdAt"},
	IPID:        aliases{"ipId", "resourceId", "ip_id"},
}

var licenseFields = struct {
	ID, Template, CommercialUse, DerivativesAllowed, RevShare, MintingFee, Currency, Disabled aliases
}{
	ID:                 aliases{"licenseTermsId", "id"},
	Template:           aliases{"licenseTemplate", "licenseTemplateAddress"},
	CommercialUse:      aliases{"terms.commercialUse", "licenseTerms.commercialUse", "commercialUse"},
	DerivativesAllowed: aliases{"terms.derivativesAllowed", "licenseTerms.derivativesAllowed", "derivativesAllowed"},
	RevShare:           aliases{"terms.commercialRevShare", "licenseTerms.commercialRevShare", "commercialRevShare", "licensingConfig.commercialRevShare"},
	MintingFee:         aliases{"terms.defaultMintingFee", "licenseTerms.defaultMintingFee", "licensingConfig.mintingFee", "mintingFee"},
	Currency:           aliases{"terms.currency", "licenseTerms.currency", "currency"},
	Disabled:           aliases{"licensingConfig.disabled", "disabled"},
}

var licensePayload = aliases{"data", "licenseTerms", "data.licenseTerms", "terms"}

var disputeFields = struct{ ID, Status, TargetTag, Initiator, RaisedAt aliases }{
	ID:        aliases{"id", "disputeId"},
	Status:    aliases{"status", "currentTag"},
	TargetTag: aliases{"targetTag"},
	Initiator: aliases{"initiator"},
	RaisedAt:  aliases{"blockTimestamp", "createdAt"},
}

var disputePayload = aliases{"data", "disputes", "data.disputes"}

var transferFields = struct {
	List, From, Timestamp, Status, Result, NativeValue, NativeRate aliases
	Amount, Decimals, Symbol, TokenAddress, Rate                   aliases
}{
	List:         aliases{"token_transfers", "tokenTransfers"},
	From:         aliases{"from.hash", "from"},
	Timestamp:    aliases{"timestamp", "block_timestamp", "timeStamp"},
	Status:       aliases{"status"},
	Result:       aliases{"result"},
	NativeValue:  aliases{"value"},
	NativeRate:   aliases{"exchange_rate", "exchangeRate"},
	Amount:       aliases{"total.value", "value", "amount"},
	Decimals:     aliases{"total.decimals", "token.decimals", "decimals"},
	Symbol:       aliases{"token.symbol", "symbol"},
	TokenAddress: aliases{"token.address_hash", "token.address", "token.contract_address"},
	Rate:         aliases{"token.exchange_rate", "exchange_rate"},
}

const (
	nativeSymbol   = "IP"
	nativeDecimals = 18
)

func normalizeAsset(r gjson.Result) models.IPAsset {
	f := assetFields
	asset := models.IPAsset{
		IPID:          f.IPID.str(r),
		Title:         f.Title.str(r),
		Description:   f.Description.str(r),
		MediaType:     f.MediaType.str(r),
		ImageURL:      f.ImageURL.str(r),
		OwnerAddress:  f.Owner.str(r),
		TokenContract: f.TokenContract.str(r),
		TokenID:       f.TokenID.str(r),
		ChainID:       f.ChainID.str(r),
		CreatedAt:     f.CreatedAt.unixTime(r),
		ParentsCount:  int(f.ParentsCount.integer(r)),
		ChildrenCount: int(f.ChildrenCount.integer(r)),
	}
	if parents, ok := f.ParentIPIDs.array(r); ok {
		for _, p := range parents {
			if id := strings.TrimSpace(p.String()); id != "" {
				asset.ParentIPIDs = append(asset.ParentIPIDs, id)
			}
		}
	}
	return asset
}

// NormalizeAssetPage turns an assets list payload into a page. Missing totals fall back to the
// number of assets seen up to and including this page.
func NormalizeAssetPage(body []byte, limit, offset int) models.AssetPage {
	root := gjson.ParseBytes(body)
	page := models.EmptyAssetPage(limit, offset)

	items, _ := listPayload.array(root)
	for _, item := range items {
		if asset := normalizeAsset(item); asset.IPID != "" {
			page.Data = append(page.Data, asset)
		}
	}

	if total := totalFields.lookup(root); total.Exists() {
		page.Pagination.Total = int(total.Int())
	} else {
		page.Pagination.Total = offset + len(page.Data)
	}
	return page
}

// NormalizeChildren extracts child assets from an edges payload.
func NormalizeChildren(body []byte, limit, offset int) models.AssetPage {
	root := gjson.ParseBytes(body)
	page := models.EmptyAssetPage(limit, offset)

	items, _ := edgePayload.array(root)
	for _, item := range items {
		child := item
		if nested := edgeFields.Child.lookup(item); nested.IsObject() {
			child = nested
		}
		asset := normalizeAsset(child)
		if id := edgeFields.ChildIPID.str(item); id != "" {
			asset.IPID = id
		}
		if asset.IPID != "" {
			page.Data = append(page.Data, asset)
		}
	}

	if total := totalFields.lookup(root); total.Exists() {
		page.Pagination.Total = int(total.Int())
	} else {
		page.Pagination.Total = offset + len(page.Data)
	}
	return page
}

func NormalizeEvents(body []byte) models.EventPage {
	root := gjson.ParseBytes(body)
	page := models.EventPage{Events: []models.RoyaltyEvent{}}

	items, _ := listPayload.array(root)
	if items == nil {
		items, _ = aliases{"events", "data.events", "transactions"}.array(root)
	}
	for _, item := range items {
		f := eventFields
		page.Events = append(page.Events, models.RoyaltyEvent{
			TxHash:      strings.ToLower(f.TxHash.str(item)),
			BlockNumber: f.BlockNumber.integer(item),
			Timestamp:   f.Timestamp.unixTime(item),
			IPID:        f.IPID.str(item),
		})
	}
	return page
}

func NormalizeLicenseTerms(body []byte) []models.LicenseTerms {
	root := gjson.ParseBytes(body)
	terms := []models.LicenseTerms{}

	items, _ := licensePayload.array(root)
	for _, item := range items {
		f := licenseFields
		lt := models.LicenseTerms{
			LicenseTermsID:     f.ID.str(item),
			LicenseTemplate:    f.Template.str(item),
			CommercialUse:      f.CommercialUse.boolean(item),
			DerivativesAllowed: f.DerivativesAllowed.boolean(item),
			CommercialRevShare: f.RevShare.integer(item),
			MintingFee:         f.MintingFee.str(item),
			Currency:           f.Currency.str(item),
			Disabled:           f.Disabled.boolean(item),
		}
		if lt.LicenseTermsID != "" {
			terms = append(terms, lt)
		}
	}
	return terms
}

func NormalizeDisputes(body []byte) []models.Dispute {
	root := gjson.ParseBytes(body)
	disputes := []models.Dispute{}

	items, _ := disputePayload.array(root)
	for _, item := range items {
		f := disputeFields
		disputes = append(disputes, models.Dispute{
			ID:        f.ID.str(item),
			Status:    f.Status.str(item),
			TargetTag: f.TargetTag.str(item),
			Initiator: f.Initiator.str(item),
			RaisedAt:  f.RaisedAt.unixTime(item),
		})
	}
	return disputes
}

// NormalizeTransfer reads an explorer transaction payload. The first non-zero token transfer
// wins; a transaction without token transfers is read as a native-currency payment.
func NormalizeTransfer(txHash string, body []byte) models.ResolvedTransfer {
	root := gjson.ParseBytes(body)
	f := transferFields
	out := UnresolvedTransfer(txHash)

	if !root.IsObject() {
		return out
	}
	if status := strings.ToLower(f.Status.str(root)); status == "error" {
		return out
	}
	if result := strings.ToLower(f.Result.str(root)); result != "" && result != "success" {
		return out
	}

	out.From = strings.ToLower(f.From.str(root))
	out.Timestamp = f.Timestamp.unixTime(root)

	transfers, _ := f.List.array(root)
	var chosen *gjson.Result
	for i := range transfers {
		amount, ok := utils.ParseBaseUnits(f.Amount.str(transfers[i]))
		if !ok {
			continue
		}
		if chosen == nil || amount.Sign() > 0 {
			chosen = &transfers[i]
			if amount.Sign() > 0 {
				break
			}
		}
	}

	if chosen != nil {
		amount, _ := utils.ParseBaseUnits(f.Amount.str(*chosen))
		decimals := f.Decimals.integer(*chosen)
		if !f.Decimals.lookup(*chosen).Exists() {
			decimals = nativeDecimals
		}
		if decimals < 0 || decimals > utils.MaxTokenDecimals {
			return UnresolvedTransfer(txHash)
		}
		out.Amount = amount
		out.Decimals = int(decimals)
		out.Symbol = strings.ToUpper(f.Symbol.str(*chosen))
		out.TokenAddress = strings.ToLower(f.TokenAddress.str(*chosen))
		out.ExchangeRateUSD = parseRate(f.Rate.str(*chosen))
		if from := strings.ToLower(f.From.str(*chosen)); from != "" {
			out.From = from
		}
	} else {
		amount, ok := utils.ParseBaseUnits(f.NativeValue.str(root))
		if !ok {
			return UnresolvedTransfer(txHash)
		}
		out.Amount = amount
		out.Decimals = nativeDecimals
		out.Symbol = nativeSymbol
		out.ExchangeRateUSD = parseRate(f.NativeRate.str(root))
	}

	if out.Symbol == "" {
		out.Symbol = "UNKNOWN"
	}
	out.Resolved = true
	return out
}

// UnresolvedTransfer is the sentinel for a transaction whose payment could not be read.
func UnresolvedTransfer(txHash string) models.ResolvedTransfer {
	return models.ResolvedTransfer{
		TxHash: strings.ToLower(txHash),
		Amount: new(big.Int),
	}
}

func parseRate(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return nil
	}
	return &d
}

// upstreamMessage pulls a human readable error message out of an error body.
func upstreamMessage(body []byte) string {
	msg := aliases{"message", "error.message", "error", "detail"}.str(gjson.ParseBytes(body))
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
