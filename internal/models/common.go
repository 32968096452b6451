// internal/models/common.go
package models

type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// AssetPage is one page of assets together with its pagination window.
type AssetPage struct {
	Data       []IPAsset  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func EmptyAssetPage(limit, offset int) AssetPage {
	return AssetPage{
		Data:       []IPAsset{},
		Pagination: Pagination{Total: 0, Limit: limit, Offset: offset},
	}
}

// EventPage is one page of royalty events.
type EventPage struct {
	Events []RoyaltyEvent `json:"events"`
}

// Enums
type ResolvedVia string

const (
	ResolvedViaOwner    ResolvedVia = "owner"
	ResolvedViaContract ResolvedVia = "contract"
)

const DisputeStatusNone = "None"
