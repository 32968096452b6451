// internal/models/ip_asset.go
package models

// IPAsset is a snapshot of an IP registration read from the Story Protocol API.
type IPAsset struct {
	IPID          string         `json:"ipId"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	MediaType     string         `json:"mediaType,omitempty"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	OwnerAddress  string         `json:"ownerAddress,omitempty"`
	TokenContract string         `json:"tokenContract,omitempty"`
	TokenID       string         `json:"tokenId,omitempty"`
	ChainID       string         `json:"chainId,omitempty"`
	CreatedAt     int64          `json:"createdAt,omitempty"` // unix seconds
	ParentIPIDs   []string       `json:"parentIpIds,omitempty"`
	ParentsCount  int            `json:"parentsCount"`
	ChildrenCount int            `json:"childrenCount"`
	LicenseTerms  []LicenseTerms `json:"licenseTerms,omitempty"`
	Analytics     *Analytics     `json:"analytics,omitempty"`
}

type LicenseTerms struct {
	LicenseTermsID     string `json:"licenseTermsId"`
	LicenseTemplate    string `json:"licenseTemplate,omitempty"`
	CommercialUse      bool   `json:"commercialUse"`
	DerivativesAllowed bool   `json:"derivativesAllowed"`
	CommercialRevShare int64  `json:"commercialRevShare"`
	MintingFee         string `json:"mintingFee,omitempty"` // base units
	Currency           string `json:"currency,omitempty"`
	Disabled           bool   `json:"disabled"`
}

type Dispute struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	TargetTag string `json:"targetTag,omitempty"`
	Initiator string `json:"initiator,omitempty"`
	RaisedAt  int64  `json:"raisedAt,omitempty"`
}

// Analytics is attached to an asset detail response.
type Analytics struct {
	RoyaltyReport
	DisputeStatus string `json:"disputeStatus"`
	DisputeCount  int    `json:"disputeCount"`
	// Partial is set when an upstream failure may have left the figures incomplete.
	Partial bool `json:"partial,omitempty"`
}
