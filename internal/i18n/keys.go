// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeyInternalError     = "error.internal"
	KeyRateLimitExceeded = "error.rate_limited"

	// Assets
	KeyAssetNotFound       = "asset.not_found"
	KeyAssetAddressMissing = "asset.address_missing"
	KeyAssetInvalidID      = "asset.invalid_id"

	// Upstream
	KeyUpstreamError = "upstream.error"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRange    = "validation.range"
	KeyValidationAddress  = "validation.invalid_address"
)
