package entitlements

import "time"

// AccessModel represents how a content product is sold
type AccessModel string

const (
	AccessModelUnknown      AccessModel = "unknown"
	AccessModelSubscription AccessModel = "subscription"
	AccessModelOpenAccess   AccessModel = "open_access"
	AccessModelPerDocument  AccessModel = "per_document"
)

// ContentProduct represents a sellable content collection
type ContentProduct struct {
	ID                      int64       `json:"id"`
	Name                    string      `json:"name"`
	AvailableToInstitutions bool        `json:"available_to_institutions"`
	InstitutionAccessModel  AccessModel `json:"institution_access_model"`
	// LegacyAccessModel is the pre-split access model column, consulted only
	// when InstitutionAccessModel was never set.
	LegacyAccessModel           AccessModel `json:"access_model"`
	IncludedInInstitutionBundle bool        `json:"included_in_institution_bundle"`
	CreatedAt                   time.Time   `json:"created_at"`
	UpdatedAt                   time.Time   `json:"updated_at"`
}

// EffectiveInstitutionAccessModel returns the institution access model,
// falling back to the legacy column when the dedicated one is unset.
func (p *ContentProduct) EffectiveInstitutionAccessModel() AccessModel {
	if p.InstitutionAccessModel != "" && p.InstitutionAccessModel != AccessModelUnknown {
		return p.InstitutionAccessModel
	}
	return p.LegacyAccessModel
}

// Denial reasons returned by CheckAccess. Denial is a normal result, not an
// error; these strings surface directly in responses and logs.
const (
	ReasonInstitutionNotFound  = "institution not found"
	ReasonProductNotFound      = "content product not found"
	ReasonProductNotAvailable  = "product not available to institutions"
	ReasonNotSubscriptionBased = "product is not subscription-based for institutions"
	ReasonExcludedFromBundle   = "product excluded from bundle; requires separate subscription"
	ReasonBundleNotConfigured  = "bundle product not configured"
	ReasonNoValidSubscription  = "no valid subscription found"

	ReasonDirectSubscription = "valid direct subscription"
	ReasonBundleSubscription = "valid bundle subscription"
)

// AccessResult represents the resolved entitlement for an
// (institution, product) pair at an instant
type AccessResult struct {
	HasAccess bool   `json:"has_access"`
	ViaDirect bool   `json:"via_direct"`
	ViaBundle bool   `json:"via_bundle"`
	Reason    string `json:"reason"`
}
