package entitlements

import (
	"context"
	"time"

	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
	"github.com/dochieno/lawafrica-entitlements/pkg/subscriptions"
)

// DefaultBundleProductName is the well-known name of the shared bundle
// product every opted-in product is reachable through.
const DefaultBundleProductName = "LawAfrica Institutional Bundle"

// InstitutionSource is the institution lookup the resolver needs
type InstitutionSource interface {
	InstitutionExists(ctx context.Context, id int64) (bool, error)
}

// SubscriptionSource is the subscription lookup the resolver needs. A nil
// subscription with a nil error means the pair has no subscription history.
type SubscriptionSource interface {
	LatestForProduct(ctx context.Context, institutionID, productID int64) (*subscriptions.Subscription, error)
}

// AccessResolver decides whether an institution may access a content product
// at an instant. It is stateless and read-only, safe under unbounded
// concurrent callers.
type AccessResolver struct {
	institutions  InstitutionSource
	products      *ProductStore
	subscriptions SubscriptionSource
	bundleName    string
	metrics       *observability.Metrics
}

// NewAccessResolver creates a resolver. bundleName falls back to
// DefaultBundleProductName when empty; metrics may be nil.
func NewAccessResolver(institutions InstitutionSource, products *ProductStore, subs SubscriptionSource, bundleName string, metrics *observability.Metrics) *AccessResolver {
	if bundleName == "" {
		bundleName = DefaultBundleProductName
	}
	return &AccessResolver{
		institutions:  institutions,
		products:      products,
		subscriptions: subs,
		bundleName:    bundleName,
		metrics:       metrics,
	}
}

// CheckAccess resolves the entitlement for (institution, product) at asOf; a
// zero asOf means now. Denial is a normal result carrying a reason; the
// error return is only for store failures.
//
// Precedence is deliberate and short-circuiting: a valid direct subscription
// wins without bundle eligibility ever being inspected, and a product
// excluded from the bundle can never fall back to it, no matter how valid
// the bundle subscription is.
func (r *AccessResolver) CheckAccess(ctx context.Context, institutionID, productID int64, asOf time.Time) (*AccessResult, error) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.AccessCheckDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = asOf.UTC()

	exists, err := r.institutions.InstitutionExists(ctx, institutionID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return r.deny(ReasonInstitutionNotFound), nil
	}

	product, err := r.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return r.deny(ReasonProductNotFound), nil
	}
	if !product.AvailableToInstitutions {
		return r.deny(ReasonProductNotAvailable), nil
	}
	if product.EffectiveInstitutionAccessModel() != AccessModelSubscription {
		return r.deny(ReasonNotSubscriptionBased), nil
	}

	direct, err := r.subscriptions.LatestForProduct(ctx, institutionID, productID)
	if err != nil {
		return nil, err
	}
	if direct != nil && direct.ValidAt(asOf) {
		return r.grant(ReasonDirectSubscription, "direct"), nil
	}

	if !product.IncludedInInstitutionBundle {
		return r.deny(ReasonExcludedFromBundle), nil
	}

	bundle, err := r.products.GetProductByName(ctx, r.bundleName)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return r.deny(ReasonBundleNotConfigured), nil
	}

	bundleSub, err := r.subscriptions.LatestForProduct(ctx, institutionID, bundle.ID)
	if err != nil {
		return nil, err
	}
	if bundleSub != nil && bundleSub.ValidAt(asOf) {
		return r.grant(ReasonBundleSubscription, "bundle"), nil
	}

	return r.deny(ReasonNoValidSubscription), nil
}

func (r *AccessResolver) grant(reason, via string) *AccessResult {
	if r.metrics != nil {
		r.metrics.AccessChecksTotal.WithLabelValues("granted", via).Inc()
	}
	return &AccessResult{
		HasAccess: true,
		ViaDirect: via == "direct",
		ViaBundle: via == "bundle",
		Reason:    reason,
	}
}

func (r *AccessResolver) deny(reason string) *AccessResult {
	if r.metrics != nil {
		r.metrics.AccessChecksTotal.WithLabelValues("denied", "none").Inc()
		r.metrics.AccessDenialsTotal.WithLabelValues(reason).Inc()
	}
	return &AccessResult{Reason: reason}
}
