package entitlements

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dochieno/lawafrica-entitlements/pkg/subscriptions"
)

type fakeInstitutionSource struct {
	exists bool
	err    error
}

func (f *fakeInstitutionSource) InstitutionExists(ctx context.Context, id int64) (bool, error) {
	return f.exists, f.err
}

// fakeSubscriptionSource returns per-product latest subscriptions and records
// which products were consulted.
type fakeSubscriptionSource struct {
	byProduct map[int64]*subscriptions.Subscription
	err       error
	queried   []int64
}

func (f *fakeSubscriptionSource) LatestForProduct(ctx context.Context, institutionID, productID int64) (*subscriptions.Subscription, error) {
	f.queried = append(f.queried, productID)
	if f.err != nil {
		return nil, f.err
	}
	return f.byProduct[productID], nil
}

var productCols = []string{
	"id", "name", "available_to_institutions", "institution_access_model",
	"access_model", "included_in_institution_bundle", "created_at", "updated_at",
}

type productRow struct {
	id               int64
	name             string
	available        bool
	institutionModel any
	legacyModel      any
	inBundle         bool
}

func expectProductByID(mock sqlmock.Sqlmock, p productRow) {
	mock.ExpectQuery("SELECT (.+) FROM content_products WHERE id").
		WithArgs(p.id).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(p.id, p.name, p.available, p.institutionModel, p.legacyModel, p.inBundle, time.Now(), time.Now()))
}

func expectProductByName(mock sqlmock.Sqlmock, p productRow) {
	mock.ExpectQuery("SELECT (.+) FROM content_products WHERE name").
		WithArgs(p.name).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(p.id, p.name, p.available, p.institutionModel, p.legacyModel, p.inBundle, time.Now(), time.Now()))
}

// newTestResolver builds a resolver over a fresh product cache so tests never
// see each other's cached rows.
func newTestResolver(t *testing.T, inst *fakeInstitutionSource, subs *fakeSubscriptionSource) (*AccessResolver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	products := NewProductStore(db, 16, time.Minute, nil)
	return NewAccessResolver(inst, products, subs, "", nil), mock
}

func validSub(productID int64, now time.Time) *subscriptions.Subscription {
	return &subscriptions.Subscription{
		ID:               1,
		InstitutionID:    3,
		ContentProductID: productID,
		Status:           subscriptions.StatusActive,
		StartDate:        now.Add(-24 * time.Hour),
		EndDate:          now.Add(24 * time.Hour),
	}
}

func TestCheckAccess_InstitutionNotFound(t *testing.T) {
	subs := &fakeSubscriptionSource{}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: false}, subs)

	result, err := resolver.CheckAccess(context.Background(), 404, 10, time.Now())
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonInstitutionNotFound, result.Reason)
	assert.Empty(t, subs.queried, "no subscription lookup for an unknown institution")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_ProductNotFound(t *testing.T) {
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, &fakeSubscriptionSource{})

	mock.ExpectQuery("SELECT (.+) FROM content_products WHERE id").
		WithArgs(int64(10)).
		WillReturnError(sql.ErrNoRows)

	result, err := resolver.CheckAccess(context.Background(), 3, 10, time.Now())
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonProductNotFound, result.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_ProductNotAvailable(t *testing.T) {
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, &fakeSubscriptionSource{})

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: false,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, time.Now())
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonProductNotAvailable, result.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_NotSubscriptionBased(t *testing.T) {
	subs := &fakeSubscriptionSource{}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	expectProductByID(mock, productRow{
		id: 10, name: "Open Gazette Archive", available: true,
		institutionModel: "open_access", legacyModel: nil, inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, time.Now())
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonNotSubscriptionBased, result.Reason)
	assert.Empty(t, subs.queried, "non-subscription products never reach subscription lookup")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_LegacyModelFallback(t *testing.T) {
	now := time.Now().UTC()
	subs := &fakeSubscriptionSource{byProduct: map[int64]*subscriptions.Subscription{
		10: validSub(10, now),
	}}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	// institution_access_model never set; the legacy column decides.
	expectProductByID(mock, productRow{
		id: 10, name: "East Africa Court Digest", available: true,
		institutionModel: nil, legacyModel: "subscription", inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, now)
	require.NoError(t, err)
	assert.True(t, result.HasAccess)
	assert.Equal(t, ReasonDirectSubscription, result.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_DirectSubscriptionWins(t *testing.T) {
	now := time.Now().UTC()
	subs := &fakeSubscriptionSource{byProduct: map[int64]*subscriptions.Subscription{
		10: validSub(10, now),
	}}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, now)
	require.NoError(t, err)
	assert.True(t, result.HasAccess)
	assert.True(t, result.ViaDirect)
	assert.False(t, result.ViaBundle)
	assert.Equal(t, ReasonDirectSubscription, result.Reason)
	// Direct access short-circuits: the bundle product is never looked up.
	assert.Equal(t, []int64{10}, subs.queried)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_ExcludedFromBundleIsAbsolute(t *testing.T) {
	now := time.Now().UTC()
	// A perfectly valid bundle subscription exists, but the product opted out.
	subs := &fakeSubscriptionSource{byProduct: map[int64]*subscriptions.Subscription{
		99: validSub(99, now),
	}}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	expectProductByID(mock, productRow{
		id: 10, name: "Premium Practice Notes", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: false,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, now)
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonExcludedFromBundle, result.Reason)
	// Only the direct lookup ran; the bundle path was never consulted.
	assert.Equal(t, []int64{10}, subs.queried)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_BundleNotConfigured(t *testing.T) {
	subs := &fakeSubscriptionSource{}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})
	mock.ExpectQuery("SELECT (.+) FROM content_products WHERE name").
		WithArgs(DefaultBundleProductName).
		WillReturnError(sql.ErrNoRows)

	result, err := resolver.CheckAccess(context.Background(), 3, 10, time.Now())
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonBundleNotConfigured, result.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_BundleSubscriptionGrants(t *testing.T) {
	now := time.Now().UTC()
	subs := &fakeSubscriptionSource{byProduct: map[int64]*subscriptions.Subscription{
		// No direct subscription for product 10; bundle product 99 is valid.
		99: validSub(99, now),
	}}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})
	expectProductByName(mock, productRow{
		id: 99, name: DefaultBundleProductName, available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, now)
	require.NoError(t, err)
	assert.True(t, result.HasAccess)
	assert.False(t, result.ViaDirect)
	assert.True(t, result.ViaBundle)
	assert.Equal(t, ReasonBundleSubscription, result.Reason)
	assert.Equal(t, []int64{10, 99}, subs.queried)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_NoValidSubscription(t *testing.T) {
	now := time.Now().UTC()
	// Direct subscription exists but expired; bundle subscription suspended.
	expired := validSub(10, now)
	expired.EndDate = now.Add(-time.Hour)
	expired.Status = subscriptions.StatusExpired
	suspended := validSub(99, now)
	suspended.Status = subscriptions.StatusSuspended

	subs := &fakeSubscriptionSource{byProduct: map[int64]*subscriptions.Subscription{
		10: expired,
		99: suspended,
	}}
	resolver, mock := newTestResolver(t, &fakeInstitutionSource{exists: true}, subs)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})
	expectProductByName(mock, productRow{
		id: 99, name: DefaultBundleProductName, available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, now)
	require.NoError(t, err)
	assert.False(t, result.HasAccess)
	assert.Equal(t, ReasonNoValidSubscription, result.Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_CustomBundleName(t *testing.T) {
	now := time.Now().UTC()
	subs := &fakeSubscriptionSource{byProduct: map[int64]*subscriptions.Subscription{
		77: validSub(77, now),
	}}
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	products := NewProductStore(db, 16, time.Minute, nil)
	resolver := NewAccessResolver(&fakeInstitutionSource{exists: true}, products, subs, "Campus Bundle", nil)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})
	expectProductByName(mock, productRow{
		id: 77, name: "Campus Bundle", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, now)
	require.NoError(t, err)
	assert.True(t, result.ViaBundle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAccess_StoreErrorPropagates(t *testing.T) {
	srcErr := errors.New("replica down")
	resolver, _ := newTestResolver(t, &fakeInstitutionSource{err: srcErr}, &fakeSubscriptionSource{})

	result, err := resolver.CheckAccess(context.Background(), 3, 10, time.Now())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, srcErr)
}
