package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProduct_CachesByIDAndName(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProductStore(db, 16, time.Minute, nil)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	p, err := store.GetProduct(context.Background(), 10)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kenya Law Reports", p.Name)

	// Second fetch by id and a fetch by name both come from cache; no further
	// queries are expected on the mock.
	cached, err := store.GetProduct(context.Background(), 10)
	require.NoError(t, err)
	assert.Same(t, p, cached)

	byName, err := store.GetProductByName(context.Background(), "Kenya Law Reports")
	require.NoError(t, err)
	assert.Same(t, p, byName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct_MissingReturnsNilNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProductStore(db, 16, time.Minute, nil)

	mock.ExpectQuery("SELECT (.+) FROM content_products WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(productCols))

	p, err := store.GetProduct(context.Background(), 404)
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidate_DropsBothCacheEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewProductStore(db, 16, time.Minute, nil)

	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: true,
	})

	_, err = store.GetProduct(context.Background(), 10)
	require.NoError(t, err)

	store.Invalidate(10, "Kenya Law Reports")

	// Both lookups go back to the database after invalidation.
	expectProductByID(mock, productRow{
		id: 10, name: "Kenya Law Reports", available: true,
		institutionModel: "subscription", legacyModel: nil, inBundle: false,
	})

	p, err := store.GetProduct(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, p.IncludedInInstitutionBundle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEffectiveInstitutionAccessModel(t *testing.T) {
	tests := []struct {
		name     string
		product  ContentProduct
		expected AccessModel
	}{
		{
			name: "dedicated column set",
			product: ContentProduct{
				InstitutionAccessModel: AccessModelSubscription,
				LegacyAccessModel:      AccessModelOpenAccess,
			},
			expected: AccessModelSubscription,
		},
		{
			name: "falls back to legacy when unset",
			product: ContentProduct{
				LegacyAccessModel: AccessModelSubscription,
			},
			expected: AccessModelSubscription,
		},
		{
			name: "falls back to legacy when unknown",
			product: ContentProduct{
				InstitutionAccessModel: AccessModelUnknown,
				LegacyAccessModel:      AccessModelPerDocument,
			},
			expected: AccessModelPerDocument,
		},
		{
			name:     "both unset",
			product:  ContentProduct{},
			expected: AccessModel(""),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.product.EffectiveInstitutionAccessModel())
		})
	}
}
