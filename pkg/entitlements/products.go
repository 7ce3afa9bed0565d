package entitlements

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/dochieno/lawafrica-entitlements/pkg/observability"
)

const productColumns = `id, name, available_to_institutions, institution_access_model, access_model, included_in_institution_bundle, created_at, updated_at`

// ProductStore reads content products from PostgreSQL with a small expirable
// LRU in front. Products change rarely, so a short TTL keeps the resolver's
// per-request work down to subscription lookups.
type ProductStore struct {
	db      *sql.DB
	byID    *lru.LRU[int64, *ContentProduct]
	byName  *lru.LRU[string, *ContentProduct]
	metrics *observability.Metrics
}

// NewProductStore creates a product store. cacheSize and cacheTTL size the
// LRU; metrics may be nil.
func NewProductStore(db *sql.DB, cacheSize int, cacheTTL time.Duration, metrics *observability.Metrics) *ProductStore {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &ProductStore{
		db:      db,
		byID:    lru.NewLRU[int64, *ContentProduct](cacheSize, nil, cacheTTL),
		byName:  lru.NewLRU[string, *ContentProduct](cacheSize, nil, cacheTTL),
		metrics: metrics,
	}
}

func (s *ProductStore) recordHit() {
	if s.metrics != nil {
		s.metrics.ProductCacheHitsTotal.Inc()
	}
}

func (s *ProductStore) recordMiss() {
	if s.metrics != nil {
		s.metrics.ProductCacheMissesTotal.Inc()
	}
}

func scanProduct(row *sql.Row) (*ContentProduct, error) {
	p := &ContentProduct{}
	var institutionModel, legacyModel sql.NullString
	err := row.Scan(
		&p.ID, &p.Name, &p.AvailableToInstitutions,
		&institutionModel, &legacyModel,
		&p.IncludedInInstitutionBundle, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.InstitutionAccessModel = AccessModel(institutionModel.String)
	p.LegacyAccessModel = AccessModel(legacyModel.String)
	return p, nil
}

// GetProduct retrieves a content product by id. Returns (nil, nil) when no
// such product exists.
func (s *ProductStore) GetProduct(ctx context.Context, id int64) (*ContentProduct, error) {
	if p, ok := s.byID.Get(id); ok {
		s.recordHit()
		return p, nil
	}
	s.recordMiss()

	query := `SELECT ` + productColumns + ` FROM content_products WHERE id = $1`
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content product: %w", err)
	}

	s.byID.Add(p.ID, p)
	s.byName.Add(p.Name, p)
	return p, nil
}

// GetProductByName retrieves a content product by its unique name. Returns
// (nil, nil) when no such product exists.
func (s *ProductStore) GetProductByName(ctx context.Context, name string) (*ContentProduct, error) {
	if p, ok := s.byName.Get(name); ok {
		s.recordHit()
		return p, nil
	}
	s.recordMiss()

	query := `SELECT ` + productColumns + ` FROM content_products WHERE name = $1`
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content product by name: %w", err)
	}

	s.byID.Add(p.ID, p)
	s.byName.Add(p.Name, p)
	return p, nil
}

// Invalidate drops a product from both caches, for callers that just wrote
// one.
func (s *ProductStore) Invalidate(id int64, name string) {
	s.byID.Remove(id)
	s.byName.Remove(name)
}
