// Package criteria contains the business logic and HTTP surface for
// standing queries. It is the write boundary of the engine: every invariant
// the matcher assumes is enforced here, at creation and edit time.
package criteria

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"admarkt/alert-service/internal/model"
)

const criteriaColumns = `id, owner_id, name, keywords, category_id, min_price, max_price,
	location_label, latitude, longitude, radius_km, is_active, created_at, updated_at`

// Service encapsulates criteria persistence and validation.
// It has no dependency on net/http — the handler layer sits on top.
type Service struct {
	pool *pgxpool.Pool
}

// NewService returns a configured Service.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Create validates and inserts a new criteria for ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, req UpsertRequest) (*model.Criteria, error) {
	c, err := req.toCriteria(ownerID)
	if err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()

	row := s.pool.QueryRow(ctx,
		`INSERT INTO criteria (id, owner_id, name, keywords, category_id, min_price, max_price,
		                       location_label, latitude, longitude, radius_km, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+criteriaColumns,
		c.ID, c.OwnerID, c.Name, c.Keywords, c.CategoryID, c.MinPrice, c.MaxPrice,
		c.LocationLabel, c.Latitude, c.Longitude, c.RadiusKm, c.IsActive,
	)
	out, err := scanCriteria(row)
	if err != nil {
		return nil, fmt.Errorf("insert criteria: %w", err)
	}
	return out, nil
}

// Update validates and replaces the mutable fields of an existing criteria.
// Returns model.ErrNotFound if the row is missing or owned by someone else.
func (s *Service) Update(ctx context.Context, ownerID, id string, req UpsertRequest) (*model.Criteria, error) {
	c, err := req.toCriteria(ownerID)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE criteria
		 SET name = $1, keywords = $2, category_id = $3, min_price = $4, max_price = $5,
		     location_label = $6, latitude = $7, longitude = $8, radius_km = $9,
		     is_active = $10, updated_at = NOW()
		 WHERE id = $11 AND owner_id = $12
		 RETURNING `+criteriaColumns,
		c.Name, c.Keywords, c.CategoryID, c.MinPrice, c.MaxPrice,
		c.LocationLabel, c.Latitude, c.Longitude, c.RadiusKm, c.IsActive,
		id, ownerID,
	)
	out, err := scanCriteria(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("update criteria: %w", err)
	}
	return out, nil
}

// SetActive toggles the active flag. Inactive criteria are retained for
// history but excluded from matching until reactivated.
func (s *Service) SetActive(ctx context.Context, ownerID, id string, active bool) (*model.Criteria, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE criteria
		 SET is_active = $1, updated_at = NOW()
		 WHERE id = $2 AND owner_id = $3
		 RETURNING `+criteriaColumns,
		active, id, ownerID,
	)
	out, err := scanCriteria(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("toggle criteria: %w", err)
	}
	return out, nil
}

// Get returns a single criteria by ID, validating ownership.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Criteria, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+criteriaColumns+` FROM criteria WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	out, err := scanCriteria(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get criteria: %w", err)
	}
	return out, nil
}

// ListForOwner returns all criteria belonging to ownerID, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]model.Criteria, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+criteriaColumns+` FROM criteria WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()
	return scanCriteriaRows(rows)
}

// Delete removes a criteria permanently. Dispatch ledger rows for it are
// kept — the at-most-once history outlives the query that produced it.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM criteria WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete criteria: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ActiveCriteria returns every active criteria across all owners — the
// snapshot read the engine evaluates each listing event against.
func (s *Service) ActiveCriteria(ctx context.Context) ([]model.Criteria, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+criteriaColumns+` FROM criteria WHERE is_active = true`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active criteria: %w", err)
	}
	defer rows.Close()
	return scanCriteriaRows(rows)
}

// ─── Scan helpers ────────────────────────────────────────────────────────────

func scanCriteria(row pgx.Row) (*model.Criteria, error) {
	var c model.Criteria
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Name, &c.Keywords, &c.CategoryID, &c.MinPrice, &c.MaxPrice,
		&c.LocationLabel, &c.Latitude, &c.Longitude, &c.RadiusKm, &c.IsActive,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCriteriaRows(rows pgx.Rows) ([]model.Criteria, error) {
	out := make([]model.Criteria, 0)
	for rows.Next() {
		c, err := scanCriteria(rows)
		if err != nil {
			return nil, fmt.Errorf("scan criteria: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
