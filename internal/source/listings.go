package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"admarkt/alert-service/internal/model"
)

// ListingReader reads recent rows from the externally-owned listings
// projection table. Used by the periodic re-scan as a correctness backstop
// for criteria created or reactivated after an event already fired.
type ListingReader struct {
	pool *pgxpool.Pool
}

// NewListingReader returns a reader over the listings projection.
func NewListingReader(pool *pgxpool.Pool) *ListingReader {
	return &ListingReader{pool: pool}
}

// RecentActive returns active listings created since the given time.
func (r *ListingReader) RecentActive(ctx context.Context, since time.Time) ([]model.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, category_id, price, currency,
		        latitude, longitude, created_at, is_active, status
		 FROM listings
		 WHERE is_active = true AND created_at >= $1
		 ORDER BY created_at`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent listings: %w", err)
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		var l model.Listing
		if err := rows.Scan(
			&l.ID, &l.Title, &l.Description, &l.CategoryID, &l.Price, &l.Currency,
			&l.Latitude, &l.Longitude, &l.CreatedAt, &l.IsActive, &l.Status,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
