// Package matcher implements the pure criteria-versus-listing evaluation.
//
// All matching is stateless: one listing snapshot against the current set of
// active criteria. Absent constraints are vacuously satisfied; a present
// constraint the listing cannot answer (no price, no coordinates) is a
// non-match, not an error.
package matcher

import (
	"fmt"
	"strings"
	"time"

	"admarkt/alert-service/internal/geo"
	"admarkt/alert-service/internal/model"
)

// Match evaluates a single criteria against a listing snapshot.
// It returns whether every present constraint holds, and the computed
// distance in km when the criteria is geo-constrained and matched.
//
// The criteria is assumed validated at write time; an invariant violation
// here is a programming error and is returned as such rather than skipped.
func Match(l *model.Listing, c *model.Criteria) (bool, *float64, error) {
	if err := c.Validate(); err != nil {
		return false, nil, fmt.Errorf("criteria %s violates invariants: %w", c.ID, err)
	}

	if !keywordsMatch(l, c.Keywords) {
		return false, nil, nil
	}

	if c.CategoryID != nil && l.CategoryID != *c.CategoryID {
		return false, nil, nil
	}

	if c.MinPrice != nil || c.MaxPrice != nil {
		// Ambiguous-price listings are excluded, not included.
		if l.Price == nil {
			return false, nil, nil
		}
		if c.MinPrice != nil && *l.Price < *c.MinPrice {
			return false, nil, nil
		}
		if c.MaxPrice != nil && *l.Price > *c.MaxPrice {
			return false, nil, nil
		}
	}

	if c.HasGeo() {
		// The user explicitly asked for a radius: a listing without
		// coordinates cannot satisfy it.
		if !l.HasCoordinates() {
			return false, nil, nil
		}
		dist, err := geo.Distance(*c.Latitude, *c.Longitude, *l.Latitude, *l.Longitude)
		if err != nil {
			return false, nil, fmt.Errorf("criteria %s: %w", c.ID, err)
		}
		if dist > *c.RadiusKm {
			return false, nil, nil
		}
		return true, &dist, nil
	}

	return true, nil, nil
}

// keywordsMatch reports whether every token appears case-insensitively in
// the listing title or description. An empty token set always passes.
func keywordsMatch(l *model.Listing, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}
	title := strings.ToLower(l.Title)
	desc := strings.ToLower(l.Description)
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if !strings.Contains(title, tok) && !strings.Contains(desc, tok) {
			return false
		}
	}
	return true
}

// Evaluate runs Match for one listing across a criteria batch and returns a
// MatchEvent per hit. Inactive criteria are skipped before any constraint
// (or distance) is evaluated. An invariant violation on any criteria rejects
// the whole batch.
func Evaluate(l *model.Listing, criteria []model.Criteria, now time.Time) ([]model.MatchEvent, error) {
	var events []model.MatchEvent
	for i := range criteria {
		c := &criteria[i]
		if !c.IsActive {
			continue
		}
		ok, dist, err := Match(l, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		events = append(events, model.MatchEvent{
			CriteriaID: c.ID,
			OwnerID:    c.OwnerID,
			ListingID:  l.ID,
			MatchedAt:  now,
			DistanceKm: dist,
		})
	}
	return events, nil
}
