// Package model defines shared data structures for the alert service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ─── Criteria ────────────────────────────────────────────────────────────────

// Criteria mirrors a criteria table row: one standing query owned by a user.
// Watchlists, saved searches and nearby alerts all populate this same shape.
type Criteria struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	Name          string    `json:"name"`
	Keywords      []string  `json:"keywords"` // lowercase tokens, AND semantics
	CategoryID    *string   `json:"categoryId"`
	MinPrice      *float64  `json:"minPrice"`
	MaxPrice      *float64  `json:"maxPrice"`
	LocationLabel *string   `json:"locationLabel"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	RadiusKm      *float64  `json:"radiusKm"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// HasGeo reports whether the criteria carries a complete geo constraint
// (anchor coordinate plus radius).
func (c *Criteria) HasGeo() bool {
	return c.Latitude != nil && c.Longitude != nil && c.RadiusKm != nil
}

// Validate checks the cross-field invariants that must hold before a
// criteria row is written or evaluated. Violations are reported as a
// *ValidationError so handlers can surface them verbatim.
func (c *Criteria) Validate() error {
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		return &ValidationError{Msg: "minPrice must not exceed maxPrice"}
	}
	if c.RadiusKm != nil {
		if *c.RadiusKm <= 0 {
			return &ValidationError{Msg: "radiusKm must be greater than zero"}
		}
		if c.Latitude == nil || c.Longitude == nil {
			return &ValidationError{Msg: "radiusKm requires an anchor latitude and longitude"}
		}
	}
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return &ValidationError{Msg: "latitude and longitude must be set together"}
	}
	if c.Latitude != nil && (*c.Latitude < -90 || *c.Latitude > 90) {
		return &ValidationError{Msg: "latitude must be within [-90, 90]"}
	}
	if c.Longitude != nil && (*c.Longitude < -180 || *c.Longitude > 180) {
		return &ValidationError{Msg: "longitude must be within [-180, 180]"}
	}
	return nil
}

// NormalizeKeywords splits raw free text into the lowercase token set stored
// on a criteria row. Whitespace separates tokens; empty input yields nil.
func NormalizeKeywords(raw string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(raw)))
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// ─── Listing ─────────────────────────────────────────────────────────────────

// Listing is the read-only snapshot of a marketplace ad consumed by the
// engine. The listing store itself is owned elsewhere; this projection
// arrives inside listing events and via the recent-listings window.
type Listing struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId"`
	Price       *float64  `json:"price"`
	Currency    string    `json:"currency"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	CreatedAt   time.Time `json:"createdAt"`
	IsActive    bool      `json:"isActive"`
	Status      string    `json:"status"`
}

// HasCoordinates reports whether the listing carries a usable coordinate pair.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// ─── Listing events ──────────────────────────────────────────────────────────

// ChangeKind values mirror the change_kind field on the listing event stream.
type ChangeKind string

const (
	ChangeCreated         ChangeKind = "created"
	ChangeReactivated     ChangeKind = "reactivated"
	ChangePriceChanged    ChangeKind = "price_changed"
	ChangeCategoryChanged ChangeKind = "category_changed"
	ChangeLocationChanged ChangeKind = "location_changed"
)

// ParseChangeKind converts a raw string to a ChangeKind, returning an error
// for unknown values. Unknown kinds are dropped at the stream boundary so
// the engine only re-evaluates on changes relevant to matching.
func ParseChangeKind(s string) (ChangeKind, error) {
	k := ChangeKind(s)
	switch k {
	case ChangeCreated, ChangeReactivated, ChangePriceChanged, ChangeCategoryChanged, ChangeLocationChanged:
		return k, nil
	}
	return "", fmt.Errorf("unknown change kind %q", s)
}

// ListingEvent is one entry from the listing event stream: a listing became
// visible, or a field relevant to matching changed.
type ListingEvent struct {
	ListingID string     `json:"listingId"`
	Kind      ChangeKind `json:"kind"`
	Listing   Listing    `json:"listing"`
}

// ─── Engine records ──────────────────────────────────────────────────────────

// MatchEvent is the ephemeral result of the matcher confirming one criteria
// against one listing. DistanceKm is set only for geo-constrained matches.
type MatchEvent struct {
	CriteriaID string    `json:"criteriaId"`
	OwnerID    string    `json:"ownerId"`
	ListingID  string    `json:"listingId"`
	MatchedAt  time.Time `json:"matchedAt"`
	DistanceKm *float64  `json:"distanceKm,omitempty"`
}

// Notification is the persisted, user-visible record that a listing matched
// a criteria. Created once per admitted (criteria, listing) pair; the engine
// never mutates it afterwards except through MarkRead.
type Notification struct {
	ID         string    `json:"id"`
	CriteriaID string    `json:"criteriaId"`
	ListingID  string    `json:"listingId"`
	OwnerID    string    `json:"ownerId"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DeadLetter is a listing event whose processing exhausted its retries.
// Kept for re-drive, never silently dropped.
type DeadLetter struct {
	ID        int64        `json:"id"`
	Event     ListingEvent `json:"event"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"createdAt"`
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a record is missing or not owned by the caller.
var ErrNotFound = fmt.Errorf("not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }
