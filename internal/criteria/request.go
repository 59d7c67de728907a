package criteria

import (
	"github.com/go-playground/validator/v10"

	"admarkt/alert-service/internal/model"
)

var validate = validator.New()

// UpsertRequest is the JSON body accepted by create and update.
// Keywords arrive as free text and are tokenized server-side.
type UpsertRequest struct {
	Name          string   `json:"name" validate:"required,max=120"`
	Keywords      string   `json:"keywords" validate:"max=500"`
	CategoryID    *string  `json:"categoryId" validate:"omitempty,max=64"`
	MinPrice      *float64 `json:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice      *float64 `json:"maxPrice" validate:"omitempty,gte=0"`
	LocationLabel *string  `json:"locationLabel" validate:"omitempty,max=200"`
	Latitude      *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	RadiusKm      *float64 `json:"radiusKm" validate:"omitempty,gt=0"`
	IsActive      *bool    `json:"isActive"`
}

// toCriteria validates the request and builds the normalized model.
// Field-level checks run through the validator tags; cross-field invariants
// (price ordering, radius/anchor pairing) through Criteria.Validate.
func (r UpsertRequest) toCriteria(ownerID string) (*model.Criteria, error) {
	if err := validate.Struct(r); err != nil {
		return nil, &model.ValidationError{Msg: validationMessage(err)}
	}

	keywords := model.NormalizeKeywords(r.Keywords)
	if keywords == nil {
		keywords = []string{} // keywords column is NOT NULL
	}

	c := &model.Criteria{
		OwnerID:       ownerID,
		Name:          r.Name,
		Keywords:      keywords,
		CategoryID:    r.CategoryID,
		MinPrice:      r.MinPrice,
		MaxPrice:      r.MaxPrice,
		LocationLabel: r.LocationLabel,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		RadiusKm:      r.RadiusKm,
		IsActive:      true,
	}
	if r.IsActive != nil {
		c.IsActive = *r.IsActive
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validationMessage flattens the first validator violation into a short
// user-facing message.
func validationMessage(err error) string {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "max":
			return fe.Field() + " is too long"
		case "gte", "lte", "gt":
			return fe.Field() + " is out of range"
		}
		return fe.Field() + " is invalid"
	}
	return "invalid request"
}
