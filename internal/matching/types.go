// Package matching ranks tutor candidates against a search query. Everything
// here is a pure function of its inputs.
package matching

// GeoPoint is a WGS84 coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies within latitude and longitude bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Candidate is a tutor as read from the record store.
type Candidate struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Subjects       []string  `json:"subjects"`
	HourlyPrice    *float64  `json:"hourlyPrice,omitempty"`
	Location       *GeoPoint `json:"location,omitempty"`
	Experience     string    `json:"experience"`
	Availability   []string  `json:"availability"`
	TeachingStyles []string  `json:"teachingStyles"`
	Rating         float64   `json:"rating"`
}

// PriceRange holds inclusive bounds; either side may be open.
type PriceRange struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

type SearchQuery struct {
	Term           string      `json:"term,omitempty"`
	Subjects       []string    `json:"subjects,omitempty"`
	Target         *GeoPoint   `json:"target,omitempty"`
	RadiusKm       *float64    `json:"radiusKm,omitempty"`
	Price          *PriceRange `json:"price,omitempty"`
	Availability   []string    `json:"availability,omitempty"`
	TeachingStyles []string    `json:"teachingStyles,omitempty"`
	ExperienceTier string      `json:"experienceTier,omitempty"`
	MinRating      *float64    `json:"minRating,omitempty"`

	// FilterByRadius drops candidates whose known distance exceeds the radius.
	FilterByRadius bool `json:"filterByRadius,omitempty"`
	// ExcludeBelowMinRating drops candidates rated below MinRating.
	ExcludeBelowMinRating bool `json:"excludeBelowMinRating,omitempty"`
}

// WeightProfile holds relative, non-negative factor weights. They need not sum to 1.
type WeightProfile struct {
	Distance     float64 `json:"distance"`
	Price        float64 `json:"price"`
	Experience   float64 `json:"experience"`
	Availability float64 `json:"availability"`
	Subjects     float64 `json:"subjects"`
	Rating       float64 `json:"rating"`
}

// Breakdown records each sub-score in [0,1] before weighting.
type Breakdown struct {
	Distance     float64 `json:"distance"`
	Price        float64 `json:"price"`
	Experience   float64 `json:"experience"`
	Availability float64 `json:"availability"`
	Subjects     float64 `json:"subjects"`
	Rating       float64 `json:"rating"`
	// TeachingStyles is informational and carries no weight.
	TeachingStyles float64 `json:"teachingStyles"`
}

type ScoredResult struct {
	Candidate  Candidate `json:"candidate"`
	DistanceKm *float64  `json:"distanceKm,omitempty"`
	MatchScore float64   `json:"matchScore"`
	Breakdown  Breakdown `json:"matchBreakdown"`
}
