package matching

import (
	"math"
	"sort"
	"strings"
)

// Config tunes the engine.
type Config struct {
	// DefaultRadiusKm applies when the query sets no radius.
	DefaultRadiusKm float64
	// ExperienceStep is the score lost per tier of shortfall.
	ExperienceStep float64
}

var DefaultConfig = Config{DefaultRadiusKm: 25, ExperienceStep: 0.35}

type Engine struct {
	cfg Config
}

// NewEngine fills zero fields of cfg from DefaultConfig.
func NewEngine(cfg Config) *Engine {
	if cfg.DefaultRadiusKm <= 0 {
		cfg.DefaultRadiusKm = DefaultConfig.DefaultRadiusKm
	}
	if cfg.ExperienceStep <= 0 {
		cfg.ExperienceStep = DefaultConfig.ExperienceStep
	}
	return &Engine{cfg: cfg}
}

var defaultEngine = NewEngine(DefaultConfig)

// Score ranks candidates with the default configuration.
func Score(candidates []Candidate, query SearchQuery, weights WeightProfile, origin *GeoPoint) ([]ScoredResult, error) {
	return defaultEngine.Score(candidates, query, weights, origin)
}

// prepared is a validated query with normalised tag sets.
type prepared struct {
	origin       *GeoPoint
	radiusKm     float64
	price        *PriceRange
	tier         *Tier
	subjects     []string
	availability []string
	styles       []string
	minRating    *float64
}

// Score computes a ScoredResult per candidate and sorts by match score desc,
// rating desc, id asc. origin, when non-nil, overrides query.Target. The input
// slice is not modified.
func (e *Engine) Score(candidates []Candidate, query SearchQuery, weights WeightProfile, origin *GeoPoint) ([]ScoredResult, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	p, err := e.prepare(query, origin)
	if err != nil {
		return nil, err
	}

	results := make([]ScoredResult, 0, len(candidates))
	for _, c := range candidates {
		var b Breakdown
		var distance *float64

		b.Distance, distance = p.distanceScore(c)
		if query.FilterByRadius && distance != nil && *distance > p.radiusKm {
			continue
		}
		if query.ExcludeBelowMinRating && p.minRating != nil && c.Rating < *p.minRating {
			continue
		}

		b.Price = p.priceScore(c.HourlyPrice)
		b.Experience = e.experienceScore(p.tier, c.Experience)
		b.Availability = overlap(p.availability, c.Availability)
		b.Subjects = overlap(p.subjects, c.Subjects)
		b.Rating = p.ratingScore(c.Rating)
		b.TeachingStyles = overlap(p.styles, c.TeachingStyles)

		results = append(results, ScoredResult{
			Candidate:  c,
			DistanceKm: distance,
			MatchScore: combine(weights, b),
			Breakdown:  b,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.Candidate.Rating != b.Candidate.Rating {
			return a.Candidate.Rating > b.Candidate.Rating
		}
		return a.Candidate.ID < b.Candidate.ID
	})
	return results, nil
}

func (e *Engine) prepare(q SearchQuery, origin *GeoPoint) (*prepared, error) {
	p := &prepared{radiusKm: e.cfg.DefaultRadiusKm}

	if q.Target != nil && !q.Target.Valid() {
		return nil, invalid("target", "coordinates out of range (%v, %v)", q.Target.Lat, q.Target.Lng)
	}
	if origin != nil && !origin.Valid() {
		return nil, invalid("origin", "coordinates out of range (%v, %v)", origin.Lat, origin.Lng)
	}
	p.origin = q.Target
	if origin != nil {
		p.origin = origin
	}

	if q.RadiusKm != nil {
		r := *q.RadiusKm
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			return nil, invalid("radiusKm", "must be a positive number, got %v", r)
		}
		p.radiusKm = r
	}

	if q.Price != nil {
		if q.Price.Min != nil && *q.Price.Min < 0 {
			return nil, invalid("price.min", "must not be negative")
		}
		if q.Price.Max != nil && *q.Price.Max < 0 {
			return nil, invalid("price.max", "must not be negative")
		}
		if q.Price.Min != nil && q.Price.Max != nil && *q.Price.Min > *q.Price.Max {
			return nil, invalid("price", "min %v exceeds max %v", *q.Price.Min, *q.Price.Max)
		}
		if q.Price.Min != nil || q.Price.Max != nil {
			p.price = q.Price
		}
	}

	if strings.TrimSpace(q.ExperienceTier) != "" {
		tier, ok := parseRequestedTier(q.ExperienceTier)
		if !ok {
			return nil, invalid("experienceTier", "unknown tier %q", q.ExperienceTier)
		}
		p.tier = &tier
	}

	if q.MinRating != nil {
		if *q.MinRating < 0 || *q.MinRating > 5 {
			return nil, invalid("minRating", "must be within [0,5], got %v", *q.MinRating)
		}
		p.minRating = q.MinRating
	}

	p.subjects = normalizeTags(q.Subjects)
	p.availability = normalizeTags(q.Availability)
	p.styles = normalizeTags(q.TeachingStyles)
	return p, nil
}

// distanceScore is neutral when either point is unknown. Candidate points
// outside coordinate bounds count as unknown.
func (p *prepared) distanceScore(c Candidate) (float64, *float64) {
	if p.origin == nil || c.Location == nil || !c.Location.Valid() {
		return 1, nil
	}
	d := HaversineKm(*p.origin, *c.Location)
	return math.Max(0, 1-d/p.radiusKm), &d
}

// priceScore decays linearly outside the range, reaching 0 at twice the range
// width beyond the nearer bound. One-sided ranges use the bound as the width.
func (p *prepared) priceScore(price *float64) float64 {
	if p.price == nil || price == nil {
		return 1
	}
	v := *price
	lo, hi := p.price.Min, p.price.Max

	if (lo == nil || v >= *lo) && (hi == nil || v <= *hi) {
		return 1
	}

	var overshoot, span float64
	switch {
	case lo != nil && hi != nil:
		span = 2 * (*hi - *lo)
		if v < *lo {
			overshoot = *lo - v
		} else {
			overshoot = v - *hi
		}
	case lo != nil:
		span = *lo
		overshoot = *lo - v
	default:
		span = *hi
		overshoot = v - *hi
	}
	if span <= 0 {
		return 0
	}
	return math.Max(0, 1-overshoot/span)
}

func (e *Engine) experienceScore(requested *Tier, descriptor string) float64 {
	if requested == nil {
		return 1
	}
	have, _ := ParseTier(descriptor)
	shortfall := int(*requested) - int(have)
	if shortfall <= 0 {
		return 1
	}
	return math.Max(0, 1-e.cfg.ExperienceStep*float64(shortfall))
}

func (p *prepared) ratingScore(rating float64) float64 {
	if p.minRating != nil && rating < *p.minRating {
		return 0
	}
	return clamp01(rating / 5)
}

// overlap is |requested ∩ have| / |requested|, neutral for an empty request.
func overlap(requested, have []string) float64 {
	if len(requested) == 0 {
		return 1
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[normalizeTag(t)] = struct{}{}
	}
	hits := 0
	for _, t := range requested {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(requested))
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := normalizeTag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func normalizeTag(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
