package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"eduprima/internal/matching"
	"eduprima/internal/store"
)

const DefaultView = "tutor_search_view"

var viewColumns = []string{
	"id", "name", "subjects", "hourly_rate", "latitude", "longitude",
	"experience", "availability", "teaching_styles", "rating",
}

// StoreSource reads candidates from the denormalised tutor view.
type StoreSource struct {
	store    store.RecordStore
	view     string
	pageSize int
}

// NewStoreSource reads view in pages of pageSize rows. A pageSize of 0 reads
// every matching row in one query.
func NewStoreSource(rs store.RecordStore, view string, pageSize int) *StoreSource {
	if view == "" {
		view = DefaultView
	}
	return &StoreSource{store: rs, view: view, pageSize: pageSize}
}

// Candidates returns every row that passes the query's hard filters. Paging
// only bounds each round trip; ranking is left to the engine.
func (s *StoreSource) Candidates(ctx context.Context, query matching.SearchQuery) ([]matching.Candidate, error) {
	filters := hardFilters(query)

	var out []matching.Candidate
	lastID := ""
	for {
		page := filters
		if lastID != "" {
			page = append(append([]store.Filter{}, filters...), store.Gt("id", lastID))
		}

		rows, err := s.store.Select(ctx, s.view, viewColumns, store.SelectOptions{OrderBy: "id", Limit: s.pageSize}, page...)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", s.view, err)
		}
		for _, row := range rows {
			out = append(out, rowToCandidate(row))
		}

		if s.pageSize <= 0 || len(rows) < s.pageSize {
			break
		}
		lastID = asString(rows[len(rows)-1]["id"])
		if lastID == "" {
			return nil, fmt.Errorf("select %s: row without id, cannot page", s.view)
		}
	}

	if out == nil {
		out = []matching.Candidate{}
	}
	return out, nil
}

// hardFilters pushes down the parts of query that drop candidates outright.
// Subjects, price and distance are scored, not filtered, so they stay out.
func hardFilters(query matching.SearchQuery) []store.Filter {
	var filters []store.Filter
	if term := strings.TrimSpace(query.Term); term != "" {
		filters = append(filters, store.ILike("name", "%"+escapeLike(term)+"%"))
	}
	if query.ExcludeBelowMinRating && query.MinRating != nil && *query.MinRating > 0 {
		filters = append(filters, store.Gte("rating", *query.MinRating))
	}
	return filters
}

func rowToCandidate(row store.Row) matching.Candidate {
	c := matching.Candidate{
		ID:             asString(row["id"]),
		Name:           row.String("name"),
		Subjects:       asStrings(row["subjects"]),
		Experience:     row.String("experience"),
		Availability:   asStrings(row["availability"]),
		TeachingStyles: asStrings(row["teaching_styles"]),
	}
	if price, ok := asFloat(row["hourly_rate"]); ok {
		c.HourlyPrice = &price
	}
	if rating, ok := asFloat(row["rating"]); ok {
		c.Rating = rating
	}

	lat, latOK := asFloat(row["latitude"])
	lng, lngOK := asFloat(row["longitude"])
	if latOK && lngOK {
		c.Location = &matching.GeoPoint{Lat: lat, Lng: lng}
	}
	return c
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

// asFloat accepts the shapes database/sql hands back for numeric columns.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asStrings accepts native slices, Postgres array literals ({a,b}) and JSON arrays.
func asStrings(v interface{}) []string {
	switch s := v.(type) {
	case nil:
		return nil
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if e != nil {
				out = append(out, fmt.Sprint(e))
			}
		}
		return out
	case []byte:
		return parseArrayText(string(s))
	case string:
		return parseArrayText(s)
	default:
		return nil
	}
}

func parseArrayText(text string) []string {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil
	case strings.HasPrefix(text, "{"):
		var arr pq.StringArray
		if err := arr.Scan(text); err == nil {
			return []string(arr)
		}
	case strings.HasPrefix(text, "["):
		var arr []string
		if err := json.Unmarshal([]byte(text), &arr); err == nil {
			return arr
		}
	}
	return []string{text}
}
