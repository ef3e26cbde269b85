package candidates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"eduprima/internal/matching"
)

const defaultPageSize = 500

// ElasticsearchSource reads candidates from the tutors search index.
type ElasticsearchSource struct {
	client   *elasticsearch.Client
	index    string
	pageSize int
}

// NewElasticsearchSource pages through hits pageSize at a time with search_after.
func NewElasticsearchSource(client *elasticsearch.Client, index string, pageSize int) *ElasticsearchSource {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &ElasticsearchSource{client: client, index: index, pageSize: pageSize}
}

type tutorDocument struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Subjects       []string `json:"subjects"`
	HourlyRate     *float64 `json:"hourly_rate"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Experience     string   `json:"experience"`
	Availability   []string `json:"availability"`
	TeachingStyles []string `json:"teaching_styles"`
	Rating         float64  `json:"rating"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string        `json:"_id"`
			Source tutorDocument `json:"_source"`
			Sort   []interface{} `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

// BuildQuery returns the search body for one page of a query term. Hits are
// ordered by relevance with id as the tiebreaker; after is the sort key of
// the previous page's last hit.
func BuildQuery(term string, size int, after []interface{}) map[string]interface{} {
	body := map[string]interface{}{
		"sort": []interface{}{
			map[string]interface{}{"_score": "desc"},
			map[string]interface{}{"id": "asc"},
		},
	}
	if size > 0 {
		body["size"] = size
	}
	if len(after) > 0 {
		body["search_after"] = after
	}

	if term = strings.TrimSpace(term); term != "" {
		body["query"] = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  term,
				"fields": []string{"name^3", "subjects^2", "experience"},
				"type":   "best_fields",
			},
		}
	} else {
		body["query"] = map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return body
}

// Candidates returns every hit for the query term across as many pages as it takes.
func (s *ElasticsearchSource) Candidates(ctx context.Context, query matching.SearchQuery) ([]matching.Candidate, error) {
	out := []matching.Candidate{}
	var after []interface{}
	for {
		parsed, err := s.search(ctx, BuildQuery(query.Term, s.pageSize, after))
		if err != nil {
			return nil, err
		}

		hits := parsed.Hits.Hits
		for _, hit := range hits {
			out = append(out, hitToCandidate(hit.ID, hit.Source))
		}
		if len(hits) < s.pageSize || len(hits[len(hits)-1].Sort) == 0 {
			return out, nil
		}
		after = hits[len(hits)-1].Sort
	}
}

func (s *ElasticsearchSource) search(ctx context.Context, query map[string]interface{}) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", s.index, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &parsed, nil
}

func hitToCandidate(id string, doc tutorDocument) matching.Candidate {
	c := matching.Candidate{
		ID:             doc.ID,
		Name:           doc.Name,
		Subjects:       doc.Subjects,
		HourlyPrice:    doc.HourlyRate,
		Experience:     doc.Experience,
		Availability:   doc.Availability,
		TeachingStyles: doc.TeachingStyles,
		Rating:         doc.Rating,
	}
	if c.ID == "" {
		c.ID = id
	}
	if doc.Latitude != nil && doc.Longitude != nil {
		c.Location = &matching.GeoPoint{Lat: *doc.Latitude, Lng: *doc.Longitude}
	}
	return c
}
