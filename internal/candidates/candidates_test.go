package candidates

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduprima/internal/matching"
	"eduprima/internal/store"
	"eduprima/internal/store/memstore"
)

func seededStore() *memstore.Store {
	ms := memstore.New()
	ms.Seed(DefaultView,
		store.Row{"id": "t-2", "name": "Budi Santoso", "subjects": "{math,physics}", "hourly_rate": []byte("150000"),
			"latitude": -6.2, "longitude": 106.8, "experience": "5 years", "availability": []string{"mon"}, "rating": 4.5},
		store.Row{"id": "t-1", "name": "Ani Wijaya", "subjects": []interface{}{"english"}, "hourly_rate": nil,
			"latitude": nil, "longitude": nil, "experience": "beginner", "teaching_styles": `["visual"]`, "rating": int64(4)},
		store.Row{"id": "t-3", "name": "Budiman", "subjects": []string{"chemistry"}, "hourly_rate": 90.5, "rating": "3.5"},
	)
	return ms
}

func TestStoreSource_ConvertsRows(t *testing.T) {
	src := NewStoreSource(seededStore(), "", 0)

	got, err := src.Candidates(context.Background(), matching.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"t-1", "t-2", "t-3"}, []string{got[0].ID, got[1].ID, got[2].ID})

	ani := got[0]
	assert.Nil(t, ani.HourlyPrice)
	assert.Nil(t, ani.Location)
	assert.Equal(t, []string{"english"}, ani.Subjects)
	assert.Equal(t, []string{"visual"}, ani.TeachingStyles)
	assert.Equal(t, 4.0, ani.Rating)

	budi := got[1]
	require.NotNil(t, budi.HourlyPrice)
	assert.Equal(t, 150000.0, *budi.HourlyPrice)
	assert.Equal(t, []string{"math", "physics"}, budi.Subjects)
	require.NotNil(t, budi.Location)
	assert.Equal(t, -6.2, budi.Location.Lat)

	assert.Equal(t, 3.5, got[2].Rating)
}

func TestStoreSource_TermPagesThroughAllMatches(t *testing.T) {
	src := NewStoreSource(seededStore(), DefaultView, 1)

	got, err := src.Candidates(context.Background(), matching.SearchQuery{Term: "  budi "})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t-2", got[0].ID)
	assert.Equal(t, "t-3", got[1].ID)

	got, err = src.Candidates(context.Background(), matching.SearchQuery{Term: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStoreSource_BestMatchBeyondPageIsScored(t *testing.T) {
	ms := memstore.New()
	ms.Seed(DefaultView,
		store.Row{"id": "a", "name": "Arif", "subjects": []string{"art"}, "rating": 3.0},
		store.Row{"id": "b", "name": "Bela", "subjects": []string{"art"}, "rating": 3.0},
		store.Row{"id": "z", "name": "Zaki", "subjects": []string{"math"}, "rating": 5.0},
	)

	cands, err := NewStoreSource(ms, DefaultView, 2).Candidates(context.Background(), matching.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, cands, 3)

	results, err := matching.Score(cands, matching.SearchQuery{Subjects: []string{"math"}}, matching.DefaultWeights, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "z", results[0].Candidate.ID)
}

func TestStoreSource_MinRatingPushedDown(t *testing.T) {
	minRating := 4.0
	src := NewStoreSource(seededStore(), DefaultView, 0)

	got, err := src.Candidates(context.Background(), matching.SearchQuery{MinRating: &minRating, ExcludeBelowMinRating: true})
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"t-1", "t-2"}, ids)

	got, err = src.Candidates(context.Background(), matching.SearchQuery{MinRating: &minRating})
	require.NoError(t, err)
	assert.Len(t, got, 3, "min rating without exclusion only lowers the score")
}

func TestStoreSource_PropagatesErrors(t *testing.T) {
	ms := seededStore()
	ms.FailOn("select", DefaultView, errors.New("connection refused"))

	_, err := NewStoreSource(ms, "", 10).Candidates(context.Background(), matching.SearchQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestBuildQuery(t *testing.T) {
	q := BuildQuery("math", 20, nil)
	assert.Equal(t, 20, q["size"])
	mm := q["query"].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "math", mm["query"])
	sort := q["sort"].([]interface{})
	require.Len(t, sort, 2)
	assert.Equal(t, map[string]interface{}{"_score": "desc"}, sort[0], "relevance decides which hits come first")
	_, hasAfter := q["search_after"]
	assert.False(t, hasAfter)

	q = BuildQuery(" ", 0, []interface{}{1.5, "t-9"})
	_, hasSize := q["size"]
	assert.False(t, hasSize)
	assert.Contains(t, q["query"], "match_all")
	assert.Equal(t, []interface{}{1.5, "t-9"}, q["search_after"])
}

func newTestESClient(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchSource_DecodesHits(t *testing.T) {
	var gotBody map[string]interface{}
	var gotPath string
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_id":"doc-1","_source":{"name":"Sari","subjects":["math"],"hourly_rate":120,"latitude":-6.9,"longitude":107.6,"experience":"expert","rating":4.8}},
			{"_id":"doc-2","_source":{"id":"t-9","name":"Joko","rating":3}}
		]}}`)
	})

	src := NewElasticsearchSource(client, "tutors", 50)
	got, err := src.Candidates(context.Background(), matching.SearchQuery{Term: "math"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "/tutors/_search", gotPath)
	assert.Contains(t, gotBody["query"], "multi_match")

	assert.Equal(t, "doc-1", got[0].ID)
	require.NotNil(t, got[0].HourlyPrice)
	assert.Equal(t, 120.0, *got[0].HourlyPrice)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, 107.6, got[0].Location.Lng)

	assert.Equal(t, "t-9", got[1].ID)
	assert.Nil(t, got[1].Location)
}

func TestElasticsearchSource_PagesWithSearchAfter(t *testing.T) {
	var bodies []map[string]interface{}
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		bodies = append(bodies, body)

		if _, ok := body["search_after"]; !ok {
			_, _ = io.WriteString(w, `{"hits":{"hits":[
				{"_id":"t-1","_source":{"id":"t-1","subjects":["art"]},"sort":[2.0,"t-1"]},
				{"_id":"t-2","_source":{"id":"t-2","subjects":["art"]},"sort":[1.0,"t-2"]}
			]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"hits":[
			{"_id":"t-9","_source":{"id":"t-9","subjects":["math"],"rating":5},"sort":[0.5,"t-9"]}
		]}}`)
	})

	got, err := NewElasticsearchSource(client, "tutors", 2).Candidates(context.Background(), matching.SearchQuery{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "t-9", got[2].ID)

	require.Len(t, bodies, 2)
	assert.Equal(t, []interface{}{1.0, "t-2"}, bodies[1]["search_after"])
}

func TestElasticsearchSource_ErrorStatus(t *testing.T) {
	client := newTestESClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
	})

	_, err := NewElasticsearchSource(client, "tutors", 0).Candidates(context.Background(), matching.SearchQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
