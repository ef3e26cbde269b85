// internal/workers/matching/score-tutors/models.go
package scoretutors

import "eduprima/internal/matching"

type Input struct {
	UserID  string                  `json:"userId,omitempty"`
	Query   matching.SearchQuery    `json:"query"`
	Weights *matching.WeightProfile `json:"weights,omitempty"`
	Origin  *matching.GeoPoint      `json:"origin,omitempty"`
	Limit   int                     `json:"limit,omitempty"`
}

type Output struct {
	Results         []matching.ScoredResult `json:"results"`
	TotalCandidates int                     `json:"totalCandidates"`
	WeightsSource   string                  `json:"weightsSource"`
}

const (
	WeightsFromInput       = "input"
	WeightsFromPreferences = "preferences"
	WeightsFromDefaults    = "default"
)

const inputSchema = `{
  "type": "object",
  "properties": {
    "userId": {"type": "string"},
    "query": {
      "type": "object",
      "properties": {
        "term": {"type": "string"},
        "subjects": {"type": "array", "items": {"type": "string"}},
        "availability": {"type": "array", "items": {"type": "string"}},
        "teachingStyles": {"type": "array", "items": {"type": "string"}},
        "experienceTier": {"type": "string"},
        "radiusKm": {"type": "number"},
        "minRating": {"type": "number"},
        "target": {"$ref": "#/definitions/point"},
        "price": {
          "type": "object",
          "properties": {"min": {"type": "number"}, "max": {"type": "number"}}
        },
        "filterByRadius": {"type": "boolean"},
        "excludeBelowMinRating": {"type": "boolean"}
      }
    },
    "weights": {
      "type": "object",
      "properties": {
        "distance": {"type": "number"},
        "price": {"type": "number"},
        "experience": {"type": "number"},
        "availability": {"type": "number"},
        "subjects": {"type": "number"},
        "rating": {"type": "number"}
      },
      "additionalProperties": false
    },
    "origin": {"$ref": "#/definitions/point"},
    "limit": {"type": "integer", "minimum": 1}
  },
  "definitions": {
    "point": {
      "type": "object",
      "required": ["lat", "lng"],
      "properties": {"lat": {"type": "number"}, "lng": {"type": "number"}}
    }
  }
}`
