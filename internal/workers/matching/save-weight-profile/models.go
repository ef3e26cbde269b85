// internal/workers/matching/save-weight-profile/models.go
package saveweightprofile

import "eduprima/internal/matching"

type Input struct {
	UserID  string                 `json:"userId"`
	Weights matching.WeightProfile `json:"weights"`
}

type Output struct {
	UserID     string                 `json:"userId"`
	Saved      bool                   `json:"saved"`
	Normalized matching.WeightProfile `json:"normalizedWeights"`
}

const inputSchema = `{
  "type": "object",
  "required": ["userId", "weights"],
  "properties": {
    "userId": {"type": "string", "minLength": 1},
    "weights": {
      "type": "object",
      "required": ["distance", "price", "experience", "availability", "subjects", "rating"],
      "properties": {
        "distance": {"type": "number"},
        "price": {"type": "number"},
        "experience": {"type": "number"},
        "availability": {"type": "number"},
        "subjects": {"type": "number"},
        "rating": {"type": "number"}
      },
      "additionalProperties": false
    }
  }
}`
