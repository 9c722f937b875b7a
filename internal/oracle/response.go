// internal/oracle/response.go
package oracle

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"credit-audit/internal/models"
)

// responseSchema describes the direct response shape the API documents.
// Validation is advisory: a violating 2xx body is logged and still parsed
// on a best-effort basis.
const responseSchema = `{
	"type": "object",
	"properties": {
		"credit_score":   {"type": "number", "minimum": 0, "maximum": 100},
		"classification": {"type": "string"},
		"explanation":    {"type": "string"}
	}
}`

var compiledSchema = gojsonschema.NewStringLoader(responseSchema)

// directResponse is the documented response format.
type directResponse struct {
	CreditScore    *float64 `json:"credit_score"`
	Classification string   `json:"classification"`
	Explanation    string   `json:"explanation"`
}

// legacyResponse nests a JSON document inside a chat-completion envelope.
// Older deployments of the scoring API still answer in this shape.
type legacyResponse struct {
	Metadata struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"metadata"`
}

// parseResponse extracts score, classification, and explanation from either
// response format. A body yielding neither score nor classification still
// parses into an empty success: downgrading that to an unknown decision is
// the normalizer's job, not a transport failure.
func parseResponse(raw []byte) models.OracleSuccess {
	var direct directResponse
	if err := json.Unmarshal(raw, &direct); err == nil {
		if direct.CreditScore != nil || direct.Classification != "" {
			return models.OracleSuccess{
				Score:          direct.CreditScore,
				Classification: direct.Classification,
				Explanation:    direct.Explanation,
			}
		}
	}

	var legacy legacyResponse
	if err := json.Unmarshal(raw, &legacy); err == nil {
		if len(legacy.Metadata.Choices) > 0 {
			content := legacy.Metadata.Choices[0].Message.Content
			var inner directResponse
			if err := json.Unmarshal([]byte(content), &inner); err == nil {
				return models.OracleSuccess{
					Score:          inner.CreditScore,
					Classification: inner.Classification,
					Explanation:    inner.Explanation,
				}
			}
			// non-JSON content is still usable free text
			return models.OracleSuccess{Explanation: content}
		}
	}

	return models.OracleSuccess{}
}

// validateResponse checks a 2xx body against the documented schema and
// returns a joined violation summary, empty when the body conforms or is
// not valid JSON at all.
func validateResponse(raw []byte) string {
	result, err := gojsonschema.Validate(compiledSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil || result.Valid() {
		return ""
	}
	var violations []string
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return strings.Join(violations, "; ")
}
