package quoteclient

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const contractURL = "https://quote-wizard.local/schemas/recommend-response.schema.json"

// responseContract describes a usable /recommend response. Presence of
// "prediction" is checked separately so its absence maps to
// NoRecommendation rather than MalformedResponse.
const responseContract = `{
  "type": "object",
  "properties": {
    "prediction": {
      "type": "object",
      "required": ["recommended_tier", "all_tiers"],
      "properties": {
        "recommended_tier": {"type": "string"},
        "all_tiers": {
          "type": "object",
          "additionalProperties": {"type": "number", "minimum": 0}
        },
        "confidence": {
          "type": "object",
          "additionalProperties": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "policytype": {"type": "string"}
      }
    },
    "explanation": {"type": ["object", "null"]}
  }
}`

func compileContract() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(contractURL, strings.NewReader(responseContract)); err != nil {
		return nil, err
	}
	return c.Compile(contractURL)
}
