package assist

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"tdr-agent/internal/types"
)

// reply is the JSON object the model must return
type reply struct {
	Endpoint   string         `json:"endpoint" jsonschema:"minLength=1"`
	Parameters map[string]any `json:"parameters"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// compileReplySchema reflects reply into a JSON Schema and compiles it
func compileReplySchema() (*jsonschema.Schema, error) {
	r := &invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schemaJSON, err := json.Marshal(r.Reflect(&reply{}))
	if err != nil {
		return nil, fmt.Errorf("marshaling reply schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling reply schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reply.json", doc); err != nil {
		return nil, fmt.Errorf("adding reply schema: %w", err)
	}
	compiled, err := compiler.Compile("reply.json")
	if err != nil {
		return nil, fmt.Errorf("compiling reply schema: %w", err)
	}
	return compiled, nil
}

// parseReply decodes text strictly as a reply object and validates it
func parseReply(schema *jsonschema.Schema, text string) (*reply, error) {
	data := []byte(strings.TrimSpace(text))

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("invalid reply structure: %w", err)
	}

	var out reply
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid reply structure: %w", err)
	}
	return &out, nil
}

// normalizeParameters turns integral JSON numbers back into ints so model
// parameters look like rule-based ones
func normalizeParameters(in map[string]any) types.Parameters {
	out := make(types.Parameters, len(in))
	for k, v := range in {
		if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[k] = int(f)
			continue
		}
		out[k] = v
	}
	return out
}
