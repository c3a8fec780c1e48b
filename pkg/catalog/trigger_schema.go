package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const attrTriggerSchema = "trigger_data_json_schema"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// TriggerMethod derives the dedicated trigger tool method for a workflow key
func TriggerMethod(workflowKey string) string {
	slug := nonAlnum.ReplaceAllString(strings.ToLower(workflowKey), "_")
	return "trigger_" + strings.Trim(slug, "_")
}

// dataSchema validates trigger data against a workflow's declared schema
type dataSchema struct {
	schema *jsonschema.Schema
}

// newDataSchema compiles doc; a missing or broken schema disables validation
func newDataSchema(workflowKey string, doc map[string]interface{}) *dataSchema {
	if doc == nil {
		return nil
	}

	// Round trip so the compiler sees plain decoded JSON values
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	decoded, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil
	}

	url := fmt.Sprintf("mem://workflows/%s/trigger_data.json", workflowKey)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, decoded); err != nil {
		log.Warn().Err(err).Str("workflow", workflowKey).Msg("Ignoring invalid trigger data schema")
		return nil
	}
	schema, err := c.Compile(url)
	if err != nil {
		log.Warn().Err(err).Str("workflow", workflowKey).Msg("Ignoring invalid trigger data schema")
		return nil
	}

	return &dataSchema{schema: schema}
}

func (d *dataSchema) validate(data map[string]interface{}) error {
	if data == nil {
		data = map[string]interface{}{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode trigger data: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return fmt.Errorf("failed to decode trigger data: %w", err)
	}

	if err := d.schema.Validate(v); err != nil {
		return fmt.Errorf("trigger data does not match the workflow schema: %w", err)
	}
	return nil
}
