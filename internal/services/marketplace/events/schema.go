package events

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const interestCreatedSchema = "schemas/interest_created.json"

var (
	schemaOnce sync.Once
	schemas    map[string]*jsonschema.Schema
	schemaErr  error
)

func loadSchemas() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	byType := map[string]string{TypeInterestCreated: interestCreatedSchema}

	compiled := make(map[string]*jsonschema.Schema, len(byType))
	for eventType, path := range byType {
		data, err := schemaFS.ReadFile(path)
		if err != nil {
			schemaErr = fmt.Errorf("read schema %s: %w", path, err)
			return
		}
		if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
			schemaErr = fmt.Errorf("add schema %s: %w", path, err)
			return
		}
		schema, err := compiler.Compile(path)
		if err != nil {
			schemaErr = fmt.Errorf("compile schema %s: %w", path, err)
			return
		}
		compiled[eventType] = schema
	}
	schemas = compiled
}

// Validate checks event against the JSON schema registered for its type.
func Validate(event Event) error {
	_, err := Encode(event)
	return err
}

// Encode validates event and returns its JSON payload.
func Encode(event Event) ([]byte, error) {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return nil, schemaErr
	}
	schema, ok := schemas[event.Type]
	if !ok {
		return nil, fmt.Errorf("no schema for event type %q", event.Type)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("event %s violates schema: %w", event.Type, err)
	}
	return payload, nil
}
