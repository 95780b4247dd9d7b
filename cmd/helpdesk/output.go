package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// render writes value in the configured format. YAML output keeps the JSON
// field names by converting through the JSON document first.
func render(writer io.Writer, format string, value any) error {
	switch format {
	case outputYAML:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("helpdesk.render.encode: %w", err)
		}
		var document any
		if err := json.Unmarshal(encoded, &document); err != nil {
			return fmt.Errorf("helpdesk.render.decode: %w", err)
		}
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(2)
		if err := encoder.Encode(document); err != nil {
			return fmt.Errorf("helpdesk.render.yaml: %w", err)
		}
		return encoder.Close()
	default:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(value); err != nil {
			return fmt.Errorf("helpdesk.render.json: %w", err)
		}
		return nil
	}
}
