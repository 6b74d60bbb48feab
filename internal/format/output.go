package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - yaml
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "yaml", "yml":
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("unknown format: %s (expected json|yaml)", format)
	}
}

// WriteJSON writes strict JSON, one document per line unless pretty.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteYAML goes through JSON first so field names match the JSON output.
func WriteYAML(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}
