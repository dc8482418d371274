package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequest decodes a YAML or JSON request file into v. "-" reads stdin.
func LoadRequest(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("cli: read request: %w", err)
	}
	return ParseRequest(data, path, v)
}

// ParseRequest decodes data by the extension of name. Unknown extensions
// are tried as YAML, which also accepts JSON documents.
func ParseRequest(data []byte, name string, v any) error {
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("cli: parse JSON request %s: %w", name, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cli: parse YAML request %s: %w", name, err)
	}
	return nil
}
