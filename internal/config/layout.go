package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"inventory-dashboard/internal/normalize"
)

// LoadLayout reads a workbook layout from a YAML file. Keys absent from the
// file keep their default values. An empty path returns the default layout.
func LoadLayout(path string) (normalize.Layout, error) {
	layout := normalize.DefaultLayout()
	if path == "" {
		return layout, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return normalize.Layout{}, fmt.Errorf("read layout file: %w", err)
	}

	if err := yaml.Unmarshal(data, &layout); err != nil {
		return normalize.Layout{}, fmt.Errorf("parse layout file %s: %w", path, err)
	}

	if err := layout.Validate(); err != nil {
		return normalize.Layout{}, err
	}
	return layout, nil
}
