package services

import (
	"fmt"
	"log/slog"
	"os"

	"annotation_platform/platform/export"

	"gopkg.in/yaml.v3"
)

// Config holds server-level tunables loaded from an optional yaml file.
type Config struct {
	// Fallback image dimensions used by exporters when an annotation
	// document does not record them.
	ExportDefaults export.Defaults `yaml:"export_defaults"`

	// Annotation types accepted at task creation. An empty list accepts
	// any type.
	AnnotationTypes []string `yaml:"annotation_types"`
}

func DefaultConfig() Config {
	return Config{
		ExportDefaults: export.DefaultDimensions,
		AnnotationTypes: []string{
			"bounding_box",
			"polygon",
			"keypoints",
			"classification",
		},
	}
}

// LoadConfig reads the yaml config at path, falling back to defaults if the
// path is empty or the file does not exist.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file not found, using defaults", "path", path)
			return config, nil
		}
		return config, fmt.Errorf("error reading config file %v: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("error parsing config file %v: %w", path, err)
	}

	return config, nil
}
