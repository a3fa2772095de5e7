package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// LoadAll reads every YAML file in the configured directory and returns the
// valid category definitions sorted by name. A missing directory yields an
// empty list, not an error.
func (l *Loader) LoadAll() ([]*Category, error) {
	if _, err := os.Stat(l.dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	ymlFiles, err := filepath.Glob(filepath.Join(l.dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	seen := make(map[string]string)
	var categories []*Category
	for _, file := range files {
		category, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}
		if err := category.validate(); err != nil {
			return nil, fmt.Errorf("invalid category %s: %w", file, err)
		}
		if prev, ok := seen[category.Name]; ok {
			return nil, fmt.Errorf("category %q defined in both %s and %s", category.Name, prev, file)
		}
		seen[category.Name] = file

		categories = append(categories, category)
		slog.Debug("Loaded category definition", "category", category.Name, "file", file)
	}

	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

func (l *Loader) loadFile(path string) (*Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var category Category
	if err := yaml.Unmarshal(data, &category); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&category)
	return &category, nil
}

func setDefaults(category *Category) {
	if category.Schedule == "" {
		category.Schedule = "@every 1m"
	}
	if category.Source.Limit == 0 {
		category.Source.Limit = 20
	}
}
