package exercise

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var embeddedProfiles embed.FS

// Parse decodes and validates a YAML profile. Unknown keys are rejected so
// typos in hand-written profiles surface at load time.
func Parse(data []byte) (*Profile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadEmbedded loads a built-in profile by id.
func LoadEmbedded(id string) (*Profile, error) {
	data, err := embeddedProfiles.ReadFile("data/" + id + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExercise, id)
	}
	return Parse(data)
}

// ListEmbedded returns the ids of all built-in profiles.
func ListEmbedded() ([]string, error) {
	entries, err := embeddedProfiles.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded profiles: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".yaml") {
			ids = append(ids, strings.TrimSuffix(entry.Name(), ".yaml"))
		}
	}
	return ids, nil
}

// LoadFromFile loads a profile from disk.
func LoadFromFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// LoadFromDirectory loads every *.yaml and *.yml profile in dir.
func LoadFromDirectory(dir string) ([]*Profile, error) {
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("profile directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("profile directory: %s is not a directory", dir)
	}

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to list profile files: %w", err)
		}
		files = append(files, matches...)
	}

	profiles := make([]*Profile, 0, len(files))
	for _, file := range files {
		p, err := LoadFromFile(file)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
