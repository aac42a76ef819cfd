package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Colors is the optional calendar color file:
//
//	palette: ["#3366CC", "#DC3912"]
//	overrides:
//	  Grandma Rose: "#8E44AD"
type Colors struct {
	Palette   []string          `yaml:"palette"`
	Overrides map[string]string `yaml:"overrides"`
}

// LoadColors reads and validates a color file.
func LoadColors(path string) (Colors, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Colors{}, err
	}
	return ParseColors(data)
}

// ParseColors decodes YAML color settings. Unknown keys are rejected so typos
// do not silently fall back to hashed colors.
func ParseColors(data []byte) (Colors, error) {
	var colors Colors
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&colors); err != nil && !errors.Is(err, io.EOF) {
		return Colors{}, fmt.Errorf("parse colors: %w", err)
	}

	var bad []string
	for _, c := range colors.Palette {
		if !hexColor.MatchString(c) {
			bad = append(bad, fmt.Sprintf("palette %q", c))
		}
	}
	for name, c := range colors.Overrides {
		if strings.TrimSpace(name) == "" {
			bad = append(bad, "override with empty name")
			continue
		}
		if !hexColor.MatchString(c) {
			bad = append(bad, fmt.Sprintf("override %s=%q", name, c))
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return Colors{}, fmt.Errorf("invalid colors: %s", strings.Join(bad, ", "))
	}
	return colors, nil
}
