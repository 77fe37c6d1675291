package service

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed labels.txt
var embeddedLabels string

var labels = parseLabels(embeddedLabels)

func parseLabels(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Labels returns a copy of the built-in label table, index-aligned with the model output.
func Labels() []string {
	out := make([]string, len(labels))
	copy(out, labels)
	return out
}

// LoadLabels reads a label table from path, or returns the built-in one when path is empty.
func LoadLabels(path string) ([]string, error) {
	if path == "" {
		return Labels(), nil
	}
	tags, err := ReadLines(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	if len(tags) != NumClasses {
		return nil, fmt.Errorf("label table %s has %d entries, model outputs %d", path, len(tags), NumClasses)
	}
	return tags, nil
}
