package ai

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadLabels reads class names from a text file, one per line, lower-cased.
// Blank lines are skipped so trailing newlines do not create classes.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening labels file: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, strings.ToLower(line))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}

	return labels, nil
}
