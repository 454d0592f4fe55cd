package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LoadKeywords reads a line-oriented keyword file, one keyword per line.
// Blank lines are ignored; every other line is a keyword, so hashtags such
// as "#leaf" are kept. The file must exist and yield at least one keyword.
func LoadKeywords(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("keywords file path is required")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read keywords: %w", err)
	}
	defer func() { _ = f.Close() }()

	var keywords []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		keywords = append(keywords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan keywords: %w", err)
	}

	if len(keywords) == 0 {
		return nil, fmt.Errorf("keywords: %s contains no keywords", path)
	}

	return keywords, nil
}
