package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadVariables reads the variable list: one name per line, surrounding
// whitespace trimmed, blank lines skipped. Order is preserved because it
// decides on-screen column order and artifact naming.
func LoadVariables(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening variable list: %w", err)
	}
	defer f.Close()

	var vars []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			continue
		}
		vars = append(vars, name)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading variable list: %w", err)
	}
	return vars, nil
}
