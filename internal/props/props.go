// Package props patches Java-style key=value properties files while
// preserving line order and unrelated lines.
package props

import (
	"fmt"
	"os"
	"strings"
)

// Setting is one key=value assignment to apply.
type Setting struct {
	Key   string
	Value string
}

// Apply rewrites the first occurrence of each key in the file. When
// hardWrite is set, keys not present are appended at the end; otherwise
// missing keys are ignored. Lines that are not assignments (comments,
// blanks) pass through untouched.
func Apply(path string, settings []Setting, hardWrite bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("props: read %s: %w", path, err)
	}
	var lines []string
	if content := strings.TrimSuffix(string(data), "\n"); content != "" {
		lines = strings.Split(content, "\n")
	}

	applied := make(map[string]bool, len(settings))
	for i, line := range lines {
		key, ok := splitKey(line)
		if !ok {
			continue
		}
		for _, s := range settings {
			if applied[s.Key] || key != s.Key {
				continue
			}
			lines[i] = s.Key + "=" + s.Value
			applied[s.Key] = true
		}
	}
	if hardWrite {
		for _, s := range settings {
			if !applied[s.Key] {
				lines = append(lines, s.Key+"="+s.Value)
				applied[s.Key] = true
			}
		}
	}

	out := ""
	if len(lines) > 0 {
		out = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("props: write %s: %w", path, err)
	}
	return nil
}

// Get returns the value of the first occurrence of key, and whether it
// was found.
func Get(path, key string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("props: read %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		k, ok := splitKey(line)
		if ok && k == key {
			return line[len(k)+1:], true, nil
		}
	}
	return "", false, nil
}

// splitKey returns the text before the first '=' when the line is an
// assignment. Comment lines never match.
func splitKey(line string) (string, bool) {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return "", false
	}
	i := strings.IndexByte(line, '=')
	if i < 0 {
		return "", false
	}
	return line[:i], true
}
