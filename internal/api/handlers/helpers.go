package handlers

import (
	"strconv"
	"strings"
)

// normalizeDisplayName trims a display name and checks it is 3 to 24
// letters, digits, underscores or dashes. Returns "" when invalid.
func normalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) < 3 || len(name) > 24 {
		return ""
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return ""
		}
	}
	return name
}

// parseLimit reads a positive limit capped at ceiling, or returns def.
func parseLimit(raw string, def, ceiling int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > ceiling {
		return ceiling
	}
	return n
}
