package config

import (
	"fmt"
	"slices"
	"strings"
)

// splitPrefix breaks a prefix into key segments, accepting either slash and
// dropping empty and "." segments.
func splitPrefix(prefix string) []string {
	parts := strings.FieldsFunc(prefix, func(r rune) bool { return r == '/' || r == '\\' })
	return slices.DeleteFunc(parts, func(s string) bool { return s == "." })
}

// TargetPrefix is the folder archives, manifests and locks live under. It
// carries no slash at either end and may not climb out with "..".
func TargetPrefix(prefix string) (string, error) {
	parts := splitPrefix(prefix)
	if slices.Contains(parts, "..") {
		return "", fmt.Errorf("%w: target.prefix %q must not contain ..", ErrConfig, prefix)
	}
	return strings.Join(parts, "/"), nil
}

// SourcePrefix is matched against source keys as is, so a trailing slash
// survives: "logs/" selects a folder while "logs" also matches "logs-old/x".
func SourcePrefix(prefix string) string {
	p := strings.Join(splitPrefix(prefix), "/")
	if p != "" && strings.HasSuffix(strings.TrimSpace(strings.ReplaceAll(prefix, "\\", "/")), "/") {
		p += "/"
	}
	return p
}
