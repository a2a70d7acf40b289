package util

import (
	"errors"
	"strings"
)

// SanitizeName removes path separators and rejects traversal patterns so the
// result can be used as a single file or key segment.
func SanitizeName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid name")
	}
	return s, nil
}
