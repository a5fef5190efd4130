// Package pathutil provides small helpers for artifact path handling.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Ext returns the lowercase extension of name without the leading dot.
// Hidden files and names without an extension yield an empty string.
func Ext(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	idx := strings.LastIndexByte(name, '.')
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}

	return strings.ToLower(name[idx+1:])
}

// Normalize cleans path of redundant separators and dot segments.
// Empty input stays empty.
func Normalize(path string) string {
	if path == "" {
		return ""
	}

	return filepath.Clean(path)
}
