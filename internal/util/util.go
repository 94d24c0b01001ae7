// internal/util/util.go
package util

import (
	"strconv"
	"strings"
	"time"
)

// Timestamp returns the current time formatted for default report filenames.
func Timestamp() string {
	return time.Now().Format("20060102-150405")
}

// JoinInts renders an int slice as a separated string for log output.
func JoinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}

// DedupeStrings returns the input with duplicates removed, preserving the
// first occurrence order.
func DedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
