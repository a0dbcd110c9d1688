// Package dirpath manipulates materialized directory paths: "/"-separated
// link-name segments anchored at the virtual root "/".
package dirpath

import "strings"

// Join appends a link name to a parent path.
func Join(parent, linkName string) string {
	if parent == "/" {
		return "/" + linkName
	}
	return parent + "/" + linkName
}

// Split breaks a path into its link-name segments. The root "/" has none.
func Split(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// TrailingSegment returns the last link-name segment of a path, or "" for
// the root.
func TrailingSegment(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return trimmed
	}
	return trimmed[i+1:]
}
