// Package pathutil provides matching helpers for slash-separated member names.
package pathutil

import "strings"

// DirPrefix converts a member name to its directory prefix form.
// For "" or ".", returns "" (the empty prefix matches every name).
// For other names, appends "/" so only children match.
func DirPrefix(name string) string {
	if name == "" || name == "." {
		return ""
	}
	return strings.TrimSuffix(name, "/") + "/"
}

// UnderPrefix reports whether name sits under the directory prefix produced
// by DirPrefix. The empty prefix matches every name.
func UnderPrefix(name, prefix string) bool {
	return prefix == "" || strings.HasPrefix(name, prefix)
}
