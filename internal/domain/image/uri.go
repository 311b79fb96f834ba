package image

import "strings"

// FileScheme is the prefix carried by every local image URI.
const FileScheme = "file://"

// NormalizeFileURI returns uri with exactly one file:// prefix.
// "file://file:///tmp/a.jpg" and "/tmp/a.jpg" both become "file:///tmp/a.jpg".
func NormalizeFileURI(uri string) string {
	path := FilePath(uri)
	if path == "" {
		return ""
	}
	return FileScheme + path
}

// FilePath strips every leading file:// prefix.
func FilePath(uri string) string {
	p := strings.TrimSpace(uri)
	for strings.HasPrefix(p, FileScheme) {
		p = strings.TrimPrefix(p, FileScheme)
	}
	return p
}
