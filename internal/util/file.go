package util

import (
	"mime"
	"path/filepath"
	"strings"
)

// ExtensionFor picks a file extension for an upload, preferring the client
// filename and falling back to the content type
func ExtensionFor(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	switch strings.ToLower(strings.SplitN(contentType, ";", 2)[0]) {
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
