package artifacts

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"unicode"
)

var contentTypesByExtension = map[string]string{
	"pdf":  "application/pdf",
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
}

func extensionOf(fileName string) string {
	ext := path.Ext(fileName)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func allowedExtension(allowed []string, ext string) bool {
	if ext == "" {
		return false
	}
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimPrefix(strings.TrimSpace(candidate), "."), ext) {
			return true
		}
	}
	return false
}

// resolveContentType prefers the caller's declared type and falls back to the
// extension when it is blank or generic.
func resolveContentType(declared, ext string) (string, error) {
	clean := strings.TrimSpace(declared)
	if clean == "" || strings.EqualFold(clean, "application/octet-stream") {
		if ct, ok := contentTypesByExtension[ext]; ok {
			return ct, nil
		}
		if ct := mime.TypeByExtension("." + ext); ct != "" {
			return ct, nil
		}
		return "application/octet-stream", nil
	}
	mediaType, _, err := mime.ParseMediaType(clean)
	if err != nil {
		return "", fmt.Errorf("content type invalid: %w", err)
	}
	return strings.ToLower(mediaType), nil
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	clean := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
