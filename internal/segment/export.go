package segment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// DecodeBoxplot turns the service's base64 payload into PNG bytes.
func DecodeBoxplot(image string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(image))
	if err != nil {
		return nil, fmt.Errorf("decode boxplot: %w", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, fmt.Errorf("decode boxplot: payload is not a PNG")
	}
	return data, nil
}

// BoxplotFileName is the default export name, e.g.
// "boxplot-3f2a9c10-items-purchased.png".
func BoxplotFileName(runID, feature string) string {
	if len(runID) > 8 {
		runID = runID[:8]
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(feature) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "feature"
	}
	if runID == "" {
		return "boxplot-" + slug + ".png"
	}
	return fmt.Sprintf("boxplot-%s-%s.png", runID, slug)
}

// WriteBoxplot decodes image and writes it to path, creating parent
// directories.
func WriteBoxplot(path, image string) error {
	data, err := DecodeBoxplot(image)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
