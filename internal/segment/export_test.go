package segment

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestBoxplotFileName(t *testing.T) {
	tests := []struct {
		runID, feature, want string
	}{
		{"3f2a9c10-1111-2222", "Items Purchased", "boxplot-3f2a9c10-items-purchased.png"},
		{"", "Age", "boxplot-age.png"},
		{"abc", "  Days Since Last Purchase ", "boxplot-abc-days-since-last-purchase.png"},
		{"abc", "%%", "boxplot-abc-feature.png"},
	}
	for _, tt := range tests {
		if got := BoxplotFileName(tt.runID, tt.feature); got != tt.want {
			t.Errorf("BoxplotFileName(%q, %q) = %q, want %q", tt.runID, tt.feature, got, tt.want)
		}
	}
}

func TestWriteBoxplot(t *testing.T) {
	png := append(append([]byte(nil), pngMagic...), 0, 1, 2, 3)
	path := filepath.Join(t.TempDir(), "nested", "out.png")

	if err := WriteBoxplot(path, base64.StdEncoding.EncodeToString(png)); err != nil {
		t.Fatalf("WriteBoxplot: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, png) {
		t.Errorf("written bytes differ")
	}

	if err := WriteBoxplot(path, "not base64!"); err == nil {
		t.Error("invalid base64 should fail")
	}
	if err := WriteBoxplot(path, base64.StdEncoding.EncodeToString([]byte("GIF89a"))); err == nil {
		t.Error("non-PNG payload should fail")
	}
}
