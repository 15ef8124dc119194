package imageio

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	return img
}

func TestWriteThenReadNonASCIIPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "фото 測試 φωτο")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	path := filepath.Join(dir, "снимок №1.png")

	if err := WriteImage(path, testImage(), imaging.PNG, 80); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}

	img, err := ReadImage(path)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 8 {
		t.Errorf("Decoded bounds = %v, want 8x8", img.Bounds())
	}
}

func TestReadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image at all"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := ReadImage(path); err == nil {
		t.Error("Expected decode error for garbage bytes")
	}
}

func TestReadImageMissingFile(t *testing.T) {
	if _, err := ReadImage(filepath.Join(t.TempDir(), "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestTempSibling(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "sub", "photo.jpg")

	a := TempSibling(dst)
	b := TempSibling(dst)

	if a == b {
		t.Error("Expected unique temp names for the same destination")
	}
	if filepath.Dir(a) != filepath.Dir(dst) {
		t.Errorf("Temp dir = %q, want sibling of %q", filepath.Dir(a), dst)
	}
	if !strings.HasSuffix(a, ".tmp") {
		t.Errorf("Temp name %q should end in .tmp", a)
	}
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(dst, []byte("old content"), 0644); err != nil {
		t.Fatalf("Failed to seed destination: %v", err)
	}

	tmp := TempSibling(dst)
	if err := os.WriteFile(tmp, []byte("new content"), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}

	if err := ReplaceFile(tmp, dst); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("Failed to read destination: %v", err)
	}
	if string(data) != "new content" {
		t.Errorf("Destination content = %q, want %q", data, "new content")
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("Expected temp file to be gone after replace")
	}
}

func TestReplaceFileMissingTemp(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(dst, []byte("old content"), 0644); err != nil {
		t.Fatalf("Failed to seed destination: %v", err)
	}

	if err := ReplaceFile(filepath.Join(dir, "never-written.tmp"), dst); err == nil {
		t.Fatal("Expected error when temp file does not exist")
	}

	data, _ := os.ReadFile(dst)
	if string(data) != "old content" {
		t.Errorf("Destination changed to %q, want untouched %q", data, "old content")
	}
}
