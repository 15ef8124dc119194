// Package imageio reads and writes image files through whole-file byte
// streams so that paths with arbitrary characters (spaces, non-Latin
// text, quotes) never hit a backend's native file API, and provides the
// atomic-replace primitive used for subprocess output files.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ReadImage reads the whole file as an opaque byte stream and decodes
// the raster content in memory.
func ReadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// WriteImage encodes img in memory and writes the encoded bytes to
// path. Encode failures are returned, never raised past this boundary;
// the caller treats them as "try the next fallback".
func WriteImage(path string, img image.Image, format imaging.Format, quality int) error {
	var opts []imaging.EncodeOption
	switch format {
	case imaging.JPEG:
		opts = append(opts, imaging.JPEGQuality(quality))
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(png.BestCompression))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// TempSibling returns a uniquely named temporary path in the same
// directory as dst. The unique suffix keeps parallel workers from
// colliding when two sources share a base name.
func TempSibling(dst string) string {
	name := fmt.Sprintf(".%s.%s.tmp", filepath.Base(dst), uuid.NewString())
	return filepath.Join(filepath.Dir(dst), name)
}

// ReplaceFile atomically replaces dst with the fully written tmp file.
// A reader never observes a partially written destination.
func ReplaceFile(tmp, dst string) error {
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace %s: %w", dst, err)
	}
	return nil
}
