// Package metadata preserves EXIF data across JPEG re-encodes and
// stamps recompressed files with a Software marker so that in-place
// runs can recognize their own output.
package metadata

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
)

// SoftwareMark is written into the EXIF Software tag after an in-place
// JPEG recompression.
const SoftwareMark = "ImgCompress"

// CopyTags copies all EXIF tags from src to dst and sets the Software
// marker, using the exiftool binary. The caller is expected to have
// confirmed exiftool availability first.
func CopyTags(ctx context.Context, src, dst string) error {
	copyCmd := exec.CommandContext(ctx, "exiftool", "-TagsFromFile", src, "-overwrite_original", dst)
	if err := copyCmd.Run(); err != nil {
		return fmt.Errorf("exiftool copy tags: %w", err)
	}
	markCmd := exec.CommandContext(ctx, "exiftool", "-overwrite_original",
		"-Software="+SoftwareMark, dst)
	if err := markCmd.Run(); err != nil {
		return fmt.Errorf("exiftool set software: %w", err)
	}
	return nil
}

// HasMark reports whether the EXIF Software tag of path carries the
// marker. This is the fast in-process check; any read or decode error
// simply means "not marked".
func HasMark(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return false
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return false
	}
	val, err := tag.StringVal()
	if err != nil {
		return false
	}
	return strings.Contains(val, SoftwareMark)
}

// Software returns the EXIF Software tag of path using the exiftool
// binary, which understands far more metadata layouts than the
// in-process decoder. Used by scan reporting.
func Software(path string) (string, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return "", err
	}
	defer et.Close()

	files := et.ExtractMetadata(path)
	if len(files) == 0 {
		return "", fmt.Errorf("no metadata for %s", path)
	}
	if files[0].Err != nil {
		return "", files[0].Err
	}
	if sw, ok := files[0].Fields["Software"].(string); ok {
		return sw, nil
	}
	return "", nil
}
