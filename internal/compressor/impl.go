package compressor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"img-compress-go/internal/imageio"
	"img-compress-go/internal/metadata"
	"img-compress-go/internal/probe"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Options tune behavior that is not part of the per-file task.
type Options struct {
	// KeepMetadata copies EXIF tags onto recompressed JPEGs when the
	// exiftool binary is available.
	KeepMetadata bool
}

// DefaultCompressor is the default implementation of the FileCompressor
// interface. Tool availability is injected once at construction and
// never re-probed per file.
type DefaultCompressor struct {
	flags probe.Flags
	opts  Options
	log   *logrus.Logger
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
func NewDefaultCompressor(flags probe.Flags, opts Options, log *logrus.Logger) *DefaultCompressor {
	if log == nil {
		log = logrus.New()
	}
	return &DefaultCompressor{flags: flags, opts: opts, log: log}
}

// Compress resolves a single task: staleness check, backend dispatch,
// outcome. Every failure is caught here, logged with the offending
// path, and converted to StatusFailed rather than aborting the run.
func (c *DefaultCompressor) Compress(ctx context.Context, task Task) Result {
	res := Result{Task: task, StartedAt: time.Now()}

	srcInfo, err := os.Stat(task.Source)
	if err != nil {
		return c.fail(res, fmt.Errorf("stat source: %w", err))
	}
	res.OriginalSize = srcInfo.Size()

	if err := os.MkdirAll(filepath.Dir(task.Destination), 0755); err != nil {
		return c.fail(res, fmt.Errorf("create destination dir: %w", err))
	}

	if skip, why := c.shouldSkip(task, srcInfo); skip {
		res.Status = StatusSkipped
		res.Message = why
		res.FinishedAt = time.Now()
		c.log.WithField("file", task.Source).Debugf("Skipped: %s", why)
		return res
	}

	ext := strings.ToLower(filepath.Ext(task.Source))
	switch ext {
	case ".png":
		err = c.compressPNG(ctx, task)
	case ".jpg", ".jpeg":
		err = c.compressJPEG(ctx, task)
	default:
		// The walker filters extensions; reaching this is a wiring bug.
		err = fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return c.fail(res, err)
	}

	if (ext == ".jpg" || ext == ".jpeg") && c.opts.KeepMetadata && c.flags.Exiftool {
		if metaErr := metadata.CopyTags(ctx, task.Source, task.Destination); metaErr != nil {
			c.log.WithField("file", task.Destination).Warnf("EXIF not preserved: %v", metaErr)
		}
	}

	res.Status = StatusCompressed
	res.Message = "Image compressed"
	if info, statErr := os.Stat(task.Destination); statErr == nil {
		res.CompressedSize = info.Size()
	}
	res.FinishedAt = time.Now()
	return res
}

// fail finalizes res as StatusFailed and logs the cause with the path.
func (c *DefaultCompressor) fail(res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	res.Message = err.Error()
	res.FinishedAt = time.Now()
	c.log.WithField("file", res.Source).Errorf("Compression failed: %v", err)
	return res
}

// shouldSkip implements the staleness check: an existing destination at
// least as new as the source means the previous output is still valid.
// When source and destination are the same file (overwrite mode) the
// mtime test is meaningless, so the EXIF software marker decides for
// JPEGs instead.
func (c *DefaultCompressor) shouldSkip(task Task, srcInfo os.FileInfo) (bool, string) {
	if filepath.Clean(task.Source) == filepath.Clean(task.Destination) {
		ext := strings.ToLower(filepath.Ext(task.Source))
		if (ext == ".jpg" || ext == ".jpeg") && metadata.HasMark(task.Source) {
			return true, "already compressed in place"
		}
		return false, ""
	}

	dstInfo, err := os.Stat(task.Destination)
	if err != nil {
		return false, ""
	}
	if !srcInfo.ModTime().After(dstInfo.ModTime()) {
		return true, "destination is up to date"
	}
	return false, ""
}

// compressPNG routes a PNG through pngquant when available, otherwise
// through the built-in encoder. A non-zero pngquant exit is a hard
// failure for the file; the built-in encoder is only used when the tool
// was never available in the first place.
func (c *DefaultCompressor) compressPNG(ctx context.Context, task Task) error {
	if c.flags.Pngquant {
		return runTool(ctx, probe.PngquantBin, pngquantArgs(task))
	}

	img, err := imageio.ReadImage(task.Source)
	if err != nil {
		return err
	}
	return imageio.WriteImage(task.Destination, img, imaging.PNG, task.Quality)
}

// compressJPEG routes a JPEG through cjpeg when available, writing to a
// temporary sibling and atomically replacing the destination so a
// killed subprocess can never leave a torn file. Without cjpeg it falls
// back to the path-safe read, then to the codec's own loader, then
// re-encodes at the requested quality.
func (c *DefaultCompressor) compressJPEG(ctx context.Context, task Task) error {
	if c.flags.Mozjpeg {
		tmp := imageio.TempSibling(task.Destination)
		defer os.Remove(tmp)
		if err := runTool(ctx, probe.CjpegBin, cjpegArgs(task, tmp)); err != nil {
			return err
		}
		return imageio.ReplaceFile(tmp, task.Destination)
	}

	img, err := imageio.ReadImage(task.Source)
	if err != nil {
		img, err = imaging.Open(task.Source)
		if err != nil {
			return fmt.Errorf("decode %s: %w", task.Source, err)
		}
	}
	return imageio.WriteImage(task.Destination, img, imaging.JPEG, task.Quality)
}

// pngquantArgs builds the pngquant argument vector. The quality range
// spans [max(10, quality-20), quality].
func pngquantArgs(task Task) []string {
	minQuality := task.Quality - 20
	if minQuality < 10 {
		minQuality = 10
	}
	return []string{
		"--skip-if-larger", "--force",
		"--quality", fmt.Sprintf("%d-%d", minQuality, task.Quality),
		task.Source,
		"--output", task.Destination,
	}
}

// cjpegArgs builds the cjpeg argument vector with an explicit output
// file, never shell redirection.
func cjpegArgs(task Task, outFile string) []string {
	return []string{
		"-quality", strconv.Itoa(task.Quality),
		"-outfile", outFile,
		task.Source,
	}
}

// runTool invokes an external compressor with an argument vector and
// treats any non-zero exit as an error carrying the tool's output.
func runTool(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
