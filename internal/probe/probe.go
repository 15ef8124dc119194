// Package probe detects which external compression tools are installed
// on the host. Detection is done once per run; the resulting Flags value
// is immutable and shared read-only by every worker.
package probe

import (
	"context"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Tool binary names and the harmless version-query argument each accepts.
const (
	PngquantBin = "pngquant"
	CjpegBin    = "cjpeg"
	ExiftoolBin = "exiftool"
)

// Flags reports which external tools are available for this run.
type Flags struct {
	Pngquant bool
	Mozjpeg  bool
	Exiftool bool
}

// Detect probes each optional external tool exactly once. A tool is
// available when its version query launches and exits zero; anything
// else (missing binary, non-zero exit) means unavailable, which is an
// expected condition and routes the corresponding format to the
// bundled codec.
func Detect(ctx context.Context, log *logrus.Logger) Flags {
	flags := Flags{
		Pngquant: toolRuns(ctx, PngquantBin, "--version"),
		Mozjpeg:  toolRuns(ctx, CjpegBin, "-version"),
		Exiftool: toolRuns(ctx, ExiftoolBin, "-ver"),
	}

	if log != nil {
		if !flags.Pngquant {
			log.Info("pngquant not found, PNG files will use the built-in encoder")
		}
		if !flags.Mozjpeg {
			log.Info("cjpeg (mozjpeg) not found, JPEG files will use the built-in encoder")
		}
		log.WithFields(logrus.Fields{
			"pngquant": flags.Pngquant,
			"mozjpeg":  flags.Mozjpeg,
			"exiftool": flags.Exiftool,
		}).Debug("Tool availability detected")
	}

	return flags
}

// toolRuns launches name with a version-query argument, discarding all
// output. Only a clean zero exit counts as available.
func toolRuns(ctx context.Context, name string, versionArg string) bool {
	cmd := exec.CommandContext(ctx, name, versionArg)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
