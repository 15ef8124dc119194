// Package display renders the startup banner and the run settings echo.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"img-compress-go/internal/config"

	"github.com/mattn/go-isatty"
)

// PrintBanner prints the ASCII art banner. Suppressed automatically
// when stdout is not a terminal, and entirely with --no-intro.
func PrintBanner(w io.Writer) {
	if f, ok := w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return
	}
	fmt.Fprint(w, ` ___                ____
|_ _|_ __ ___   __ / ___|___  _ __ ___  _ __  _ __ ___  ___ ___
 | || '_ ` + "`" + ` _ \ / _` + "`" + ` | |   / _ \| '_ ` + "`" + ` _ \| '_ \| '__/ _ \/ __/ __|
 | || | | | | | (_| | |__| (_) | | | | | | |_) | | |  __/\__ \__ \
|___|_| |_| |_|\__, |\____\___/|_| |_| |_| .__/|_|  \___||___/___/
               |___/                     |_|
`)
}

// PrintSettings echoes the effective run settings before compression
// starts.
func PrintSettings(w io.Writer, cfg *config.Config) {
	sep := strings.Repeat("=", 50)
	output := cfg.OutputDir
	if output == "" {
		output = "(overwrite originals)"
	}
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "Input directory:  %s\n", cfg.InputDir)
	fmt.Fprintf(w, "Output directory: %s\n", output)
	fmt.Fprintf(w, "Quality:          %d\n", cfg.Quality)
	fmt.Fprintf(w, "Workers:          %d\n", cfg.Workers)
	fmt.Fprintln(w, sep)
}
