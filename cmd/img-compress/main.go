package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"img-compress-go/internal/compressor"
	"img-compress-go/internal/config"
	"img-compress-go/internal/display"
	"img-compress-go/internal/logger"
	"img-compress-go/internal/pipeline"
	"img-compress-go/internal/probe"
	"img-compress-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	inputDir       string
	outputDir      string
	quality        int
	recreateConfig bool
	noIntro        bool
	verbose        bool
	quiet          bool
	port           int
)

// rootCmd is the base command: one batch compression run.
var rootCmd = &cobra.Command{
	Use:   "img-compress",
	Short: "Batch-recompress PNG and JPEG images in a directory tree",
	Long: `img-compress recursively finds PNG and JPEG images under an input
directory and recompresses each one using the best available external
compressor (pngquant for PNG, mozjpeg's cjpeg for JPEG), falling back
to a built-in codec when a tool is not installed.

Results are written in place or into a mirrored output tree. Files
whose compressed output is already up to date are skipped, so repeated
runs over an unchanged tree are cheap.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd)
	},
}

// scanCmd walks the tree and reports what a run would do.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Show what a compression run would do without writing anything",
	Long: `Scan walks the input directory exactly like a compression run and
reports how many files are matched, already up to date, and pending,
without invoking any backend or writing any file.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd)
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web interface server",
	Long: `Starts an HTTP server with a small API for triggering compression
runs, stopping them, and streaming per-file outcomes over a WebSocket.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.FileName+")")
	rootCmd.PersistentFlags().StringVarP(&inputDir, "input", "i", "", "input directory with images to compress")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory (empty: overwrite originals in place)")
	rootCmd.PersistentFlags().IntVarP(&quality, "quality", "q", 0, "compression quality 0-100 (default from config)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().BoolVar(&recreateConfig, "recreate-config", false, "(re)write the default config file and exit")
	rootCmd.Flags().BoolVar(&noIntro, "no-intro", false, "suppress the startup banner")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run the web server on")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}

// configPath resolves the configuration file location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// ensureConfig loads the configuration, creating the default file on
// first run. created is true when a fresh file was written and the
// caller should exit without compressing.
func ensureConfig() (cfg *config.Config, created bool, err error) {
	path := configPath()

	if !config.Exists(path) {
		if err := config.CreateDefault(path); err != nil {
			return nil, false, err
		}
		fmt.Printf("Created default config file: %s\n", path)
		fmt.Println("Please edit it and run again.")
		return nil, true, nil
	}

	cfg, err = config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// applyFlagOverrides layers command-line flags over the loaded config.
// Flags take priority over the config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("input") {
		cfg.InputDir = inputDir
	}
	if cmd.Flags().Changed("output") {
		cfg.OutputDir = outputDir
	}
	if cmd.Flags().Changed("quality") {
		cfg.Quality = quality
	}
	return cfg.Validate()
}

// runCompress executes one full compression run.
func runCompress(cmd *cobra.Command) error {
	if recreateConfig {
		path := configPath()
		if err := config.CreateDefault(path); err != nil {
			return err
		}
		fmt.Printf("Recreated default config file: %s\n", path)
		return nil
	}

	cfg, created, err := ensureConfig()
	if err != nil {
		return err
	}
	if created {
		return nil
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}

	if !dirExists(cfg.InputDir) {
		return fmt.Errorf("input directory does not exist: %s", cfg.InputDir)
	}

	if !noIntro && !quiet {
		display.PrintBanner(os.Stdout)
		display.PrintSettings(os.Stdout, cfg)
	}

	log := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := probe.Detect(ctx, log)
	comp := compressor.NewDefaultCompressor(flags, compressor.Options{KeepMetadata: cfg.KeepMetadata}, log)
	runner := pipeline.NewRunner(cfg, log, comp, flags)

	rep, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("run interrupted")
		}
		return err
	}

	if !quiet {
		fmt.Println("\n" + rep.Summary())
	}
	return nil
}

// runScan executes a dry run and prints the scan summary.
func runScan(cmd *cobra.Command) error {
	cfg, created, err := ensureConfig()
	if err != nil {
		return err
	}
	if created {
		return nil
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}

	if !dirExists(cfg.InputDir) {
		return fmt.Errorf("input directory does not exist: %s", cfg.InputDir)
	}

	log := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := probe.Detect(ctx, log)
	comp := compressor.NewDefaultCompressor(flags, compressor.Options{KeepMetadata: cfg.KeepMetadata}, log)
	runner := pipeline.NewRunner(cfg, log, comp, flags)

	summary, err := runner.Scan(ctx)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Printf("Matched files:   %d\n", summary.Matched)
		fmt.Printf("Up to date:      %d\n", summary.UpToDate)
		fmt.Printf("Would compress:  %d\n", summary.Pending)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, created, err := ensureConfig()
	if err != nil {
		return err
	}
	if created {
		return nil
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("Web interface listening on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	settings := logger.Settings{
		Level:    cfg.LogLevel,
		FilePath: cfg.LogFile,
		Console:  !quiet,
	}

	if verbose {
		settings.Level = "debug"
	}
	if quiet {
		settings.Level = "error"
	}

	log, err := logger.New(settings)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
