// Package pipeline walks the input tree, feeds matched files through
// the single-file compressor on a bounded worker pool, and aggregates
// the outcomes into the run report.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"img-compress-go/internal/compressor"
	"img-compress-go/internal/config"
	"img-compress-go/internal/metadata"
	"img-compress-go/internal/probe"
	"img-compress-go/internal/report"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// ResultHook receives every per-file result as it is produced. Used to
// stream progress to the web interface.
type ResultHook func(res compressor.Result)

// Runner drives one compression run over a directory tree.
type Runner struct {
	cfg     *config.Config
	log     *logrus.Logger
	comp    compressor.FileCompressor
	flags   probe.Flags
	workers int
	hook    ResultHook
}

// NewRunner returns a new Runner.
func NewRunner(cfg *config.Config, log *logrus.Logger, comp compressor.FileCompressor, flags probe.Flags) *Runner {
	return NewRunnerWithHook(cfg, log, comp, flags, nil)
}

// NewRunnerWithHook returns a Runner that additionally forwards every
// per-file result to hook.
func NewRunnerWithHook(cfg *config.Config, log *logrus.Logger, comp compressor.FileCompressor, flags probe.Flags, hook ResultHook) *Runner {
	workers := cfg.Workers
	if workers <= 0 {
		workers = config.DefaultWorkers()
	}
	return &Runner{
		cfg:     cfg,
		log:     log,
		comp:    comp,
		flags:   flags,
		workers: workers,
		hook:    hook,
	}
}

// Run walks the input tree, compresses every matched file, and returns
// the finished report. An interrupted run returns the context error and
// no report; the report is only ever emitted after the walk completes
// in full.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	outRoot := r.cfg.OutputRoot()
	if err := os.MkdirAll(outRoot, 0755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}

	runLock := flock.New(filepath.Join(outRoot, ".img-compress.lock"))
	locked, err := runLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run is already in progress for %s", outRoot)
	}
	defer runLock.Unlock()

	rep := report.New()

	tasks, err := r.discoverTasks()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	if len(tasks) == 0 {
		r.log.Info("No image files found to compress")
		rep.Finalize()
		return rep, nil
	}
	r.log.Infof("Found %d image files to process", len(tasks))

	jobs := make(chan compressor.Task, len(tasks))
	var wg sync.WaitGroup
	wg.Add(r.workers)
	for w := 0; w < r.workers; w++ {
		go func() {
			defer wg.Done()
			for task := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				r.fold(rep, r.comp.Compress(ctx, task))
			}
		}()
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		r.log.Warn("Run interrupted, no report produced")
		return nil, err
	}

	rep.Finalize()
	r.log.Info("Compression run completed")
	return rep, nil
}

// fold accumulates one outcome into the report counters.
func (r *Runner) fold(rep *report.Report, res compressor.Result) {
	rep.IncrementTotal()
	switch res.Status {
	case compressor.StatusCompressed:
		rep.IncrementCompressed()
		rep.AddBytes(res.OriginalSize, res.CompressedSize)
		r.log.Infof("Compressed: %s -> %s", res.Source, res.Destination)
	case compressor.StatusSkipped:
		rep.IncrementSkipped()
	case compressor.StatusFailed:
		rep.IncrementFailed()
	}
	if r.hook != nil {
		r.hook(res)
	}
}

// discoverTasks enumerates every regular file under the input root with
// a matched extension and resolves its mirrored destination. All other
// files are silently ignored.
func (r *Runner) discoverTasks() ([]compressor.Task, error) {
	inputDir := r.cfg.InputDir
	outRoot := r.cfg.OutputRoot()

	var tasks []compressor.Task
	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			r.log.Warnf("Error accessing path %s: %v", path, err)
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		if !matchedExtension(path) {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			r.log.Warnf("Could not resolve relative path for %s: %v", path, err)
			return nil
		}

		tasks = append(tasks, compressor.Task{
			Source:      path,
			Destination: filepath.Join(outRoot, rel),
			Quality:     r.cfg.Quality,
		})
		return nil
	})
	return tasks, err
}

// matchedExtension reports whether path names a PNG or JPEG file.
func matchedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// ScanSummary describes what a run would do, without writing anything.
type ScanSummary struct {
	Matched  int
	UpToDate int
	Pending  int
}

// Scan walks the tree like Run but only classifies each matched file as
// up to date or pending. Nothing is written.
func (r *Runner) Scan(ctx context.Context) (*ScanSummary, error) {
	tasks, err := r.discoverTasks()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	summary := &ScanSummary{Matched: len(tasks)}
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.wouldSkip(task) {
			summary.UpToDate++
			r.log.Debugf("Up to date: %s", task.Source)
		} else {
			summary.Pending++
			r.log.Debugf("Would compress: %s", task.Source)
		}
	}
	return summary, nil
}

// wouldSkip mirrors the compressor's staleness decision for dry runs.
func (r *Runner) wouldSkip(task compressor.Task) bool {
	if filepath.Clean(task.Source) == filepath.Clean(task.Destination) {
		ext := strings.ToLower(filepath.Ext(task.Source))
		if ext != ".jpg" && ext != ".jpeg" {
			return false
		}
		if r.flags.Exiftool {
			if sw, err := metadata.Software(task.Source); err == nil {
				return strings.Contains(sw, metadata.SoftwareMark)
			}
		}
		return metadata.HasMark(task.Source)
	}

	srcInfo, err := os.Stat(task.Source)
	if err != nil {
		return false
	}
	dstInfo, err := os.Stat(task.Destination)
	if err != nil {
		return false
	}
	return !srcInfo.ModTime().After(dstInfo.ModTime())
}
