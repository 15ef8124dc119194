// Package report accumulates the outcome counters for one compression
// run and renders the final summary.
package report

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Report contains all counters for one run. Counters grow monotonically
// as outcomes arrive; Finalize is called once after the walk completes.
// For every run Compressed + Skipped + Failed == TotalFiles.
type Report struct {
	TotalFiles int64
	Compressed int64
	Skipped    int64
	Failed     int64

	BytesIn  int64
	BytesOut int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64
}

// New returns a Report with the clock already running.
func New() *Report {
	return &Report{StartTime: time.Now()}
}

// IncrementTotal increases the count of matched files by 1.
func (r *Report) IncrementTotal() {
	atomic.AddInt64(&r.TotalFiles, 1)
}

// IncrementCompressed increases the count of compressed files by 1.
func (r *Report) IncrementCompressed() {
	atomic.AddInt64(&r.Compressed, 1)
}

// IncrementSkipped increases the count of skipped files by 1.
func (r *Report) IncrementSkipped() {
	atomic.AddInt64(&r.Skipped, 1)
}

// IncrementFailed increases the count of failed files by 1.
func (r *Report) IncrementFailed() {
	atomic.AddInt64(&r.Failed, 1)
}

// AddBytes records the source and output sizes of one compressed file.
func (r *Report) AddBytes(in, out int64) {
	atomic.AddInt64(&r.BytesIn, in)
	atomic.AddInt64(&r.BytesOut, out)
}

// Finalize stamps the end time and derives the timing figures.
func (r *Report) Finalize() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	if secs := r.Duration.Seconds(); secs > 0 {
		r.FilesPerSecond = float64(atomic.LoadInt64(&r.TotalFiles)) / secs
	}
}

// Summary returns the final run report rendered as a table plus the
// space savings line.
func (r *Report) Summary() string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Count"})
	t.AppendRows([]table.Row{
		{"Total files", atomic.LoadInt64(&r.TotalFiles)},
		{"Compressed", atomic.LoadInt64(&r.Compressed)},
		{"Skipped", atomic.LoadInt64(&r.Skipped)},
		{"Failed", atomic.LoadInt64(&r.Failed)},
	})
	t.AppendFooter(table.Row{"Duration", r.Duration.Round(time.Millisecond)})

	in := atomic.LoadInt64(&r.BytesIn)
	out := atomic.LoadInt64(&r.BytesOut)
	savings := "n/a"
	if in > 0 {
		savings = fmt.Sprintf("%s -> %s (%.1f%% saved)",
			formatBytes(in), formatBytes(out),
			float64(in-out)*100/float64(in))
	}

	return fmt.Sprintf("Compression Run Report:\n%s\nSpace: %s\nThroughput: %.2f files/s",
		t.Render(), savings, r.FilesPerSecond)
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
