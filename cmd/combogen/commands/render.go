package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"github.com/Sumatoshi-tech/combogen/pkg/alphabet"
	"github.com/Sumatoshi-tech/combogen/pkg/engine"
	"github.com/Sumatoshi-tech/combogen/pkg/safeconv"
	"github.com/Sumatoshi-tech/combogen/pkg/sink"
	"github.com/Sumatoshi-tech/combogen/pkg/space"
	"github.com/Sumatoshi-tech/combogen/pkg/units"
)

const (
	logReportInterval = 5 * time.Second
	barUpdateInterval = 100 * time.Millisecond
	barTrackerLength  = 40
	millionsDivisor   = 1e6
	percentScale      = 100
	maxAlphabetShown  = 32
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func defaultWorkers() int {
	return runtime.NumCPU()
}

type headerInfo struct {
	alphabet *alphabet.Alphabet
	space    space.Descriptor
	workers  int
	start    uint64
	end      uint64
	output   string
}

func renderHeader(w io.Writer, h headerInfo) {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("combogen")

	tbl.AppendRow(table.Row{"Alphabet", fmt.Sprintf("%s (%d symbols)", abbreviate(h.alphabet.String()), h.alphabet.Len())})
	tbl.AppendRow(table.Row{"Length", h.space.Length})
	tbl.AppendRow(table.Row{"Total combinations", humanize.Comma(safeconv.ClampUint64ToInt64(h.space.Total))})
	tbl.AppendRow(table.Row{"Workers", h.workers})

	if h.start > 0 {
		tbl.AppendRow(table.Row{"Resuming from", humanize.Comma(safeconv.ClampUint64ToInt64(h.start))})
	}

	planned := h.end - h.start
	tbl.AppendRow(table.Row{"Effective total", humanize.Comma(safeconv.ClampUint64ToInt64(planned))})
	tbl.AppendRow(table.Row{"Estimated size", units.FormatSize(h.space.Bytes(planned, h.alphabet.MaxWidth()))})
	tbl.AppendRow(table.Row{"Output", h.output})

	fmt.Fprintln(w, tbl.Render())
}

// renderSummary prints the performance report. Byte figures come from the
// sink's own counters; sinks without counters show the size estimate.
func renderSummary(w io.Writer, res engine.Result, out sink.Sink, estimate uint64, plain bool) {
	secs := res.Elapsed().Seconds()

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Performance report")

	tbl.AppendRow(table.Row{"Status", statusText(res.Status, plain)})
	tbl.AppendRow(table.Row{"Generated", humanize.Comma(safeconv.ClampUint64ToInt64(res.Generated))})

	if res.StartRank > 0 {
		tbl.AppendRow(table.Row{"Resumed from", humanize.Comma(safeconv.ClampUint64ToInt64(res.StartRank))})
	}

	tbl.AppendRow(table.Row{"Checkpoint", res.Checkpoint})
	tbl.AppendRow(table.Row{"Elapsed", res.Elapsed().Round(time.Millisecond).String()})
	tbl.AppendRow(table.Row{"Throughput", fmt.Sprintf("%.2f M/s", res.Rate()/millionsDivisor)})

	if reporter, ok := out.(sink.StatsReporter); ok {
		stats := reporter.Stats()

		tbl.AppendRow(table.Row{"Data generated", units.FormatSize(stats.Accepted)})

		if stats.Stored > 0 {
			tbl.AppendRow(table.Row{"Data stored", units.FormatSize(stats.Stored)})

			if secs > 0 {
				tbl.AppendRow(table.Row{"Write speed", units.FormatSize(uint64(float64(stats.Stored)/secs)) + "/s"})
			}
		}
	} else {
		tbl.AppendRow(table.Row{"Data generated (est.)", units.FormatSize(estimate)})
	}

	if res.Err != nil {
		tbl.AppendRow(table.Row{"Error", res.Err.Error()})
	}

	fmt.Fprintln(w, tbl.Render())
}

func renderSamples(w io.Writer, samples []string, held int) {
	fmt.Fprintf(w, "Memory sink holds %s records; first %d:\n", humanize.Comma(int64(held)), len(samples))

	for _, s := range samples {
		fmt.Fprintf(w, "  %s\n", s)
	}
}

func statusText(status engine.Status, plain bool) string {
	var c *color.Color

	switch status {
	case engine.StatusCompleted:
		c = color.New(color.FgGreen, color.Bold)
	case engine.StatusLimitReached:
		c = color.New(color.FgCyan)
	case engine.StatusCancelled:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgRed, color.Bold)
	}

	if plain {
		c.DisableColor()
	}

	return c.Sprint(string(status))
}

func abbreviate(s string) string {
	r := []rune(s)
	if len(r) <= maxAlphabetShown {
		return s
	}

	return string(r[:maxAlphabetShown]) + "…"
}

// reporter renders live progress while the engine runs.
type reporter interface {
	Start()
	Stop()
}

type nopReporter struct{}

func (nopReporter) Start() {}
func (nopReporter) Stop()  {}

// barReporter draws a progress bar on an interactive terminal.
type barReporter struct {
	eng     *engine.Engine
	writer  progress.Writer
	tracker *progress.Tracker
	done    chan struct{}
	wg      sync.WaitGroup
}

func newBarReporter(out io.Writer, eng *engine.Engine) *barReporter {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(barTrackerLength)
	pw.SetUpdateFrequency(barUpdateInterval)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Speed = true
	pw.Style().Visibility.Value = true

	return &barReporter{
		eng:     eng,
		writer:  pw,
		tracker: &progress.Tracker{Message: "generating", Units: progress.UnitsDefault},
		done:    make(chan struct{}),
	}
}

func (b *barReporter) Start() {
	b.writer.AppendTracker(b.tracker)

	go b.writer.Render()

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(barUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.done:
				return
			case <-ticker.C:
				b.update()
			}
		}
	}()
}

func (b *barReporter) update() {
	p := b.eng.Progress()
	if p.Planned == 0 {
		return
	}

	b.tracker.UpdateTotal(safeconv.ClampUint64ToInt64(p.Planned))
	b.tracker.SetValue(safeconv.ClampUint64ToInt64(p.Generated))
}

func (b *barReporter) Stop() {
	close(b.done)
	b.wg.Wait()

	b.update()
	b.tracker.MarkAsDone()
	b.writer.Stop()

	for b.writer.IsRenderInProgress() {
		time.Sleep(time.Millisecond)
	}
}

// logReporter logs progress periodically when output is not a terminal.
type logReporter struct {
	eng      *engine.Engine
	logger   *slog.Logger
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

func newLogReporter(eng *engine.Engine, logger *slog.Logger, interval time.Duration) *logReporter {
	return &logReporter{eng: eng, logger: logger, interval: interval, done: make(chan struct{})}
}

func (l *logReporter) Start() {
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		started := time.Now()

		for {
			select {
			case <-l.done:
				return
			case <-ticker.C:
				l.report(time.Since(started))
			}
		}
	}()
}

func (l *logReporter) report(elapsed time.Duration) {
	p := l.eng.Progress()
	if p.Planned == 0 {
		return
	}

	pct := float64(p.Generated) / float64(p.Planned) * percentScale
	rate := float64(p.Generated) / elapsed.Seconds()

	l.logger.Info("progress",
		"generated", p.Generated,
		"planned", p.Planned,
		"percent", fmt.Sprintf("%.2f", pct),
		"rate_mps", fmt.Sprintf("%.2f", rate/millionsDivisor),
		"checkpoint", p.Checkpoint,
	)
}

func (l *logReporter) Stop() {
	close(l.done)
	l.wg.Wait()
}
