package orchestrate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
	"tools.zach/dev/wordsynth/internal/generate"
	"tools.zach/dev/wordsynth/internal/watch"
)

// monitor samples the progress counter until stopped and redraws a single
// status line. On a terminal the line is rewritten in place; otherwise a
// line is printed whenever the count changes.
type monitor struct {
	progress *generate.Progress
	total    int
	workers  int
	interval time.Duration
	out      io.Writer
	// watcher reports persisted result files; nil disables the count.
	watcher *watch.Watcher

	tty   bool
	width int
	saved int
	last  int64
}

func newMonitor(p *generate.Progress, total, workers int, interval time.Duration, out io.Writer, w *watch.Watcher) *monitor {
	m := &monitor{progress: p, total: total, workers: workers, interval: interval, out: out, watcher: w, last: -1}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		m.tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			m.width = width
		}
	}
	return m
}

// run blocks until done is closed, then draws the final state.
func (m *monitor) run(done <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var events <-chan string
	if m.watcher != nil {
		events = m.watcher.Events()
	}
	for {
		select {
		case <-done:
			m.draw()
			if m.tty {
				fmt.Fprintln(m.out)
			}
			return
		case name := <-events:
			m.saved++
			slog.Debug("result file persisted", "file", name, "saved", m.saved)
			m.draw()
		case <-ticker.C:
			m.draw()
		}
	}
}

func (m *monitor) draw() {
	n := m.progress.Load()
	if !m.tty && n == m.last {
		return
	}
	m.last = n
	line := m.line(n)
	if m.tty {
		fmt.Fprintf(m.out, "\r%s", line)
		return
	}
	fmt.Fprintln(m.out, line)
}

// line formats "[#####.....] 50/100 (50%) results 1/4", fitted to the
// terminal width when known.
func (m *monitor) line(n int64) string {
	pct := 0
	if m.total > 0 {
		pct = int(n * 100 / int64(m.total))
	}
	text := fmt.Sprintf(" %d/%d (%d%%) results %d/%d", n, m.total, pct, m.saved, m.workers)
	barWidth := 30
	if m.width > 0 {
		barWidth = min(barWidth, m.width-len(text)-3)
	}
	if barWidth < 5 {
		return strings.TrimSpace(text)
	}
	filled := barWidth * pct / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]" + text
}
