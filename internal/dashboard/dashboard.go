// Package dashboard renders a terminal snapshot of fuzzer progress,
// assembled from the shared counters, the library, and the log ring
// buffer.
package dashboard

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aledsdavies/covfuzz/internal/library"
	"github.com/aledsdavies/covfuzz/internal/obslog"
	"github.com/aledsdavies/covfuzz/internal/state"
)

// Dashboard renders one frame per Render call; the caller drives the
// refresh tick.
type Dashboard struct {
	state *state.State
	lib   *library.Library
	log   *obslog.RingHandler
}

// New builds a Dashboard over the shared state, library, and log ring
// buffer a fuzz run is already using.
func New(st *state.State, lib *library.Library, log *obslog.RingHandler) *Dashboard {
	return &Dashboard{state: st, lib: lib, log: log}
}

// Render writes one frame to w: a counters table, a recent-execution
// rate, and the tail of the transient log buffer.
func (d *Dashboard) Render(w io.Writer, now time.Time) {
	snap := d.state.Snapshot()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"running", d.state.Running()},
		{"elapsed", now.Sub(snap.StartTime).Round(time.Second)},
		{"tested", snap.Tested},
		{"improvements", snap.Improvements},
		{"crashes", snap.Crashes},
		{"nonzero exits", snap.Nonzero},
		{"clean exits", snap.Working},
		{"library size", d.lib.Len()},
		{"execs/sec", fmt.Sprintf("%.1f", execRate(snap.RecentExecs, now))},
	})
	if !snap.LastNewPath.IsZero() {
		t.AppendRow(table.Row{"last new path", snap.LastNewPath.Format(time.RFC3339)})
	}
	if !snap.LastUniqueCrash.IsZero() {
		t.AppendRow(table.Row{"last unique crash", snap.LastUniqueCrash.Format(time.RFC3339)})
	}
	t.Render()

	fmt.Fprintln(w, "\nrecent log:")
	for _, line := range d.log.Recent() {
		fmt.Fprintln(w, line)
	}
}

// execRate estimates executions/second from the timestamps still in the
// ring buffer, using the oldest-to-newest span.
func execRate(recent []time.Time, now time.Time) float64 {
	if len(recent) < 2 {
		return 0
	}
	span := recent[len(recent)-1].Sub(recent[0]).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(recent)-1) / span
}
