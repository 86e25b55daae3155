package status

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
	clearLine  = "\033[2K"
)

func cursorUp(n int) string { return fmt.Sprintf("\033[%dA", n) }

// Printer redraws the board in place on a plain terminal, one line per
// device.
type Printer struct {
	w         io.Writer
	board     *Board
	frameRate int
	lines     int
}

func NewPrinter(w io.Writer, board *Board, frameRate int) *Printer {
	if frameRate <= 0 {
		frameRate = 10
	}
	return &Printer{w: w, board: board, frameRate: frameRate}
}

// Render draws the current snapshot, overwriting the previous frame.
func (p *Printer) Render() {
	snap := p.board.Snapshot()

	var b strings.Builder
	if p.lines > 0 {
		b.WriteString(cursorUp(p.lines))
	}

	lines := 0
	line := func(format string, args ...any) {
		b.WriteString(clearLine)
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
		lines++
	}

	line("Recording  t=%.3fs  ticks=%d", float64(snap.ElapsedMs)/1000, snap.Ticks)
	for _, d := range snap.Devices {
		line("%s", formatDevice(d))
	}
	line("%s", snap.Notice)

	p.lines = lines
	io.WriteString(p.w, b.String())
}

// Run draws at the frame rate until done is closed or ctx ends, then
// draws a final frame.
func (p *Printer) Run(ctx context.Context, done <-chan struct{}) {
	io.WriteString(p.w, hideCursor)
	defer io.WriteString(p.w, showCursor)

	ticker := time.NewTicker(time.Second / time.Duration(p.frameRate))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			p.Render()
			return
		case <-ctx.Done():
			p.Render()
			return
		case <-ticker.C:
			p.Render()
		}
	}
}

func formatDevice(d Device) string {
	q := d.Rotation
	state := "ok"
	if !d.Valid {
		state = "--"
	}
	return fmt.Sprintf("%3d %-22s %s pos (%7.3f, %7.3f, %7.3f) quat (%6.3f, %6.3f, %6.3f, %6.3f) n=%d drop=%d",
		d.ID, truncate(d.Name, 22), state,
		d.Position.X(), d.Position.Y(), d.Position.Z(),
		q.W, q.V.X(), q.V.Y(), q.V.Z(),
		d.Samples, d.Drops)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "~"
}
