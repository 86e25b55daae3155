package status

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type tickMsg time.Time

type doneMsg struct{}

func tick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	title    string
	board    *Board
	stop     func()
	every    time.Duration
	snap     Snapshot
	stopping bool
	width    int
}

func newModel(title string, board *Board, stop func(), frameRate int) model {
	if frameRate <= 0 {
		frameRate = 10
	}
	return model{
		title: title,
		board: board,
		stop:  stop,
		every: time.Second / time.Duration(frameRate),
		snap:  board.Snapshot(),
		width: 80,
	}
}

func (m model) Init() tea.Cmd { return tick(m.every) }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.stopping {
			m.stopping = true
			if m.stop != nil {
				m.stop()
			}
		}
		m.snap = m.board.Snapshot()
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case doneMsg:
		m.stopping = true
		m.snap = m.board.Snapshot()
		return m, tea.Quit
	case tickMsg:
		m.snap = m.board.Snapshot()
		return m, tick(m.every)
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	badge := Recording.Render("● REC")
	if m.stopping {
		badge = Stopped.Render("■ STOPPED")
	}
	b.WriteString(fmt.Sprintf("%s  %s  %s %s  %s %s\n",
		Title.Render(m.title), badge,
		Label.Render("t"), Value.Render(fmt.Sprintf("%.3fs", float64(m.snap.ElapsedMs)/1000)),
		Label.Render("ticks"), Value.Render(fmt.Sprintf("%d", m.snap.Ticks)),
	))

	var rows strings.Builder
	rows.WriteString(Header.Render(fmt.Sprintf("%-3s %-22s %-26s %-30s %8s %6s", "id", "device", "position (m)", "quaternion (w x y z)", "samples", "drops")))
	rows.WriteString("\n")
	if len(m.snap.Devices) == 0 {
		rows.WriteString(Subtle.Render("no devices selected"))
		rows.WriteString("\n")
	}
	for _, d := range m.snap.Devices {
		state := Good.Render("●")
		if !d.Valid {
			state = Bad.Render("○")
		}
		drops := Label.Render(fmt.Sprintf("%6d", d.Drops))
		if d.Drops > 0 {
			drops = Warn.Render(fmt.Sprintf("%6d", d.Drops))
		}
		q := d.Rotation
		rows.WriteString(fmt.Sprintf("%3d %s %-20s %-26s %-30s %8d %s  %s\n",
			d.ID, state, truncate(d.Name, 20),
			fmt.Sprintf("%6.3f %6.3f %6.3f", d.Position.X(), d.Position.Y(), d.Position.Z()),
			fmt.Sprintf("%6.3f %6.3f %6.3f %6.3f", q.W, q.V.X(), q.V.Y(), q.V.Z()),
			d.Samples, drops, Subtle.Render(Sparkline(d.Height, 16)),
		))
	}
	b.WriteString(Panel.Render(strings.TrimRight(rows.String(), "\n")))
	b.WriteString("\n")

	if m.snap.Notice != "" {
		b.WriteString(Warn.Render(m.snap.Notice))
		b.WriteString("\n")
	}
	b.WriteString(KeyHint.Render("press any key to stop recording"))
	b.WriteString("\n")
	return b.String()
}

// RunTUI shows the board until a key is pressed, done is closed or ctx
// ends. A key press calls stop once.
func RunTUI(ctx context.Context, title string, board *Board, stop func(), done <-chan struct{}, frameRate int, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(newModel(title, board, stop, frameRate), opts...)

	go func() {
		select {
		case <-done:
		case <-ctx.Done():
		}
		p.Send(doneMsg{})
	}()

	_, err := p.Run()
	return err
}
