package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/magsim/internal/storage"
)

const (
	canvasWidth  = 48
	canvasHeight = 14
	fps          = 15
)

// RowMsg delivers one stored point to the model.
type RowMsg storage.Row

// DoneMsg ends the run. Err is nil on success.
type DoneMsg struct{ Err error }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// SweepModel follows a running experiment and draws m(H) as it is emitted.
type SweepModel struct {
	Title string
	// Expected is the number of points the run will emit, 0 if unknown.
	Expected int
	Window   Window

	rows   []storage.Row
	done   bool
	err    error
	frame  int
	width  int
	canvas *Canvas
}

// NewSweepModel plots H in [hmin, hmax] Tesla against m in [-1, 1].
func NewSweepModel(title string, expected int, hmin, hmax float64) SweepModel {
	return SweepModel{
		Title:    title,
		Expected: expected,
		Window:   Window{XMin: hmin, XMax: hmax, YMin: -1, YMax: 1},
		canvas:   NewCanvas(canvasWidth, canvasHeight),
	}
}

func (m SweepModel) Rows() []storage.Row { return m.rows }
func (m SweepModel) Done() bool          { return m.done }
func (m SweepModel) Err() error          { return m.err }

func (m SweepModel) Init() tea.Cmd {
	return tick()
}

func (m SweepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case RowMsg:
		m.rows = append(m.rows, storage.Row(msg))
	case DoneMsg:
		m.done = true
		m.err = msg.Err
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m SweepModel) draw() string {
	m.canvas.Clear()
	var xs, ys []float64
	var pol int64
	flush := func() {
		m.canvas.Polyline(m.Window, xs, ys)
		xs, ys = xs[:0], ys[:0]
	}
	for _, r := range m.rows {
		if r.Polarity != pol && len(xs) > 0 {
			flush()
		}
		pol = r.Polarity
		xs = append(xs, r.HApplied)
		ys = append(ys, r.M)
	}
	flush()
	return m.canvas.String()
}

func (m SweepModel) status() string {
	switch {
	case m.err != nil:
		return StatusFailed.Render("FAILED")
	case m.done:
		return StatusDone.Render("DONE")
	}
	return StatusRunning.Render(Spinner(m.frame) + " RUNNING")
}

func (m SweepModel) View() string {
	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.Title), "#00ffff", "#ff00ff") + "  " + m.status() + "\n\n")

	if m.Expected > 0 {
		frac := float64(len(m.rows)) / float64(m.Expected)
		s.WriteString(ProgressBar(frac, 30) + fmt.Sprintf(" %d/%d\n\n", len(m.rows), m.Expected))
	}

	metric := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	if n := len(m.rows); n > 0 {
		last := m.rows[n-1]
		branch := "negative"
		if last.Polarity > 0 {
			branch = "positive"
		}
		metric("branch", branch)
		metric("field", fmt.Sprintf("%d uT", last.FieldUT))
		metric("H", fmt.Sprintf("%+.4f T", last.HApplied))
		metric("m", fmt.Sprintf("%+.4f", last.M))
		metric("time", fmt.Sprintf("%d", last.EndTime))

		hist := make([]float64, n)
		for i, r := range m.rows {
			hist[i] = r.M
		}
		s.WriteString("\n" + Sparkline(hist, 30) + "\n")
	} else {
		s.WriteString(Subtle.Render("waiting for first point") + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + StatusFailed.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n" + Separator(30) + "\n" + KeyHint.Render("q: quit"))

	loop := Panel.Render(m.draw())
	return lipgloss.JoinHorizontal(lipgloss.Top, loop, Panel.Render(s.String())) + "\n"
}

// Feed forwards rows from a running experiment into a tea.Program.
type Feed struct {
	Program *tea.Program
}

func (f Feed) Observe(row storage.Row) error {
	f.Program.Send(RowMsg(row))
	return nil
}

// Finish tells the model the run has ended.
func (f Feed) Finish(err error) {
	f.Program.Send(DoneMsg{Err: err})
}
