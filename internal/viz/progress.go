package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/qshpost/internal/tracing"
)

const maxLineRows = 8

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// PeriodMsg reports that a line finished a field period (1-based).
type PeriodMsg struct {
	Line, Period, TotalLines, TotalPeriods int
}

type DoneMsg struct {
	Err error
}

type TickMsg time.Time

// ProgressModel shows how far each traced line has got.
type ProgressModel struct {
	title     string
	periods   int
	perLine   []int
	done      int
	frame     int
	started   time.Time
	finished  bool
	cancelled bool
	err       error
}

func NewProgressModel(title string, lines, periods int) ProgressModel {
	return ProgressModel{
		title:   title,
		periods: periods,
		perLine: make([]int, lines),
		started: time.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	case PeriodMsg:
		if msg.Line >= 0 && msg.Line < len(m.perLine) && msg.Period > m.perLine[msg.Line] {
			m.done += msg.Period - m.perLine[msg.Line]
			m.perLine[msg.Line] = msg.Period
		}
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	case TickMsg:
		if m.finished {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

// Fraction is the share of all periods completed.
func (m ProgressModel) Fraction() float64 {
	total := len(m.perLine) * m.periods
	if total == 0 {
		return 0
	}
	return float64(m.done) / float64(total)
}

func (m ProgressModel) Finished() bool  { return m.finished }
func (m ProgressModel) Cancelled() bool { return m.cancelled }
func (m ProgressModel) Err() error      { return m.err }

func (m ProgressModel) View() string {
	var s strings.Builder
	status := AnimatedSpinner(m.frame)
	switch {
	case m.finished && m.err != nil:
		status = StatusFailed.Render("failed")
	case m.finished:
		status = StatusOK.Render("done")
	}
	s.WriteString(headerStyle.Render(m.title+" "+status) + "\n")
	s.WriteString(ProgressBar(m.Fraction(), 40))
	s.WriteString(fmt.Sprintf(" %3.0f%%  %d/%d periods  %s\n",
		100*m.Fraction(), m.done, len(m.perLine)*m.periods, time.Since(m.started).Truncate(time.Second)))

	rows := len(m.perLine)
	if rows > maxLineRows {
		rows = maxLineRows
	}
	for i := 0; i < rows; i++ {
		frac := 0.0
		if m.periods > 0 {
			frac = float64(m.perLine[i]) / float64(m.periods)
		}
		s.WriteString(MetricLabel.Render(fmt.Sprintf("line %d", i)) + ProgressBar(frac, 20) + "\n")
	}
	if len(m.perLine) > rows {
		s.WriteString(Subtle.Render(fmt.Sprintf("... %d more lines", len(m.perLine)-rows)) + "\n")
	}
	if m.err != nil {
		s.WriteString(StatusFailed.Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("q: cancel"))
	return s.String()
}

// RunProgress runs work while a progress view is shown. work must pass obs
// to the tracer. Quitting the view cancels work's context.
func RunProgress(ctx context.Context, title string, lines, periods int, work func(ctx context.Context, obs tracing.Observer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgressModel(title, lines, periods))
	errc := make(chan error, 1)
	go func() {
		err := work(ctx, tracing.ObserverFunc(func(line, period, totalLines, totalPeriods int) {
			p.Send(PeriodMsg{Line: line, Period: period, TotalLines: totalLines, TotalPeriods: totalPeriods})
		}))
		errc <- err
		p.Send(DoneMsg{Err: err})
	}()

	_, runErr := p.Run()
	cancel()
	workErr := <-errc
	if workErr != nil {
		return workErr
	}
	return runErr
}
