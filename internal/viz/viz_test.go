package viz

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/qshpost/internal/bifurcation"
)

func TestBracketChart(t *testing.T) {
	if BracketChart(nil) != "" {
		t.Error("expected empty chart for no steps")
	}
	steps := []bifurcation.Step{
		{Bracket: bifurcation.Bracket{Left: 0, Right: 0.5}},
		{Bracket: bifurcation.Bracket{Left: 0.25, Right: 0.5}},
		{Bracket: bifurcation.Bracket{Left: 0.25, Right: 0.375}},
	}
	if out := BracketChart(steps); !strings.Contains(out, "log10 bracket width") {
		t.Errorf("missing caption:\n%s", out)
	}
}

func TestSeriesChart(t *testing.T) {
	if SeriesChart(nil, "iota") != "" {
		t.Error("expected empty chart for no values")
	}
	if out := SeriesChart([]float64{0.3}, "iota"); !strings.Contains(out, "iota") {
		t.Errorf("missing caption:\n%s", out)
	}
}

func TestSummary(t *testing.T) {
	out := Summary("iota", Float("direct", 0.25), Row{Label: "status", Value: Status(true)})
	for _, want := range []string{"iota", "direct", "0.25", "success"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestProgressModel(t *testing.T) {
	var m tea.Model = NewProgressModel("trace", 2, 4)
	m, _ = m.Update(PeriodMsg{Line: 0, Period: 1})
	m, _ = m.Update(PeriodMsg{Line: 0, Period: 2})
	m, _ = m.Update(PeriodMsg{Line: 1, Period: 2})
	m, _ = m.Update(PeriodMsg{Line: 5, Period: 1})

	pm := m.(ProgressModel)
	if got := pm.Fraction(); got != 0.5 {
		t.Errorf("fraction = %g, want 0.5", got)
	}
	if !strings.Contains(pm.View(), "4/8 periods") {
		t.Errorf("unexpected view:\n%s", pm.View())
	}

	m, cmd := m.Update(DoneMsg{Err: errors.New("boom")})
	pm = m.(ProgressModel)
	if !pm.Finished() || pm.Err() == nil {
		t.Error("expected finished model with error")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestProgressModelCancel(t *testing.T) {
	var m tea.Model = NewProgressModel("trace", 1, 1)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !m.(ProgressModel).Cancelled() || cmd == nil {
		t.Error("q should cancel and quit")
	}
}
