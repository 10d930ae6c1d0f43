package app

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/dalil/internal/router"
	"github.com/abhisek/dalil/internal/screen"
	"github.com/abhisek/dalil/internal/ui/layout"
)

type titledScreen struct {
	title string
}

func (s *titledScreen) Init() tea.Cmd                           { return nil }
func (s *titledScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *titledScreen) View(int, int) string                    { return "body of " + s.title }
func (s *titledScreen) Title() string                           { return s.title }
func (s *titledScreen) Status() string                          { return "Q 1/5" }

func (s *titledScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Enter", Description: "Pick"}}
}

func TestAppModel_ViewFramesActiveScreen(t *testing.T) {
	var m tea.Model = newAppModel(&titledScreen{title: "Quiz"})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	out := m.(AppModel).render()
	for _, want := range []string{"Dalil", "Quiz", "Q 1/5", "Pick", "body of Quiz"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestAppModel_TooSmall(t *testing.T) {
	var m tea.Model = newAppModel(&titledScreen{title: "Quiz"})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 20, Height: 10})

	if out := m.(AppModel).render(); !strings.Contains(out, "Terminal too small") {
		t.Errorf("expected size warning, got %q", out)
	}
}

func TestAppModel_EscPopsOnlyAboveRoot(t *testing.T) {
	m := newAppModel(&titledScreen{title: "root"})
	if _, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape}); cmd != nil {
		t.Error("esc on the root screen should do nothing")
	}

	m.router.Push(&titledScreen{title: "child"})
	_, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd == nil {
		t.Fatal("expected pop command")
	}
	if _, ok := cmd().(router.PopScreenMsg); !ok {
		t.Error("expected PopScreenMsg")
	}
}
