package components

import (
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// TextInput wraps bubbles/textinput. With DateOnly set it accepts only
// the characters of a Y/M/D date or a "start-end" interval.
type TextInput struct {
	Model    textinput.Model
	DateOnly bool
}

// NewTextInput creates a focused text input.
func NewTextInput(placeholder string, dateOnly bool, charLimit int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	if charLimit > 0 {
		ti.CharLimit = charLimit
	}
	ti.Focus()
	return TextInput{Model: ti, DateOnly: dateOnly}
}

// Init returns the cursor blink command.
func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

// Update handles messages.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if t.DateOnly {
		if kmsg, ok := msg.(tea.KeyMsg); ok {
			if key := kmsg.String(); len(key) == 1 && !isDateChar(key[0]) {
				return t, nil
			}
		}
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

func isDateChar(c byte) bool {
	return (c >= '0' && c <= '9') || c == '/' || c == '-'
}

// View renders the input.
func (t TextInput) View() string {
	return t.Model.View()
}

// Value returns the current input.
func (t TextInput) Value() string {
	return t.Model.Value()
}
