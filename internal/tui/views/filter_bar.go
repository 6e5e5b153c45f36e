package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// FilterBar is the one-line filter input above the active page.
type FilterBar struct {
	*tview.InputField
	onSubmit func(text string)
	onCancel func()
}

func NewFilterBar(theme *Theme) *FilterBar {
	input := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0).
		SetPlaceholder("text sender:name media:photo date:2024-03 reply:replied sort:sender")
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.KeyColor)
	input.SetPlaceholderTextColor(theme.MutedColor)

	fb := &FilterBar{InputField: input}
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if fb.onSubmit != nil {
				fb.onSubmit(input.GetText())
			}
		case tcell.KeyEscape:
			if fb.onCancel != nil {
				fb.onCancel()
			}
		}
	})
	return fb
}

// SetOnSubmit sets the callback for Enter.
func (fb *FilterBar) SetOnSubmit(fn func(text string)) {
	fb.onSubmit = fn
}

// SetOnCancel sets the callback for Esc.
func (fb *FilterBar) SetOnCancel(fn func()) {
	fb.onCancel = fn
}
