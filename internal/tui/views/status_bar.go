package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/tgsift/internal/api"
	"github.com/rivo/tview"
)

// StatusBar shows the daemon state, key hints and flash messages.
type StatusBar struct {
	*tview.TextView
	theme  *Theme
	status *api.StatusResponse
	hints  []string
	flash  string
}

func NewStatusBar(theme *Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.StatusBarBg)

	return &StatusBar{TextView: tv, theme: theme}
}

// SetStatus updates the daemon status display.
func (sb *StatusBar) SetStatus(s *api.StatusResponse) {
	sb.status = s
	sb.render()
}

// SetHints updates the key hints of the active page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message. Empty clears it.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = firstLine(msg, 120)
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	var parts []string
	if s := sb.status; s != nil {
		state := s.State
		if state != "READY" {
			state = fmt.Sprintf("[%s]%s[-]", sb.theme.DegradedColor, state)
		}
		parts = append(parts, fmt.Sprintf("[::b]%s[-:-:-] %s", tview.Escape(s.Profile), state))
		if s.BlockedUntilMs > 0 {
			wait := time.Until(time.UnixMilli(s.BlockedUntilMs)).Round(time.Second)
			if wait > 0 {
				parts = append(parts, fmt.Sprintf("rate limited %s", wait))
			}
		}
	} else {
		parts = append(parts, "connecting…")
	}
	if len(sb.hints) > 0 {
		parts = append(parts, tview.Escape(strings.Join(sb.hints, "  ")))
	}
	if sb.flash != "" {
		parts = append(parts, fmt.Sprintf("[%s]%s[-]", sb.theme.FlashColor, tview.Escape(sb.flash)))
	}
	_, _ = fmt.Fprint(sb, " "+strings.Join(parts, " | "))
}
