package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/tgsift/internal/api"
	"github.com/rivo/tview"
)

// MessagePane shows the messages of one dialog, oldest at the top.
type MessagePane struct {
	*tview.TextView
	theme *Theme
}

func NewMessagePane(theme *Theme) *MessagePane {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Messages ")
	tv.SetTitleColor(theme.TitleColor)

	return &MessagePane{TextView: tv, theme: theme}
}

// SetHeading titles the pane with the dialog name and the topic filter.
func (mp *MessagePane) SetHeading(dialog, topic string) {
	title := " " + tview.Escape(sanitizeForTerminal(dialog)) + " "
	if topic != "" {
		title += "› " + tview.Escape(sanitizeForTerminal(topic)) + " "
	}
	mp.SetTitle(title)
}

// Update renders msgs, which arrive newest first, followed by any notes.
func (mp *MessagePane) Update(msgs []api.Message, notes []string) {
	mp.Clear()
	now := time.Now()

	if len(msgs) == 0 {
		_, _ = fmt.Fprint(mp, "[::d]no messages match[-:-:-]\n\n")
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := m.SenderName
		if sender == "" && m.SenderID != nil {
			sender = fmt.Sprintf("%d", *m.SenderID)
		}
		var tags []string
		if m.HasPhoto {
			tags = append(tags, "photo")
		}
		if m.HasVideo {
			tags = append(tags, "video")
		}
		if m.TopicID != nil {
			tags = append(tags, fmt.Sprintf("topic %d", *m.TopicID))
		}
		if m.Replied {
			tags = append(tags, "replied")
		}
		meta := formatTimestamp(m.DateMs, now)
		if len(tags) > 0 {
			meta += " · " + strings.Join(tags, ", ")
		}
		_, _ = fmt.Fprintf(mp, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), tview.Escape(meta),
			tview.Escape(sanitizeForTerminal(m.Text)))
	}
	for _, n := range notes {
		_, _ = fmt.Fprintf(mp, "[orange]! %s[-]\n", tview.Escape(n))
	}
	mp.ScrollToEnd()
}
