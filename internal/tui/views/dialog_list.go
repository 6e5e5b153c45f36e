package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tgsift/internal/api"
	"github.com/rivo/tview"
)

// DialogList is the dialog table shown on start.
type DialogList struct {
	*tview.Table
	theme   *Theme
	dialogs []api.Dialog
}

func NewDialogList(theme *Theme) *DialogList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitle(" Dialogs ")
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.CursorFg).
		Background(theme.CursorBg))

	return &DialogList{Table: table, theme: theme}
}

// Update replaces the rows, keeping the cursor on the same dialog when it is
// still listed.
func (dl *DialogList) Update(dialogs []api.Dialog) {
	selected, hadSelection := dl.Selected()
	dl.dialogs = dialogs
	dl.Clear()

	for col, h := range []string{" NAME", " KIND", " UNREAD", " UPDATED"} {
		dl.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(dl.theme.HeaderFg).
			SetAttributes(tcell.AttrBold))
	}

	now := time.Now()
	row := 1
	for i, d := range dialogs {
		r := i + 1
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("#%d", d.ID)
		}
		color := dl.theme.FgColor
		unread := ""
		if d.UnreadCount > 0 {
			color = dl.theme.UnreadColor
			unread = fmt.Sprintf("%d", d.UnreadCount)
		}
		dl.SetCell(r, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).
			SetExpansion(1).SetMaxWidth(40).SetTextColor(color))
		dl.SetCell(r, 1, tview.NewTableCell(" "+d.Kind).SetTextColor(dl.theme.MutedColor))
		dl.SetCell(r, 2, tview.NewTableCell(" "+unread).SetAlign(tview.AlignRight).SetTextColor(color))
		dl.SetCell(r, 3, tview.NewTableCell(" "+formatTimestamp(d.UpdatedAtMs, now)).SetTextColor(dl.theme.MutedColor))
		if hadSelection && d.ID == selected.ID {
			row = r
		}
	}
	dl.SetTitle(fmt.Sprintf(" Dialogs [%d] ", len(dialogs)))
	if len(dialogs) > 0 {
		dl.Select(row, 0)
	}
}

// Selected returns the dialog under the cursor.
func (dl *DialogList) Selected() (api.Dialog, bool) {
	row, _ := dl.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(dl.dialogs) {
		return dl.dialogs[idx], true
	}
	return api.Dialog{}, false
}
