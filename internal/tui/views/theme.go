package views

import "github.com/gdamore/tcell/v2"

// Theme holds the colors shared by every view.
type Theme struct {
	BgColor       tcell.Color
	FgColor       tcell.Color
	MutedColor    tcell.Color
	BorderColor   tcell.Color
	TitleColor    tcell.Color
	HeaderFg      tcell.Color
	CursorFg      tcell.Color
	CursorBg      tcell.Color
	KeyColor      tcell.Color
	UnreadColor   tcell.Color
	FlashColor    tcell.Color
	StatusBarBg   tcell.Color
	DegradedColor tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:       tcell.ColorBlack,
		FgColor:       tcell.ColorCadetBlue,
		MutedColor:    tcell.ColorGray,
		BorderColor:   tcell.ColorDodgerBlue,
		TitleColor:    tcell.ColorFuchsia,
		HeaderFg:      tcell.ColorWhite,
		CursorFg:      tcell.ColorBlack,
		CursorBg:      tcell.ColorAqua,
		KeyColor:      tcell.ColorDodgerBlue,
		UnreadColor:   tcell.ColorOrange,
		FlashColor:    tcell.ColorNavajoWhite,
		StatusBarBg:   tcell.ColorNavy,
		DegradedColor: tcell.ColorOrangeRed,
	}
}
