// Package keys maps key events to TUI actions, per page and globally.
package keys

import "github.com/gdamore/tcell/v2"

// Action is one keybinding.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	// Hidden actions still fire but are left out of the hint line.
	Hidden bool
}

// Matches reports whether ev triggers the action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Hint renders the action as "<key> <description>".
func (a *Action) Hint() string {
	if a.Key == tcell.KeyRune {
		return string(a.Rune) + " " + a.Description
	}
	if name, ok := tcell.KeyNames[a.Key]; ok {
		return name + " " + a.Description
	}
	return a.Description
}

// Registry holds keybindings in registration order. Page bindings take
// precedence over global ones.
type Registry struct {
	global []*Action
	pages  map[string][]*Action
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string][]*Action)}
}

func (r *Registry) AddGlobal(a *Action) {
	r.global = append(r.global, a)
}

func (r *Registry) AddPage(page string, a *Action) {
	r.pages[page] = append(r.pages[page], a)
}

// Hints lists the visible bindings active on page, page bindings first.
func (r *Registry) Hints(page string) []string {
	var hints []string
	for _, a := range append(append([]*Action(nil), r.pages[page]...), r.global...) {
		if !a.Hidden {
			hints = append(hints, a.Hint())
		}
	}
	return hints
}

// HandleEvent runs the first binding on page matching ev and reports whether
// one did.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, a := range r.pages[page] {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.global {
		if a.Matches(ev) {
			a.Handler()
			return true
		}
	}
	return false
}
