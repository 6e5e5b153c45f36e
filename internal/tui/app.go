// Package tui is a terminal browser for a running tgsiftd: a dialog list, a
// message pane per dialog, a filter bar and topic cycling.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/tgsift/internal/api"
	"github.com/matheus3301/tgsift/internal/bus"
	"github.com/matheus3301/tgsift/internal/client"
	"github.com/matheus3301/tgsift/internal/tui/keys"
	"github.com/matheus3301/tgsift/internal/tui/model"
	"github.com/matheus3301/tgsift/internal/tui/views"
	"github.com/rivo/tview"
)

const (
	pageDialogs  = "dialogs"
	pageMessages = "messages"

	statusInterval = 15 * time.Second
	flashDuration  = 5 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	vm       *model.ViewModel
	daemon   *client.Client
	registry *keys.Registry

	filterBar   *views.FilterBar
	dialogList  *views.DialogList
	messagePane *views.MessagePane
	statusBar   *views.StatusBar

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := views.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		vm:          model.NewViewModel(c),
		daemon:      c,
		registry:    keys.NewRegistry(),
		filterBar:   views.NewFilterBar(theme),
		dialogList:  views.NewDialogList(theme),
		messagePane: views.NewMessagePane(theme),
		statusBar:   views.NewStatusBar(theme),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "filter",
		Handler: func() { a.app.SetFocus(a.filterBar) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "refresh",
		Handler: func() { a.reload(true) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "quit",
		Handler: a.Stop,
	})
	a.registry.AddPage(pageMessages, &keys.Action{
		Key: tcell.KeyRune, Rune: 't', Description: "topic",
		Handler: a.nextTopic,
	})
	a.registry.AddPage(pageMessages, &keys.Action{
		Key: tcell.KeyEscape, Description: "back",
		Handler: a.showDialogs,
	})
}

func (a *App) setupCallbacks() {
	a.dialogList.SetSelectedFunc(func(int, int) {
		if d, ok := a.dialogList.Selected(); ok {
			a.openDialog(d)
		}
	})

	a.filterBar.SetOnSubmit(func(text string) {
		if a.currentPage() == pageDialogs {
			a.vm.SetDialogQuery(text)
			a.focusPage()
			a.reload(false)
			return
		}
		f, err := ParseQuery(text)
		if err != nil {
			a.flash("Filter: " + err.Error())
			return
		}
		a.vm.SetMessageQuery(f)
		a.focusPage()
		a.reload(false)
	})
	a.filterBar.SetOnCancel(a.focusPage)
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageDialogs, a.dialogList, true, true)
	a.pages.AddPage(pageMessages, a.messagePane, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.filterBar, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(root, true)
	a.statusBar.SetHints(a.registry.Hints(pageDialogs))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Text input owns every key while focused.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok {
			return event
		}
		if a.registry.HandleEvent(a.currentPage(), event) {
			return nil
		}
		return event
	})
}

func (a *App) currentPage() string {
	name, _ := a.pages.GetFrontPage()
	return name
}

func (a *App) focusPage() {
	if a.currentPage() == pageMessages {
		a.app.SetFocus(a.messagePane)
		return
	}
	a.app.SetFocus(a.dialogList)
}

func (a *App) showDialogs() {
	a.pages.SwitchToPage(pageDialogs)
	a.filterBar.SetText("")
	a.statusBar.SetHints(a.registry.Hints(pageDialogs))
	a.app.SetFocus(a.dialogList)
}

func (a *App) openDialog(d api.Dialog) {
	a.filterBar.SetText("")
	a.vm.SetMessageQuery(api.Filter{})
	go func() {
		topicErr := a.vm.Open(a.ctx, d)
		err := a.vm.LoadMessages(a.ctx, false)
		a.app.QueueUpdateDraw(func() {
			switch {
			case err != nil:
				a.flash("Load failed: " + err.Error())
			case topicErr != nil:
				a.flash("Topics unavailable: " + topicErr.Error())
			}
			a.messagePane.SetHeading(d.Name, a.vm.TopicLabel())
			a.messagePane.Update(a.vm.Messages(), a.vm.Notes())
			a.pages.SwitchToPage(pageMessages)
			a.statusBar.SetHints(a.registry.Hints(pageMessages))
			a.app.SetFocus(a.messagePane)
		})
	}()
}

func (a *App) nextTopic() {
	if !a.vm.CycleTopic() {
		a.flash("This dialog has no topics")
		return
	}
	a.reload(false)
}

// reload refetches the data behind the active page.
func (a *App) reload(refresh bool) {
	page := a.currentPage()
	go func() {
		var err error
		if page == pageMessages {
			err = a.vm.LoadMessages(a.ctx, refresh)
		} else {
			err = a.vm.LoadDialogs(a.ctx, refresh)
		}
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.flash("Load failed: " + err.Error())
				return
			}
			if page == pageMessages {
				if d, ok := a.vm.Active(); ok {
					a.messagePane.SetHeading(d.Name, a.vm.TopicLabel())
				}
				a.messagePane.Update(a.vm.Messages(), a.vm.Notes())
				return
			}
			a.dialogList.Update(a.vm.Dialogs())
		})
	}()
}

// flash shows msg in the status bar. Call it on the UI goroutine only.
func (a *App) flash(msg string) {
	a.vm.SetFlash(msg, flashDuration)
	a.statusBar.SetFlash(msg)
}

// Run starts the TUI application. It blocks until the user quits.
func (a *App) Run() error {
	go func() {
		statusErr := a.vm.LoadStatus(a.ctx)
		err := a.vm.LoadDialogs(a.ctx, false)
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetStatus(a.vm.Status())
			if statusErr != nil {
				a.flash("Daemon unreachable: " + statusErr.Error())
				return
			}
			if err != nil {
				a.flash("Load failed: " + err.Error())
				return
			}
			a.dialogList.Update(a.vm.Dialogs())
		})
		go a.watchStatus()
		a.startRefreshLoop()
	}()

	return a.app.Run()
}

// watchStatus refreshes the status bar whenever the daemon changes state.
func (a *App) watchStatus() {
	stream, err := a.daemon.WatchEvents(a.ctx, &api.WatchEventsRequest{Prefix: "daemon."})
	if err != nil {
		return
	}
	for {
		evt, err := stream.Recv()
		if err != nil {
			return
		}
		if evt.Kind != bus.KindStatusChanged {
			continue
		}
		if err := a.vm.LoadStatus(a.ctx); err == nil {
			a.app.QueueUpdateDraw(func() { a.statusBar.SetStatus(a.vm.Status()) })
		}
	}
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(statusInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.vm.LoadStatus(a.ctx)
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetStatus(a.vm.Status())
					a.statusBar.SetFlash(a.vm.Flash())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
