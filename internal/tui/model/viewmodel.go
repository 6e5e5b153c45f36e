// Package model holds the TUI state fetched from the daemon.
package model

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/tgsift/internal/api"
	"google.golang.org/grpc"
)

// Daemon is the part of the Sift service the TUI uses.
type Daemon interface {
	Status(ctx context.Context, in *api.StatusRequest, opts ...grpc.CallOption) (*api.StatusResponse, error)
	ListDialogs(ctx context.Context, in *api.ListDialogsRequest, opts ...grpc.CallOption) (*api.ListDialogsResponse, error)
	ListMessages(ctx context.Context, in *api.ListMessagesRequest, opts ...grpc.CallOption) (*api.ListMessagesResponse, error)
	ListTopics(ctx context.Context, in *api.ListTopicsRequest, opts ...grpc.CallOption) (*api.ListTopicsResponse, error)
}

// dialogPageSize is how many dialogs the list asks for.
const dialogPageSize = 200

// ViewModel caches daemon state between redraws. All accessors are safe for
// concurrent use; loads run off the UI goroutine.
type ViewModel struct {
	mu sync.RWMutex

	daemon   Daemon
	status   *api.StatusResponse
	dialogs  []api.Dialog
	messages []api.Message
	notes    []string
	isolated bool

	active *api.Dialog
	topics []api.Topic
	// topicIdx indexes topics; -1 means no topic filter.
	topicIdx int

	dialogQuery  string
	messageQuery api.Filter

	flash      string
	flashUntil time.Time
}

// NewViewModel creates a view model backed by d.
func NewViewModel(d Daemon) *ViewModel {
	return &ViewModel{daemon: d, topicIdx: -1}
}

// SetFlash shows msg in the status bar for d.
func (vm *ViewModel) SetFlash(msg string, d time.Duration) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.flash = msg
	vm.flashUntil = time.Now().Add(d)
}

// Flash returns the current flash message, or empty once it expired.
func (vm *ViewModel) Flash() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if time.Now().After(vm.flashUntil) {
		return ""
	}
	return vm.flash
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.Status(ctx, &api.StatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// SetDialogQuery sets the name filter of the dialog list.
func (vm *ViewModel) SetDialogQuery(q string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.dialogQuery = q
}

// LoadDialogs fetches the dialog list. refresh bypasses the daemon's cache.
func (vm *ViewModel) LoadDialogs(ctx context.Context, refresh bool) error {
	vm.mu.RLock()
	f := api.Filter{Search: vm.dialogQuery, Limit: dialogPageSize, Refresh: refresh}
	vm.mu.RUnlock()

	resp, err := vm.daemon.ListDialogs(ctx, &api.ListDialogsRequest{Filter: f})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.dialogs = resp.Dialogs
	vm.mu.Unlock()
	return nil
}

// Open makes d the active dialog and loads its topic list. A failed topic
// lookup leaves the dialog open without topics.
func (vm *ViewModel) Open(ctx context.Context, d api.Dialog) error {
	vm.mu.Lock()
	vm.active = &d
	vm.topics = nil
	vm.topicIdx = -1
	vm.messageQuery.TopicID = nil
	vm.mu.Unlock()

	resp, err := vm.daemon.ListTopics(ctx, &api.ListTopicsRequest{DialogID: d.ID})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.active != nil && vm.active.ID == d.ID {
		vm.topics = resp.Topics
	}
	vm.mu.Unlock()
	return nil
}

// SetMessageQuery replaces the message filter, keeping the selected topic.
func (vm *ViewModel) SetMessageQuery(f api.Filter) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	f.TopicID = vm.messageQuery.TopicID
	vm.messageQuery = f
}

// CycleTopic moves the topic filter to the next topic, wrapping around to no
// filter after the last one. It reports false when the dialog has no topics.
func (vm *ViewModel) CycleTopic() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.topics) == 0 {
		return false
	}
	vm.topicIdx++
	if vm.topicIdx >= len(vm.topics) {
		vm.topicIdx = -1
		vm.messageQuery.TopicID = nil
		return true
	}
	id := vm.topics[vm.topicIdx].ID
	vm.messageQuery.TopicID = &id
	return true
}

// LoadMessages fetches the active dialog's messages under the current filter.
func (vm *ViewModel) LoadMessages(ctx context.Context, refresh bool) error {
	vm.mu.RLock()
	if vm.active == nil {
		vm.mu.RUnlock()
		return nil
	}
	req := &api.ListMessagesRequest{DialogID: vm.active.ID, Filter: vm.messageQuery}
	vm.mu.RUnlock()
	req.Filter.Refresh = refresh

	resp, err := vm.daemon.ListMessages(ctx, req)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	if vm.active != nil && vm.active.ID == req.DialogID {
		vm.messages = resp.Messages
		vm.notes = resp.Notes
		vm.isolated = resp.TopicIsolated
	}
	vm.mu.Unlock()
	return nil
}

// Status returns the last fetched status, nil before the first load.
func (vm *ViewModel) Status() *api.StatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

func (vm *ViewModel) Dialogs() []api.Dialog {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.dialogs
}

func (vm *ViewModel) Messages() []api.Message {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.messages
}

// Notes returns the degradation notes of the last message load.
func (vm *ViewModel) Notes() []string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.notes
}

// Active returns the open dialog.
func (vm *ViewModel) Active() (api.Dialog, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.active == nil {
		return api.Dialog{}, false
	}
	return *vm.active, true
}

// TopicLabel describes the topic filter, empty when none is selected.
func (vm *ViewModel) TopicLabel() string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.topicIdx < 0 || vm.topicIdx >= len(vm.topics) {
		return ""
	}
	label := vm.topics[vm.topicIdx].Title
	if vm.messageQuery.TopicID != nil && !vm.isolated && len(vm.messages) > 0 {
		label += " (unisolated)"
	}
	return label
}
