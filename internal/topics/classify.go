package topics

import (
	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
)

// Assignment is the thread a message was traced to.
type Assignment struct {
	ThreadID int64
	// Explicit is set when the trace ended at a thread marker (a ThreadRoot or
	// ThreadReply) rather than at the last reachable reply target.
	Explicit bool
}

// Classifier traces reply chains through one scanned page of messages. It is
// not safe for concurrent use.
type Classifier struct {
	byID map[int64]remote.Message
	memo map[int64]traced
}

type traced struct {
	a  Assignment
	ok bool
}

// NewClassifier indexes page. Duplicate ids keep the first occurrence.
func NewClassifier(page []remote.Message) *Classifier {
	c := &Classifier{
		byID: make(map[int64]remote.Message, len(page)),
		memo: make(map[int64]traced, len(page)),
	}
	for _, m := range page {
		if _, dup := c.byID[m.ID]; !dup {
			c.byID[m.ID] = m
		}
	}
	return c
}

// Assign traces m to a thread. Explicit markers on m itself win over whatever
// its reply chain suggests. ok is false for messages that are neither thread
// roots nor replies, and for chains that loop.
func (c *Classifier) Assign(m remote.Message) (Assignment, bool) {
	return c.assign(m, make(map[int64]struct{}, 4))
}

func (c *Classifier) assign(m remote.Message, visiting map[int64]struct{}) (Assignment, bool) {
	switch r := m.Reply.(type) {
	case remote.ThreadRoot:
		return Assignment{ThreadID: m.ID, Explicit: true}, true
	case remote.ThreadReply:
		if r.RootID != 0 {
			return Assignment{ThreadID: r.RootID, Explicit: true}, true
		}
		return c.follow(m.ID, r.ToID, visiting)
	case remote.PlainReply:
		return c.follow(m.ID, r.ToID, visiting)
	}
	return Assignment{}, false
}

// follow resolves the reply edge from -> to.
func (c *Classifier) follow(from, to int64, visiting map[int64]struct{}) (Assignment, bool) {
	if to == 0 || to == from {
		return Assignment{}, false
	}
	if t, done := c.memo[from]; done {
		return t.a, t.ok
	}
	if _, loop := visiting[from]; loop {
		return Assignment{}, false
	}
	visiting[from] = struct{}{}

	var (
		a  Assignment
		ok bool
	)
	parent, inPage := c.byID[to]
	switch {
	case !inPage:
		// The chain leaves the page; its last known target stands in for the root.
		a, ok = Assignment{ThreadID: to}, true
	default:
		a, ok = c.assign(parent, visiting)
		if !ok {
			switch parent.Reply.(type) {
			case remote.NoReply, nil:
				// A plain message that collected replies.
				a, ok = Assignment{ThreadID: parent.ID}, true
			}
		}
	}
	c.memo[from] = traced{a: a, ok: ok}
	return a, ok
}

// Belongs reports whether m is part of the thread rooted at topicID: it is the
// root itself, or its markers or reply chain resolve to topicID. The implicit
// General topic also takes every message not explicitly placed elsewhere.
func (c *Classifier) Belongs(m remote.Message, topicID int64) bool {
	if m.ID == topicID {
		return true
	}
	a, ok := c.Assign(m)
	if topicID == model.GeneralTopicID {
		return !ok || !a.Explicit || a.ThreadID == topicID
	}
	return ok && a.ThreadID == topicID
}

// Threads returns every thread whose root or explicit markers were seen in the
// page, in order of first appearance. Titles come from ThreadRoot metadata
// when the root is in the page, else a "Thread #<id>" placeholder.
func (c *Classifier) Threads(page []remote.Message) []model.Topic {
	var (
		topics []model.Topic
		seen   = make(map[int64]struct{})
	)
	for _, m := range page {
		a, ok := c.Assign(m)
		if !ok || !a.Explicit {
			continue
		}
		if _, dup := seen[a.ThreadID]; dup {
			continue
		}
		seen[a.ThreadID] = struct{}{}
		topics = append(topics, model.Topic{ID: a.ThreadID, Title: c.title(a.ThreadID)})
	}
	return topics
}

func (c *Classifier) title(rootID int64) string {
	if root, ok := c.byID[rootID].Reply.(remote.ThreadRoot); ok && root.Title != "" {
		return root.Title
	}
	return placeholderTitle(rootID)
}

// HasMarkers reports whether any message in page carries forum-thread markers.
func HasMarkers(page []remote.Message) bool {
	for _, m := range page {
		switch m.Reply.(type) {
		case remote.ThreadRoot, remote.ThreadReply:
			return true
		}
	}
	return false
}
