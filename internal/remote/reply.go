package remote

// ReplyMeta describes how a message links into reply chains and forum threads.
// Adapters produce exactly one variant per message; consumers switch on the type
// instead of probing optional fields.
type ReplyMeta interface {
	replyMeta()
}

// NoReply marks a message that is neither a reply nor a thread root.
type NoReply struct{}

// ThreadRoot marks the service message that opened a forum thread.
type ThreadRoot struct {
	Title string
}

// ThreadReply marks a message the service explicitly placed in the thread rooted at RootID.
// ToID is the message it replies to, zero when it only belongs to the thread.
type ThreadReply struct {
	RootID int64
	ToID   int64
}

// PlainReply marks a reply carrying no thread markers.
type PlainReply struct {
	ToID int64
}

func (NoReply) replyMeta()     {}
func (ThreadRoot) replyMeta()  {}
func (ThreadReply) replyMeta() {}
func (PlainReply) replyMeta()  {}

// RepliedTo returns the id of the message m replies to, if any.
func RepliedTo(m Message) (int64, bool) {
	switch r := m.Reply.(type) {
	case PlainReply:
		return r.ToID, r.ToID != 0
	case ThreadReply:
		return r.ToID, r.ToID != 0
	}
	return 0, false
}
