// Package export implements remote.Source over a Telegram Desktop JSON export
// (result.json). It serves offline browsing and reproducible fixtures; the
// export carries no forum-topics listing, so topic structure is recovered by
// the heuristic resolver.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/matheus3301/tgsift/internal/model"
	"github.com/matheus3301/tgsift/internal/remote"
)

// Source serves one loaded export. It is read-only and safe for concurrent use.
type Source struct {
	account string
	dialogs []remote.Dialog
	// messages per dialog, newest first
	messages map[int64][]remote.Message
	entities map[int64]remote.Entity
}

var _ remote.Source = (*Source)(nil)

// Open reads and indexes the export at path.
func Open(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, remote.Unavailable(fmt.Errorf("read export: %w", err))
	}
	return Parse(data)
}

// Parse indexes an export held in memory.
func Parse(data []byte) (*Source, error) {
	var a archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	var chats []chat
	if a.Chats != nil {
		chats = a.Chats.List
	} else if a.chat.ID != 0 {
		chats = []chat{a.chat}
	}

	s := &Source{
		account:  "export",
		messages: make(map[int64][]remote.Message, len(chats)),
		entities: make(map[int64]remote.Entity),
	}
	if pi := a.PersonalInformation; pi != nil {
		switch {
		case pi.UserID != 0:
			s.account = strconv.FormatInt(pi.UserID, 10)
		case pi.PhoneNumber != "":
			s.account = strings.ReplaceAll(pi.PhoneNumber, " ", "")
		}
		if pi.UserID != 0 {
			s.entities[pi.UserID] = remote.Entity{
				ID:          pi.UserID,
				DisplayName: strings.TrimSpace(pi.FirstName + " " + pi.LastName),
			}
		}
	}

	type activity struct {
		dialog remote.Dialog
		last   int64
	}
	var order []activity
	for _, c := range chats {
		if c.ID == 0 {
			continue
		}
		msgs, forum := s.indexChat(c)
		s.messages[c.ID] = msgs
		kind := kindOf(c.Type)
		s.entities[c.ID] = remote.Entity{
			ID:          c.ID,
			DisplayName: c.Name,
			Megagroup:   strings.HasSuffix(c.Type, "supergroup"),
			Forum:       forum,
		}
		var last int64
		if len(msgs) > 0 {
			last = msgs[0].Date.Unix()
		}
		order = append(order, activity{
			dialog: remote.Dialog{ID: c.ID, Name: c.Name, Kind: kind},
			last:   last,
		})
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].last > order[j].last })
	for _, o := range order {
		s.dialogs = append(s.dialogs, o.dialog)
	}
	return s, nil
}

// indexChat converts a chat's messages to newest-first remote messages and
// records every sender it sees. forum reports whether any thread was opened.
func (s *Source) indexChat(c chat) (msgs []remote.Message, forum bool) {
	msgs = make([]remote.Message, 0, len(c.Messages))
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		rm := remote.Message{
			ID:       m.ID,
			Text:     string(m.Text),
			Date:     m.time(),
			HasPhoto: m.Photo != "",
			HasVideo: m.hasVideo(),
			Reply:    remote.NoReply{},
		}
		if id, ok := m.senderID(); ok {
			rm.SenderID = &id
			if _, known := s.entities[id]; !known && m.senderName() != "" {
				s.entities[id] = remote.Entity{ID: id, DisplayName: m.senderName()}
			}
		}
		switch {
		case m.Type == typeService && m.Action == actionTopicCreated:
			rm.Reply = remote.ThreadRoot{Title: m.Title}
			forum = true
		case m.ReplyToMessageID != 0:
			rm.Reply = remote.PlainReply{ToID: m.ReplyToMessageID}
		}
		msgs = append(msgs, rm)
	}
	return msgs, forum
}

func kindOf(exportType string) model.DialogKind {
	switch {
	case strings.HasSuffix(exportType, "channel"):
		return model.KindChannel
	case strings.HasSuffix(exportType, "group"):
		return model.KindGroup
	default:
		return model.KindPrivate
	}
}

func (s *Source) CurrentAccount(_ context.Context) (string, error) {
	return s.account, nil
}

func (s *Source) ListDialogs(ctx context.Context, limit int) ([]remote.Dialog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := s.dialogs
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]remote.Dialog(nil), out...), nil
}

func (s *Source) Messages(ctx context.Context, dialogID int64, search string, limit int) iter.Seq2[remote.Message, error] {
	return func(yield func(remote.Message, error) bool) {
		msgs, ok := s.messages[dialogID]
		if !ok {
			yield(remote.Message{}, fmt.Errorf("dialog %d: %w", dialogID, remote.ErrNotFound))
			return
		}
		needle := strings.ToLower(search)
		n := 0
		for _, m := range msgs {
			if limit > 0 && n >= limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(remote.Message{}, err)
				return
			}
			if needle != "" && !strings.Contains(strings.ToLower(m.Text), needle) {
				continue
			}
			n++
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (s *Source) ResolveEntity(_ context.Context, id int64) (remote.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return remote.Entity{}, fmt.Errorf("entity %d: %w", id, remote.ErrNotFound)
	}
	return e, nil
}

func (s *Source) ListForumTopics(_ context.Context, _ int64) ([]remote.ForumTopic, error) {
	return nil, remote.ErrUnsupported
}
