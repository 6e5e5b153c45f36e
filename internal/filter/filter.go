// Package filter evaluates FilterSpec predicates and sort orders over dialogs and
// messages. Everything here is pure and safe for concurrent use.
package filter

import (
	"sort"
	"strconv"
	"strings"

	"github.com/matheus3301/tgsift/internal/model"
)

// DateLayout is the layout DateEquals is matched against.
const DateLayout = "2006-01-02"

// MatchesDialog reports whether d's name contains the search text of f, ignoring case.
func MatchesDialog(d model.Dialog, f model.FilterSpec) bool {
	return containsFold(d.Name, f.SearchText)
}

// MatchesMessage reports whether m satisfies every predicate in f.
func MatchesMessage(m model.Message, f model.FilterSpec) bool {
	return MatchesIgnoringTopic(m, f) && matchesTopic(m, f)
}

// MatchesIgnoringTopic applies every predicate except the topic one. Used when the
// topic assignment is decided by a classifier rather than read from the message.
func MatchesIgnoringTopic(m model.Message, f model.FilterSpec) bool {
	return containsFold(m.Text, f.SearchText) &&
		matchesMedia(m, f.MediaKind) &&
		matchesSender(m, f.Sender) &&
		matchesDate(m, f.DateEquals) &&
		matchesReply(m, f.ReplyStatus)
}

// Messages returns the messages of in that satisfy f, preserving order.
func Messages(in []model.Message, f model.FilterSpec) []model.Message {
	out := make([]model.Message, 0, len(in))
	for _, m := range in {
		if MatchesMessage(m, f) {
			out = append(out, m)
		}
	}
	return out
}

// Dialogs returns the dialogs of in that satisfy f, preserving order.
func Dialogs(in []model.Dialog, f model.FilterSpec) []model.Dialog {
	out := make([]model.Dialog, 0, len(in))
	for _, d := range in {
		if MatchesDialog(d, f) {
			out = append(out, d)
		}
	}
	return out
}

func matchesMedia(m model.Message, kind model.MediaKind) bool {
	switch kind {
	case model.MediaPhoto:
		return m.HasPhoto
	case model.MediaVideo:
		return m.HasVideo
	default:
		return true
	}
}

func matchesTopic(m model.Message, f model.FilterSpec) bool {
	if f.TopicID == nil {
		return true
	}
	return m.TopicID != nil && *m.TopicID == *f.TopicID
}

func matchesSender(m model.Message, sender string) bool {
	if sender == "" {
		return true
	}
	if containsFold(m.SenderName, sender) {
		return true
	}
	return m.SenderID != nil && containsFold(strconv.FormatInt(*m.SenderID, 10), sender)
}

func matchesDate(m model.Message, date string) bool {
	if date == "" {
		return true
	}
	return strings.Contains(m.Date.UTC().Format(DateLayout), date)
}

func matchesReply(m model.Message, status model.ReplyStatus) bool {
	switch status {
	case model.ReplyReplied:
		return m.Replied
	case model.ReplyNotReplied:
		return !m.Replied
	default:
		return true
	}
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// SortMessages sorts msgs in place by key. "sender" sorts by sender name ascending;
// anything else sorts by date, newest first. Ties are broken by id ascending.
func SortMessages(msgs []model.Message, key string) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if key == model.SortSender {
			an, bn := strings.ToLower(a.SenderName), strings.ToLower(b.SenderName)
			if an != bn {
				return an < bn
			}
		} else if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.ID < b.ID
	})
}

// SortDialogs sorts dialogs in place. "name" and "unread" reorder; "recent" and
// unknown keys keep the incoming recency order.
func SortDialogs(dialogs []model.Dialog, key string) {
	switch key {
	case model.SortName:
		sort.SliceStable(dialogs, func(i, j int) bool {
			an, bn := strings.ToLower(dialogs[i].Name), strings.ToLower(dialogs[j].Name)
			if an != bn {
				return an < bn
			}
			return dialogs[i].ID < dialogs[j].ID
		})
	case model.SortUnread:
		sort.SliceStable(dialogs, func(i, j int) bool {
			return dialogs[i].UnreadCount > dialogs[j].UnreadCount
		})
	}
}

// Truncate returns at most limit messages from the front of msgs.
func Truncate(msgs []model.Message, limit int) []model.Message {
	if limit > 0 && len(msgs) > limit {
		return msgs[:limit]
	}
	return msgs
}
