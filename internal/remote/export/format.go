package export

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// archive is the top level of a full account export (result.json).
type archive struct {
	PersonalInformation *struct {
		UserID      int64  `json:"user_id"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		PhoneNumber string `json:"phone_number"`
	} `json:"personal_information"`
	Chats *struct {
		List []chat `json:"list"`
	} `json:"chats"`

	// Single-chat exports carry the chat at the top level.
	chat
}

type chat struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Messages []message `json:"messages"`
}

type message struct {
	ID               int64    `json:"id"`
	Type             string   `json:"type"`
	Date             string   `json:"date"`
	DateUnix         string   `json:"date_unixtime"`
	From             string   `json:"from"`
	FromID           string   `json:"from_id"`
	Actor            string   `json:"actor"`
	ActorID          string   `json:"actor_id"`
	Action           string   `json:"action"`
	Title            string   `json:"title"`
	Text             richText `json:"text"`
	Photo            string   `json:"photo"`
	MediaType        string   `json:"media_type"`
	MimeType         string   `json:"mime_type"`
	ReplyToMessageID int64    `json:"reply_to_message_id"`
}

// richText is either a plain string or an array of strings and entity objects.
type richText string

func (t *richText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = richText(s)
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var b strings.Builder
	for _, p := range parts {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			b.WriteString(s)
			continue
		}
		var ent struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(p, &ent); err != nil {
			return err
		}
		b.WriteString(ent.Text)
	}
	*t = richText(b.String())
	return nil
}

const (
	actionTopicCreated = "topic_created"
	typeService        = "service"
)

func (m *message) time() time.Time {
	if m.DateUnix != "" {
		if sec, err := strconv.ParseInt(m.DateUnix, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC()
		}
	}
	if t, err := time.Parse("2006-01-02T15:04:05", m.Date); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func (m *message) senderID() (int64, bool) {
	raw := m.FromID
	if raw == "" {
		raw = m.ActorID
	}
	return peerID(raw)
}

func (m *message) senderName() string {
	if m.From != "" {
		return m.From
	}
	return m.Actor
}

func (m *message) hasVideo() bool {
	return m.MediaType == "video_file" || m.MediaType == "video_message" ||
		m.MediaType == "animation" || strings.HasPrefix(m.MimeType, "video/")
}

// peerID parses export peer references such as "user123" or "channel456".
func peerID(raw string) (int64, bool) {
	digits := strings.TrimLeftFunc(raw, func(r rune) bool { return r < '0' || r > '9' })
	if digits == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
