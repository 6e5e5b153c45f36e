package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/tgsift/internal/api"
)

const timeLayout = "2006-01-02 15:04"

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

func printStatus(w io.Writer, s *api.StatusResponse) {
	_, _ = fmt.Fprintf(w, "Profile:  %s\n", s.Profile)
	state := s.State
	if s.Reason != "" {
		state += " (" + s.Reason + ")"
	}
	_, _ = fmt.Fprintf(w, "Status:   %s\n", state)
	if s.Account != "" {
		_, _ = fmt.Fprintf(w, "Account:  %s\n", s.Account)
	}
	_, _ = fmt.Fprintf(w, "Uptime:   %s\n", (time.Duration(s.UptimeMs) * time.Millisecond).Round(time.Second))
	_, _ = fmt.Fprintf(w, "Cache:    %s (%d dialogs, %d messages, %d topics)\n", s.CacheDriver, s.Dialogs, s.Messages, s.Topics)
	if s.BlockedUntilMs > 0 {
		_, _ = fmt.Fprintf(w, "Blocked:  until %s\n", time.UnixMilli(s.BlockedUntilMs).Format(time.TimeOnly))
	}
}

func printDialogs(w io.Writer, dialogs []api.Dialog) {
	if len(dialogs) == 0 {
		_, _ = fmt.Fprintln(w, "No dialogs found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tKIND\tUNREAD\tNAME")
	for _, d := range dialogs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID, d.Kind, d.UnreadCount, d.Name)
	}
	_ = tw.Flush()
}

func printMessages(w io.Writer, msgs []api.Message) {
	if len(msgs) == 0 {
		_, _ = fmt.Fprintln(w, "No messages found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tDATE\tSENDER\tTOPIC\tTEXT")
	for _, m := range msgs {
		topic := ""
		if m.TopicID != nil {
			topic = fmt.Sprintf("%d", *m.TopicID)
		}
		text := strings.ReplaceAll(m.Text, "\n", " ")
		if m.HasPhoto {
			text = "[photo] " + text
		}
		if m.HasVideo {
			text = "[video] " + text
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.Date().Format(timeLayout), m.SenderName, topic, text)
	}
	_ = tw.Flush()
}

func printTopics(w io.Writer, topics []api.Topic) {
	if len(topics) == 0 {
		_, _ = fmt.Fprintln(w, "No topics.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUNREAD\tTITLE")
	for _, t := range topics {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\n", t.ID, t.UnreadCount, t.Title)
	}
	_ = tw.Flush()
}

func printNotes(w io.Writer, notes []string) {
	for _, n := range notes {
		_, _ = fmt.Fprintf(w, "note: %s\n", n)
	}
}

func printEvent(w io.Writer, e *api.EventEnvelope) {
	_, _ = fmt.Fprintf(w, "%s  %-24s %s\n", time.UnixMilli(e.OccurredAtMs).Format(time.TimeOnly), e.Kind, e.Payload)
}
