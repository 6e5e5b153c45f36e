package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matheus3301/tgsift/internal/api"
)

// ParseQuery turns filter bar input into a message filter. Words of the form
// key:value set a field; everything else is joined into the search text.
//
//	deploy failed sender:alice media:photo date:2024-03 reply:replied sort:sender limit:20
func ParseQuery(input string) (api.Filter, error) {
	var (
		f     api.Filter
		words []string
	)
	for _, tok := range strings.Fields(input) {
		key, value, ok := strings.Cut(tok, ":")
		if !ok || value == "" {
			words = append(words, tok)
			continue
		}
		switch strings.ToLower(key) {
		case "sender", "from":
			f.Sender = value
		case "media":
			f.Media = value
		case "date":
			f.Date = value
		case "reply":
			f.Reply = value
		case "sort":
			f.Sort = value
		case "limit":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return api.Filter{}, fmt.Errorf("invalid limit %q", value)
			}
			f.Limit = n
		default:
			words = append(words, tok)
		}
	}
	f.Search = strings.Join(words, " ")
	if _, err := f.Spec(); err != nil {
		return api.Filter{}, err
	}
	return f, nil
}
