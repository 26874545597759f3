// Package activity keeps a short history of mirrored posts and renders it as a feed.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/nDmitry/feedsky/internal/store"
)

// DefaultLimit is the number of posts kept in the history.
const DefaultLimit = 50

// Item is one published post.
type Item struct {
	URI      string    `json:"uri"`
	Text     string    `json:"text"`
	MsgIDs   []string  `json:"msgids"`
	Images   int       `json:"images"`
	PostedAt time.Time `json:"posted_at"`
}

// Log stores the history as a JSON array, newest first, under a single key.
type Log struct {
	store store.Store
	key   string
	limit int
}

func NewLog(st store.Store, key string) *Log {
	return &Log{store: st, key: key, limit: DefaultLimit}
}

// Append records a post, dropping the oldest items over the limit.
func (l *Log) Append(ctx context.Context, item Item) error {
	items, err := l.Recent(ctx)

	if err != nil {
		return err
	}

	items = append([]Item{item}, items...)

	if len(items) > l.limit {
		items = items[:l.limit]
	}

	blob, err := json.Marshal(items)

	if err != nil {
		return fmt.Errorf("could not encode activity: %w", err)
	}

	if err := l.store.Put(ctx, l.key, string(blob)); err != nil {
		return fmt.Errorf("could not save activity: %w", err)
	}

	return nil
}

// Recent returns the history, newest first. A missing or corrupt history is empty.
func (l *Log) Recent(ctx context.Context) ([]Item, error) {
	blob, err := l.store.Get(ctx, l.key)

	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not load activity: %w", err)
	}

	var items []Item

	if err := json.Unmarshal([]byte(blob), &items); err != nil {
		return nil, nil
	}

	return items, nil
}

// Atom renders items as an Atom feed.
func Atom(items []Item, title, link string) ([]byte, error) {
	feed := &feeds.Feed{
		Title: title,
		Link:  &feeds.Link{Href: link},
	}

	for _, item := range items {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          item.URI,
			Title:       firstLine(item.Text),
			Description: item.Text,
			Link:        &feeds.Link{Href: WebURL(item.URI)},
			Created:     item.PostedAt,
		})

		if feed.Created.IsZero() || item.PostedAt.After(feed.Created) {
			feed.Created = item.PostedAt
		}
	}

	atom, err := feed.ToAtom()

	if err != nil {
		return nil, fmt.Errorf("could not marshal activity to Atom: %w", err)
	}

	return []byte(atom), nil
}

// WebURL maps at://<did>/app.bsky.feed.post/<rkey> to its bsky.app page.
// Other URIs are returned unchanged.
func WebURL(uri string) string {
	rest, ok := strings.CutPrefix(uri, "at://")

	if !ok {
		return uri
	}

	parts := strings.Split(rest, "/")

	if len(parts) != 3 || parts[1] != "app.bsky.feed.post" {
		return uri
	}

	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", parts[0], parts[2])
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	if line == "" {
		return "(image)"
	}

	return line
}
