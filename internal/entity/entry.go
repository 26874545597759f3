package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// AttachmentKind is decided once at validation time from the declared mime type.
type AttachmentKind int

const (
	AttachmentOther AttachmentKind = iota
	AttachmentImage
)

type Attachment struct {
	Kind AttachmentKind
	Mime string
	URL  string
	// Alt text, may be empty.
	Desc string
}

// Entry is a validated feed record. Timestamp keeps the feed's own unit for
// numeric values; ISO-8601 strings are converted to epoch seconds.
type Entry struct {
	MsgID       string
	Timestamp   float64
	Content     string
	Attachments []Attachment
}

// HasAttachments reports whether the entry carries any attachment, image or not.
func (e Entry) HasAttachments() bool {
	return len(e.Attachments) > 0
}

// Images returns the image attachments in feed order.
func (e Entry) Images() []Attachment {
	var images []Attachment

	for _, a := range e.Attachments {
		if a.Kind == AttachmentImage {
			images = append(images, a)
		}
	}

	return images
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type rawAttachment struct {
	Mime *string `json:"mime"`
	URL  *string `json:"url"`
	Desc *string `json:"desc"`
}

type rawEntry struct {
	MsgID       json.RawMessage `json:"msgid"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Content     *string         `json:"content"`
	Attachments []rawAttachment `json:"attachments"`
}

// ParseFeed validates a feed payload, which must be a JSON array of records.
// Any invalid record fails the whole feed.
func ParseFeed(data []byte) ([]Entry, error) {
	var records []json.RawMessage

	trimmed := bytes.TrimSpace(data)

	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &ValidationError{Kind: MalformedFeed, Index: -1, Err: errors.New("payload is not an array")}
	}

	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &ValidationError{Kind: MalformedFeed, Index: -1, Err: err}
	}

	entries := make([]Entry, 0, len(records))

	for i, record := range records {
		entry, err := ValidateEntry(record, i)

		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// ValidateEntry turns one raw record into an Entry.
func ValidateEntry(record json.RawMessage, index int) (Entry, error) {
	var raw rawEntry

	if err := json.Unmarshal(record, &raw); err != nil {
		return Entry{}, &ValidationError{Kind: MalformedFeed, Index: index, Err: err}
	}

	msgID, err := parseMsgID(raw.MsgID)

	if err != nil {
		return Entry{}, &ValidationError{Kind: MissingField, Index: index, Field: "msgid", Err: err}
	}

	if isAbsent(raw.Timestamp) {
		return Entry{}, &ValidationError{Kind: MissingField, Index: index, Field: "timestamp"}
	}

	ts, err := parseTimestamp(raw.Timestamp)

	if err != nil {
		return Entry{}, &ValidationError{Kind: MalformedTimestamp, Index: index, Field: "timestamp", Err: err}
	}

	entry := Entry{MsgID: msgID, Timestamp: ts}

	if raw.Content != nil {
		entry.Content = *raw.Content
	}

	for j, a := range raw.Attachments {
		if a.URL == nil || strings.TrimSpace(*a.URL) == "" {
			return Entry{}, &ValidationError{Kind: MissingField, Index: index, Field: fmt.Sprintf("attachments[%d].url", j)}
		}

		attachment := Attachment{URL: strings.TrimSpace(*a.URL), Kind: AttachmentOther}

		if a.Mime != nil {
			attachment.Mime = strings.ToLower(strings.TrimSpace(*a.Mime))
		}

		if strings.HasPrefix(attachment.Mime, "image/") {
			attachment.Kind = AttachmentImage
		}

		if a.Desc != nil {
			attachment.Desc = *a.Desc
		}

		entry.Attachments = append(entry.Attachments, attachment)
	}

	return entry, nil
}

// SortOldestFirst orders entries by ascending timestamp, keeping feed order for ties.
func SortOldestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
}

func isAbsent(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}

func parseMsgID(v json.RawMessage) (string, error) {
	if isAbsent(v) {
		return "", errors.New("not present")
	}

	var s string

	if err := json.Unmarshal(v, &s); err != nil {
		// Some feeds use numeric identifiers.
		var n json.Number

		if err := json.Unmarshal(v, &n); err != nil {
			return "", fmt.Errorf("not a string: %s", v)
		}

		s = n.String()
	}

	s = strings.TrimSpace(s)

	if s == "" {
		return "", errors.New("empty")
	}

	return s, nil
}

func parseTimestamp(v json.RawMessage) (float64, error) {
	var n float64

	if err := json.Unmarshal(v, &n); err == nil {
		return n, nil
	}

	var s string

	if err := json.Unmarshal(v, &s); err != nil {
		return 0, fmt.Errorf("neither a number nor a string: %s", v)
	}

	s = strings.TrimSpace(s)

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second), nil
		}
	}

	return 0, fmt.Errorf("could not parse %q as ISO-8601", s)
}
