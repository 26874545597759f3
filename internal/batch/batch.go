// Package batch groups new feed entries into posts.
//
// Grouping is a single greedy pass over entries sorted oldest first. An entry
// joins the running batch when every member stays within the combine window,
// the joined text stays within the post length limit, and neither the entry
// nor the batch carries attachments. Otherwise the running batch is closed and
// the entry seeds the next one. The output depends only on the input order,
// so a retried run regroups the remaining entries the same way.
package batch

import (
	"math"

	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/nDmitry/feedsky/internal/text"
)

const (
	// MaxPostLength is the platform limit for post text, in characters.
	MaxPostLength = 300

	// DefaultCombineWindow is expressed in the feed's timestamp unit.
	DefaultCombineWindow = 1000
)

// Batch is rendered into a single post.
type Batch struct {
	Entries []entity.Entry
}

// MsgIDs returns the identifiers of the entries in post order.
func (b Batch) MsgIDs() []string {
	ids := make([]string, len(b.Entries))

	for i, e := range b.Entries {
		ids[i] = e.MsgID
	}

	return ids
}

// Text renders the post text: formatted entry contents joined by a blank line.
func (b Batch) Text() string {
	texts := make([]string, len(b.Entries))

	for i, e := range b.Entries {
		texts[i] = text.Format(e.Content)
	}

	return text.Join(texts)
}

// Images returns the image attachments of the batch in entry order.
func (b Batch) Images() []entity.Attachment {
	var images []entity.Attachment

	for _, e := range b.Entries {
		images = append(images, e.Images()...)
	}

	return images
}

// Builder holds the grouping constraints.
type Builder struct {
	Window    float64
	MaxLength int
}

// NewBuilder returns a Builder with the platform length limit and the given window.
func NewBuilder(window float64) *Builder {
	return &Builder{Window: window, MaxLength: MaxPostLength}
}

// running tracks the batch being assembled.
type running struct {
	entries        []entity.Entry
	length         int
	minTS, maxTS   float64
	hasAttachments bool
}

func (r *running) add(e entity.Entry, formatted int) {
	if len(r.entries) == 0 {
		r.minTS, r.maxTS = e.Timestamp, e.Timestamp
	} else {
		r.minTS = math.Min(r.minTS, e.Timestamp)
		r.maxTS = math.Max(r.maxTS, e.Timestamp)
	}

	r.length = joinedLength(r.length, formatted)
	r.hasAttachments = r.hasAttachments || e.HasAttachments()
	r.entries = append(r.entries, e)
}

// Build groups entries. The input is not modified; it is copied and sorted
// oldest first before grouping.
func (b *Builder) Build(entries []entity.Entry) []Batch {
	sorted := append([]entity.Entry(nil), entries...)
	entity.SortOldestFirst(sorted)

	var (
		batches []Batch
		cur     running
	)

	emit := func() {
		if len(cur.entries) > 0 {
			batches = append(batches, Batch{Entries: cur.entries})
		}
		cur = running{}
	}

	for _, e := range sorted {
		formatted := text.Length(text.Format(e.Content))

		if len(cur.entries) > 0 && !b.combinable(&cur, e, formatted) {
			emit()
		}

		cur.add(e, formatted)
	}

	emit()

	return batches
}

func (b *Builder) combinable(cur *running, e entity.Entry, formatted int) bool {
	if cur.hasAttachments || e.HasAttachments() {
		return false
	}

	if math.Abs(e.Timestamp-cur.minTS) > b.Window || math.Abs(e.Timestamp-cur.maxTS) > b.Window {
		return false
	}

	return joinedLength(cur.length, formatted) <= b.MaxLength
}

// joinedLength is the length of two texts joined the way text.Join does it.
func joinedLength(a, b int) int {
	if a == 0 || b == 0 {
		return a + b
	}

	return a + text.Length(text.Separator) + b
}
