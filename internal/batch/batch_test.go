package batch_test

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/nDmitry/feedsky/internal/batch"
	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/nDmitry/feedsky/internal/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, ts float64, content string) entity.Entry {
	return entity.Entry{MsgID: id, Timestamp: ts, Content: content}
}

func withImage(e entity.Entry) entity.Entry {
	e.Attachments = []entity.Attachment{{Kind: entity.AttachmentImage, Mime: "image/png", URL: "https://example.com/" + e.MsgID + ".png"}}
	return e
}

func ids(batches []batch.Batch) [][]string {
	out := make([][]string, len(batches))
	for i, b := range batches {
		out[i] = b.MsgIDs()
	}
	return out
}

func TestBuilder_Build(t *testing.T) {
	tests := []struct {
		name     string
		window   float64
		entries  []entity.Entry
		expected [][]string
	}{
		{
			name:     "No entries",
			window:   1000,
			entries:  nil,
			expected: [][]string{},
		},
		{
			name:   "Close short entries combine",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 100, "one"),
				entry("b", 150, "two"),
				entry("c", 700, "three"),
			},
			expected: [][]string{{"a", "b", "c"}},
		},
		{
			name:   "Narrow window splits",
			window: 500,
			entries: []entity.Entry{
				entry("a", 100, "one"),
				entry("b", 150, "two"),
				entry("c", 700, "three"),
			},
			expected: [][]string{{"a", "b"}, {"c"}},
		},
		{
			name:   "Window is measured against the oldest member",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 0, "one"),
				entry("b", 900, "two"),
				entry("c", 1800, "three"),
			},
			expected: [][]string{{"a", "b"}, {"c"}},
		},
		{
			name:   "Window boundary is inclusive",
			window: 3600,
			entries: []entity.Entry{
				entry("a", 0, "one"),
				entry("b", 3600, "two"),
			},
			expected: [][]string{{"a", "b"}},
		},
		{
			name:   "Length overflow splits",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 100, strings.Repeat("x", 290)),
				entry("b", 110, strings.Repeat("y", 20)),
			},
			expected: [][]string{{"a"}, {"b"}},
		},
		{
			name:   "Exactly at the limit combines",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 100, strings.Repeat("x", 149)),
				entry("b", 110, strings.Repeat("y", 149)),
			},
			expected: [][]string{{"a", "b"}},
		},
		{
			name:   "Attachment forces singleton",
			window: 1000,
			entries: []entity.Entry{
				withImage(entry("a", 100, "photo")),
				entry("b", 110, "text"),
			},
			expected: [][]string{{"a"}, {"b"}},
		},
		{
			name:   "Attachment after text forces singleton",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 100, "text"),
				withImage(entry("b", 110, "photo")),
				entry("c", 120, "more"),
			},
			expected: [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:   "Over-length entry is still its own batch",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 100, "short"),
				entry("b", 110, strings.Repeat("z", 400)),
				entry("c", 120, "short"),
			},
			expected: [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:   "Input is sorted oldest first",
			window: 10,
			entries: []entity.Entry{
				entry("c", 300, "three"),
				entry("a", 100, "one"),
				entry("b", 105, "two"),
			},
			expected: [][]string{{"a", "b"}, {"c"}},
		},
		{
			name:   "Empty content adds no separator",
			window: 1000,
			entries: []entity.Entry{
				entry("a", 100, strings.Repeat("x", 300)),
				entry("b", 110, ""),
			},
			expected: [][]string{{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := batch.NewBuilder(tt.window).Build(tt.entries)
			assert.Equal(t, tt.expected, ids(batches))
		})
	}
}

func TestBuilder_BuildDoesNotReorderInput(t *testing.T) {
	entries := []entity.Entry{entry("b", 2, "b"), entry("a", 1, "a")}
	batch.NewBuilder(1000).Build(entries)
	assert.Equal(t, "b", entries[0].MsgID)
}

func TestBatch_Text(t *testing.T) {
	b := batch.Batch{Entries: []entity.Entry{
		entry("a", 1, "first"),
		entry("b", 2, ""),
		entry("c", 3, "<p>third</p>"),
	}}

	assert.Equal(t, "first\n\nthird", b.Text())
}

func TestBuilder_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const window = 1000

	for round := range 200 {
		var entries []entity.Entry
		ts := 0.0

		for i := range rng.Intn(30) {
			ts += float64(rng.Intn(800))
			e := entry(fmt.Sprintf("%d-%d", round, i), ts, strings.Repeat("w", rng.Intn(200)))

			if rng.Intn(5) == 0 {
				e = withImage(e)
			}

			entries = append(entries, e)
		}

		batches := batch.NewBuilder(window).Build(entries)

		var seen []string
		lastTS := math.Inf(-1)

		for _, b := range batches {
			require.NotEmpty(t, b.Entries)
			length := text.Length(b.Text())

			if len(b.Entries) > 1 {
				assert.LessOrEqual(t, length, batch.MaxPostLength)
			}

			minTS, maxTS := math.Inf(1), math.Inf(-1)
			for _, e := range b.Entries {
				if e.HasAttachments() {
					assert.Len(t, b.Entries, 1)
				}
				minTS = math.Min(minTS, e.Timestamp)
				maxTS = math.Max(maxTS, e.Timestamp)
				assert.GreaterOrEqual(t, e.Timestamp, lastTS)
				lastTS = e.Timestamp
				seen = append(seen, e.MsgID)
			}
			assert.LessOrEqual(t, maxTS-minTS, float64(window))
		}

		assert.Len(t, seen, len(entries))
	}
}
