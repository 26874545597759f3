// Package feed retrieves the JSON feed and attachment bytes over HTTP.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gocolly/colly/v2"
	"github.com/nDmitry/feedsky/internal/entity"
)

// Image is a downloaded attachment ready for upload.
type Image struct {
	Data []byte
	Mime string
}

// Fetcher downloads the feed and its images.
type Fetcher struct {
	client       *http.Client
	timeout      time.Duration
	maxFeedBytes int
}

// NewDefaultFetcher returns a Fetcher using the shared tuned HTTP client.
func NewDefaultFetcher() *Fetcher {
	return NewFetcher(HTTPClient)
}

func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{client: client, timeout: client.Timeout, maxFeedBytes: DefaultMaxFeedBytes}
}

// WithMaxFeedBytes changes the feed size limit.
func (f *Fetcher) WithMaxFeedBytes(n int) *Fetcher {
	f.maxFeedBytes = n
	return f
}

// FetchFeed returns the raw feed payload.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]byte, error) {
	var (
		body   []byte
		status int
	)

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)

	if f.client.Transport != nil {
		c.WithTransport(f.client.Transport)
	}

	if f.timeout > 0 {
		c.SetRequestTimeout(f.timeout)
	}

	// One byte over the limit tells an oversized feed from one that fits exactly.
	c.MaxBodySize = f.maxFeedBytes + 1

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(feedURL); err != nil {
		return nil, &entity.TransportError{Op: "fetch feed", URL: feedURL, StatusCode: status, Err: err}
	}

	if body == nil {
		return nil, &entity.TransportError{Op: "fetch feed", URL: feedURL, StatusCode: status, Err: errors.New("empty response")}
	}

	if len(body) > f.maxFeedBytes {
		return nil, &entity.TransportError{Op: "fetch feed", URL: feedURL, StatusCode: status, Err: fmt.Errorf("feed exceeds %d bytes", f.maxFeedBytes)}
	}

	return body, nil
}

// FetchImage downloads an attachment. The declared mime type is replaced by
// the sniffed one when they disagree; non-image payloads are rejected.
func (f *Fetcher) FetchImage(ctx context.Context, attachment entity.Attachment) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)

	if err != nil {
		return Image{}, &entity.TransportError{Op: "fetch image", URL: attachment.URL, Err: err}
	}

	req.Header.Set("User-Agent", userAgent)

	res, err := f.client.Do(req)

	if err != nil {
		return Image{}, &entity.TransportError{Op: "fetch image", URL: attachment.URL, Err: err}
	}

	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Image{}, &entity.TransportError{
			Op:         "fetch image",
			URL:        attachment.URL,
			StatusCode: res.StatusCode,
			Err:        errors.New(http.StatusText(res.StatusCode)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxImageBytes+1))

	if err != nil {
		return Image{}, &entity.TransportError{Op: "fetch image", URL: attachment.URL, Err: err}
	}

	if len(data) > maxImageBytes {
		return Image{}, &entity.TransportError{Op: "fetch image", URL: attachment.URL, Err: fmt.Errorf("image exceeds %d bytes", maxImageBytes)}
	}

	detected := mimetype.Detect(data)

	if !strings.HasPrefix(detected.String(), "image/") {
		return Image{}, &entity.TransportError{Op: "fetch image", URL: attachment.URL, Err: fmt.Errorf("payload is %s, not an image", detected.String())}
	}

	mime := attachment.Mime

	if !detected.Is(mime) {
		mime = detected.String()
	}

	return Image{Data: data, Mime: mime}, nil
}
