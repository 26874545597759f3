// Package compose renders a batch into a post request, uploading its images.
package compose

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/nDmitry/feedsky/internal/app"
	"github.com/nDmitry/feedsky/internal/batch"
	"github.com/nDmitry/feedsky/internal/bsky"
	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/nDmitry/feedsky/internal/feed"
)

// ErrNothingToPost is returned for a batch that has neither text nor images
// to attach. Such a batch can be recorded without posting.
var ErrNothingToPost = errors.New("nothing to post")

type ImageFetcher interface {
	FetchImage(ctx context.Context, attachment entity.Attachment) (feed.Image, error)
}

type BlobUploader interface {
	UploadBlob(ctx context.Context, session bsky.Session, data []byte, mime string) (*lexutil.LexBlob, error)
}

type Composer struct {
	fetcher  ImageFetcher
	uploader BlobUploader
	now      func() time.Time
}

func NewComposer(fetcher ImageFetcher, uploader BlobUploader) *Composer {
	return &Composer{fetcher: fetcher, uploader: uploader, now: time.Now}
}

// WithClock replaces the source of the createdAt timestamp.
func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}

// Compose builds the post for a batch. Images beyond bsky.MaxImages are
// dropped, and an image that fails to download or upload is left out as long
// as the post still carries text or another image. When every image of a
// text-less batch fails, the failures are returned so the batch is retried.
func (c *Composer) Compose(ctx context.Context, session bsky.Session, b batch.Batch) (bsky.PostRequest, error) {
	postText := b.Text()
	attachments := b.Images()

	if len(attachments) > bsky.MaxImages {
		app.LoggerFromContext(ctx).Info("Dropping images over the post limit",
			"msgids", b.MsgIDs(),
			"images", len(attachments),
			"limit", bsky.MaxImages)

		attachments = attachments[:bsky.MaxImages]
	}

	if postText == "" && len(attachments) == 0 {
		return bsky.PostRequest{}, ErrNothingToPost
	}

	images, errs := c.uploadImages(ctx, session, attachments)

	if postText == "" && len(images) == 0 {
		return bsky.PostRequest{}, &entity.TransportError{
			Op:  "attach images",
			URL: attachments[0].URL,
			Err: fmt.Errorf("no image of %v could be attached: %w", b.MsgIDs(), errors.Join(errs...)),
		}
	}

	return bsky.NewPostRequest(session, postText, c.now(), images), nil
}

// uploadImages fetches and uploads images concurrently and returns the
// successful ones in attachment order, along with the failures.
func (c *Composer) uploadImages(
	ctx context.Context,
	session bsky.Session,
	attachments []entity.Attachment,
) ([]*appbsky.EmbedImages_Image, []error) {
	logger := app.LoggerFromContext(ctx)
	results := make([]*appbsky.EmbedImages_Image, len(attachments))
	failures := make([]error, len(attachments))

	var wg sync.WaitGroup

	for i, attachment := range attachments {
		wg.Add(1)

		go func() {
			defer wg.Done()

			image, err := c.fetcher.FetchImage(ctx, attachment)

			if err != nil {
				logger.Warn("Could not fetch an image", "url", attachment.URL, "error", err)
				failures[i] = err
				return
			}

			blob, err := c.uploader.UploadBlob(ctx, session, image.Data, image.Mime)

			if err != nil {
				logger.Warn("Could not upload an image", "url", attachment.URL, "error", err)
				failures[i] = err
				return
			}

			results[i] = &appbsky.EmbedImages_Image{Alt: attachment.Desc, Image: blob}
		}()
	}

	wg.Wait()

	var (
		images []*appbsky.EmbedImages_Image
		errs   []error
	)

	for i, r := range results {
		if r != nil {
			images = append(images, r)
		} else if failures[i] != nil {
			errs = append(errs, failures[i])
		}
	}

	return images, errs
}
