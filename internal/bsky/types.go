package bsky

import (
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
)

const (
	PostCollection = "app.bsky.feed.post"
	ImagesEmbed    = "app.bsky.embed.images"
	// MaxImages is the number of images one post can embed.
	MaxImages = 4
)

// Session is the credential obtained once per run. It is passed explicitly
// to every call that needs it and is never persisted.
type Session struct {
	AccessJwt string
	DID       string
	Handle    string
}

// PostRequest is a post bound to the repository it will be created in.
type PostRequest struct {
	Repo string
	Post *appbsky.FeedPost
}

// NewPostRequest builds a post for the session's account.
func NewPostRequest(session Session, text string, createdAt time.Time, images []*appbsky.EmbedImages_Image) PostRequest {
	post := &appbsky.FeedPost{
		LexiconTypeID: PostCollection,
		Text:          text,
		CreatedAt:     createdAt.UTC().Format(time.RFC3339Nano),
	}

	if len(images) > 0 {
		post.Embed = &appbsky.FeedPost_Embed{
			EmbedImages: &appbsky.EmbedImages{
				LexiconTypeID: ImagesEmbed,
				Images:        images,
			},
		}
	}

	return PostRequest{Repo: session.DID, Post: post}
}

func (r PostRequest) Text() string {
	if r.Post == nil {
		return ""
	}

	return r.Post.Text
}

// Images returns the embedded images, nil when the post has none.
func (r PostRequest) Images() []*appbsky.EmbedImages_Image {
	if r.Post == nil || r.Post.Embed == nil || r.Post.Embed.EmbedImages == nil {
		return nil
	}

	return r.Post.Embed.EmbedImages.Images
}

func (r PostRequest) input() *comatproto.RepoCreateRecord_Input {
	return &comatproto.RepoCreateRecord_Input{
		Repo:       r.Repo,
		Collection: PostCollection,
		Record:     &lexutil.LexiconTypeDecoder{Val: r.Post},
	}
}

// RecordRef identifies a created record.
type RecordRef struct {
	URI string
	CID string
}
