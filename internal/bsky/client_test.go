package bsky_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/nDmitry/feedsky/internal/bsky"
	"github.com/nDmitry/feedsky/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blobCID = "bafkreibabalobzn6cd366ukcsjycp4yymjymgfxcv6xczmlgpemzkz3cfa"

const blobJSON = `{"$type":"blob","ref":{"$link":"` + blobCID + `"},"mimeType":"image/png","size":3}`

func newPDS(t *testing.T, handler http.HandlerFunc) *bsky.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return bsky.NewClient(server.URL+"/", server.Client())
}

func TestClient_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		client := newPDS(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/xrpc/com.atproto.server.createSession", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Empty(t, r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "me.bsky.social", body["identifier"])
			assert.Equal(t, "app-password", body["password"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accessJwt":"jwt","refreshJwt":"refresh","did":"did:plc:me","handle":"me.bsky.social"}`))
		})

		session, err := client.Authenticate(ctx, "me.bsky.social", "app-password")
		require.NoError(t, err)
		assert.Equal(t, bsky.Session{AccessJwt: "jwt", DID: "did:plc:me", Handle: "me.bsky.social"}, session)
	})

	t.Run("Bad credentials", func(t *testing.T) {
		client := newPDS(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
		})

		_, err := client.Authenticate(ctx, "me", "wrong")

		var aerr *entity.AuthError
		require.ErrorAs(t, err, &aerr)
		var terr *entity.TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusUnauthorized, terr.StatusCode)
		assert.Equal(t, "com.atproto.server.createSession", terr.Op)
	})

	t.Run("Incomplete session", func(t *testing.T) {
		client := newPDS(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"handle":"me"}`))
		})

		_, err := client.Authenticate(ctx, "me", "pw")

		var aerr *entity.AuthError
		require.ErrorAs(t, err, &aerr)
	})
}

func TestClient_UploadBlob(t *testing.T) {
	client := newPDS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/com.atproto.repo.uploadBlob", r.URL.Path)
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blob":` + blobJSON + `}`))
	})

	blob, err := client.UploadBlob(context.Background(), bsky.Session{AccessJwt: "jwt"}, []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, blobCID, blob.Ref.String())
	assert.Equal(t, "image/png", blob.MimeType)
	assert.Equal(t, int64(3), blob.Size)
}

func TestClient_CreateRecord(t *testing.T) {
	session := bsky.Session{AccessJwt: "jwt", DID: "did:plc:me"}
	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		client := newPDS(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/xrpc/com.atproto.repo.createRecord", r.URL.Path)
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))

			var body struct {
				Repo       string `json:"repo"`
				Collection string `json:"collection"`
				Record     struct {
					Type      string `json:"$type"`
					Text      string `json:"text"`
					CreatedAt string `json:"createdAt"`
					Embed     struct {
						Type   string `json:"$type"`
						Images []struct {
							Alt   string `json:"alt"`
							Image struct {
								Type string `json:"$type"`
								Ref  struct {
									Link string `json:"$link"`
								} `json:"ref"`
								MimeType string `json:"mimeType"`
							} `json:"image"`
						} `json:"images"`
					} `json:"embed"`
				} `json:"record"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

			assert.Equal(t, "did:plc:me", body.Repo)
			assert.Equal(t, "app.bsky.feed.post", body.Collection)
			assert.Equal(t, "app.bsky.feed.post", body.Record.Type)
			assert.Equal(t, "hello", body.Record.Text)
			assert.Equal(t, "2026-01-02T03:04:05Z", body.Record.CreatedAt)
			assert.Equal(t, "app.bsky.embed.images", body.Record.Embed.Type)
			require.Len(t, body.Record.Embed.Images, 1)
			assert.Equal(t, "a cat", body.Record.Embed.Images[0].Alt)
			assert.Equal(t, "blob", body.Record.Embed.Images[0].Image.Type)
			assert.Equal(t, blobCID, body.Record.Embed.Images[0].Image.Ref.Link)
			assert.Equal(t, "image/png", body.Record.Embed.Images[0].Image.MimeType)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uri":"at://did:plc:me/app.bsky.feed.post/1","cid":"` + blobCID + `"}`))
		})

		var blob lexutil.LexBlob
		require.NoError(t, json.Unmarshal([]byte(blobJSON), &blob))

		images := []*appbsky.EmbedImages_Image{{Alt: "a cat", Image: &blob}}

		ref, err := client.CreateRecord(context.Background(), session, bsky.NewPostRequest(session, "hello", createdAt, images))
		require.NoError(t, err)
		assert.Equal(t, "at://did:plc:me/app.bsky.feed.post/1", ref.URI)
		assert.Equal(t, blobCID, ref.CID)
	})

	t.Run("Server error", func(t *testing.T) {
		client := newPDS(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"UpstreamFailure","message":"upstream unavailable"}`))
		})

		_, err := client.CreateRecord(context.Background(), session, bsky.NewPostRequest(session, "hello", createdAt, nil))

		var terr *entity.TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
		assert.Equal(t, "com.atproto.repo.createRecord", terr.Op)
	})
}

func TestNewPostRequest(t *testing.T) {
	session := bsky.Session{DID: "did:plc:me"}

	t.Run("Without images", func(t *testing.T) {
		req := bsky.NewPostRequest(session, "text", time.Unix(0, 0), nil)
		assert.Equal(t, "did:plc:me", req.Repo)
		assert.Equal(t, "text", req.Text())
		assert.Equal(t, "1970-01-01T00:00:00Z", req.Post.CreatedAt)
		assert.Nil(t, req.Post.Embed)
		assert.Nil(t, req.Images())
	})

	t.Run("With images", func(t *testing.T) {
		images := []*appbsky.EmbedImages_Image{{Alt: "one"}, {Alt: "two"}}

		req := bsky.NewPostRequest(session, "", time.Unix(0, 0), images)
		require.NotNil(t, req.Post.Embed)
		require.NotNil(t, req.Post.Embed.EmbedImages)
		assert.Equal(t, bsky.ImagesEmbed, req.Post.Embed.EmbedImages.LexiconTypeID)
		assert.Len(t, req.Images(), 2)
	})
}
