// Package bsky wraps the three XRPC calls a mirror needs: session creation,
// blob upload and record creation.
package bsky

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/nDmitry/feedsky/internal/entity"
)

const (
	methodCreateSession = "com.atproto.server.createSession"
	methodUploadBlob    = "com.atproto.repo.uploadBlob"
	methodCreateRecord  = "com.atproto.repo.createRecord"
)

type Client struct {
	host string
	http *http.Client
}

// NewClient returns a client for the PDS at service, e.g. https://bsky.social.
// A nil http client falls back to http.DefaultClient.
func NewClient(service string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{host: strings.TrimRight(service, "/"), http: hc}
}

// transport returns an XRPC client for one call. A nil session makes an
// unauthenticated call.
func (c *Client) transport(session *Session) *xrpc.Client {
	xc := &xrpc.Client{Client: c.http, Host: c.host}

	if session != nil {
		xc.Auth = &xrpc.AuthInfo{
			AccessJwt: session.AccessJwt,
			Did:       session.DID,
			Handle:    session.Handle,
		}
	}

	return xc
}

// Authenticate creates a session. Every failure, including network errors,
// is returned as *entity.AuthError.
func (c *Client) Authenticate(ctx context.Context, identifier, password string) (Session, error) {
	out, err := comatproto.ServerCreateSession(ctx, c.transport(nil), &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   password,
	})

	if err != nil {
		return Session{}, &entity.AuthError{Err: c.transportError(methodCreateSession, err)}
	}

	if out.AccessJwt == "" || out.Did == "" {
		return Session{}, &entity.AuthError{Err: errors.New("session response is missing accessJwt or did")}
	}

	return Session{AccessJwt: out.AccessJwt, DID: out.Did, Handle: out.Handle}, nil
}

// UploadBlob uploads raw bytes and returns the blob reference. The server
// sniffs the content type; mime fills it in when the server leaves it out.
func (c *Client) UploadBlob(ctx context.Context, session Session, data []byte, mime string) (*lexutil.LexBlob, error) {
	out, err := comatproto.RepoUploadBlob(ctx, c.transport(&session), bytes.NewReader(data))

	if err != nil {
		return nil, c.transportError(methodUploadBlob, err)
	}

	if out.Blob == nil {
		return nil, c.transportError(methodUploadBlob, errors.New("response has no blob"))
	}

	if out.Blob.MimeType == "" || out.Blob.MimeType == "*/*" {
		out.Blob.MimeType = mime
	}

	return out.Blob, nil
}

// CreateRecord publishes a post.
func (c *Client) CreateRecord(ctx context.Context, session Session, req PostRequest) (RecordRef, error) {
	if req.Post == nil {
		return RecordRef{}, errors.New("post request has no record")
	}

	out, err := comatproto.RepoCreateRecord(ctx, c.transport(&session), req.input())

	if err != nil {
		return RecordRef{}, c.transportError(methodCreateRecord, err)
	}

	return RecordRef{URI: out.Uri, CID: out.Cid}, nil
}

// transportError keeps the HTTP status of XRPC failures so callers can tell
// rejections from network errors.
func (c *Client) transportError(method string, err error) error {
	terr := &entity.TransportError{Op: method, URL: c.host + "/xrpc/" + method, Err: err}

	var xerr *xrpc.Error

	if errors.As(err, &xerr) {
		terr.StatusCode = xerr.StatusCode
	}

	return terr
}
