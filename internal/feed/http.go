package feed

import (
	"net"
	"net/http"
	"time"
)

const (
	userAgent = "feedsky/1.0 (+https://github.com/nDmitry/feedsky)"
	// Larger images are rejected by the posting API anyway.
	maxImageBytes = 5 << 20
	// DefaultMaxFeedBytes caps the feed payload. A larger feed is an error,
	// never a silently truncated document.
	DefaultMaxFeedBytes = 32 << 20
)

var httpTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}).DialContext,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	DisableCompression:  false,
}

// HTTPClient is the tuned client shared by feed retrieval and the posting API.
var HTTPClient = &http.Client{
	Transport: httpTransport,
	Timeout:   30 * time.Second,
}
