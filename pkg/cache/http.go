package cache

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// ResponseToEntry reads a 200 response into a new Entry.
// The Date header becomes the entry's LastModified token; if the server
// did not send one, the local clock is used so that every entry carries a
// token.
func ResponseToEntry(resp *http.Response) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	now := time.Now()
	token := resp.Header.Get("Date")
	if token == "" {
		token = now.UTC().Format(http.TimeFormat)
	}

	return newEntry(body, token, now), nil
}

// AddConditionalHeaders sets If-Modified-Since from the entry's token.
// It is a no-op when there is no entry yet.
func AddConditionalHeaders(req *http.Request, entry *Entry) {
	if entry == nil || req == nil {
		return
	}
	req.Header.Set("If-Modified-Since", entry.LastModified)
}

// drainBody discards what is left of a response body so the connection can
// be reused.
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
}
