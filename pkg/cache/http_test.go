package cache

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestResponseToEntry(t *testing.T) {
	tests := []struct {
		name      string
		resp      *http.Response
		wantErr   bool
		wantToken string
	}{
		{
			name: "date header becomes token",
			resp: &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Date": []string{"Sat, 08 Jul 2017 19:05:00 GMT"}},
				Body:       io.NopCloser(bytes.NewReader([]byte(`<game/>`))),
			},
			wantToken: "Sat, 08 Jul 2017 19:05:00 GMT",
		},
		{
			name: "token kept verbatim even if not a valid date",
			resp: &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Date": []string{"yesterday"}},
				Body:       io.NopCloser(bytes.NewReader(nil)),
			},
			wantToken: "yesterday",
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
		{
			name: "body read failure",
			resp: &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{},
				Body:       io.NopCloser(failingReader{}),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, entry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, entry.LastModified)
			assert.Equal(t, Digest(entry.Data), entry.Digest)
			assert.False(t, entry.FetchedAt.IsZero())
		})
	}
}

func TestResponseToEntry_NoDateHeader(t *testing.T) {
	entry, err := ResponseToEntry(&http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewReader([]byte(`{}`))),
	})
	require.NoError(t, err)
	require.NotEmpty(t, entry.LastModified)

	parsed, err := http.ParseTime(entry.LastModified)
	require.NoError(t, err)
	assert.WithinDuration(t, entry.FetchedAt, parsed, 2*time.Second)
}

func TestAddConditionalHeaders(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://gd2.mlb.com/components/game/mlb/", nil)
	require.NoError(t, err)

	AddConditionalHeaders(req, nil)
	assert.Empty(t, req.Header.Get("If-Modified-Since"))

	AddConditionalHeaders(req, &Entry{LastModified: "Sat, 08 Jul 2017 19:05:00 GMT"})
	assert.Equal(t, "Sat, 08 Jul 2017 19:05:00 GMT", req.Header.Get("If-Modified-Since"))

	assert.NotPanics(t, func() { AddConditionalHeaders(nil, &Entry{}) })
}

func TestDigest(t *testing.T) {
	a := Digest([]byte("<game/>"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, Digest([]byte("<game/>")))
	assert.NotEqual(t, a, Digest([]byte("<game />")))
}

func TestFetchError(t *testing.T) {
	statusErr := &FetchError{
		URL:        "http://gd2.mlb.com/x.xml",
		Class:      ErrorClassStatus,
		StatusCode: 503,
		Err:        ErrUnexpectedStatus,
	}
	assert.Equal(t, "fetch http://gd2.mlb.com/x.xml: status error (status 503): unexpected http status", statusErr.Error())
	assert.True(t, errors.Is(statusErr, ErrUnexpectedStatus))

	netErr := &FetchError{URL: "http://gd2.mlb.com/x.xml", Class: ErrorClassNetwork, Err: io.ErrUnexpectedEOF}
	assert.Equal(t, "fetch http://gd2.mlb.com/x.xml: network error: unexpected EOF", netErr.Error())

	wrapped := fmt.Errorf("league info: %w", statusErr)
	assert.Equal(t, ErrorClassStatus, ClassOf(wrapped))
	assert.Equal(t, 503, StatusOf(wrapped))
	assert.Equal(t, ErrorClassNetwork, ClassOf(netErr))
	assert.Zero(t, StatusOf(netErr))
	assert.Equal(t, ErrorClass(""), ClassOf(errors.New("plain")))
}
