package cache

import (
	"encoding/hex"
	"time"

	"lukechampine.com/blake3"
)

// Entry is the result of one successful (200) fetch of a page.
// Entries are never modified after creation; a page replaces its entry
// wholesale on the next 200 response.
type Entry struct {
	// Data is the response body.
	Data []byte

	// LastModified is the raw Date header of the response that produced Data.
	// It is sent back verbatim as If-Modified-Since.
	LastModified string

	// Digest is the hex BLAKE3 hash of Data.
	Digest string

	// FetchedAt is when the response was received.
	FetchedAt time.Time
}

func newEntry(data []byte, lastModified string, fetchedAt time.Time) *Entry {
	return &Entry{
		Data:         data,
		LastModified: lastModified,
		Digest:       Digest(data),
		FetchedAt:    fetchedAt,
	}
}

// Digest returns the hex encoded BLAKE3 hash of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Age returns how long ago the entry was fetched.
func (e *Entry) Age() time.Duration {
	return time.Since(e.FetchedAt)
}
