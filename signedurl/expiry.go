// Package signedurl inspects pre-signed download URLs.
package signedurl

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// ExpiresParam holds the validity window in seconds.
	ExpiresParam = "X-Amz-Expires"

	// DateParam holds the issuance time in basic ISO 8601, UTC.
	DateParam = "X-Amz-Date"

	// DateLayout is the layout of DateParam without its trailing "Z".
	DateLayout = "20060102T150405"
)

// Checker reports whether pre-signed URLs have lapsed.
type Checker struct {
	Now func() time.Time
}

// New returns a Checker reading the wall clock.
func New() *Checker {
	return &Checker{Now: time.Now}
}

// IsExpired reports whether the validity window embedded in rawURL ended
// before now. A URL without a readable issuance time or validity window is
// treated as still valid.
func (c *Checker) IsExpired(rawURL string) bool {
	expiresAt, ok := ExpiresAt(rawURL)
	if !ok {
		return false
	}

	now := time.Now
	if c != nil && c.Now != nil {
		now = c.Now
	}
	return expiresAt.Before(now().UTC())
}

// maxWindowSeconds is the longest validity window a time.Duration can hold.
const maxWindowSeconds = float64(math.MaxInt64 / int64(time.Second))

// ExpiresAt returns the instant at which rawURL stops being valid. Only the
// query string is read; the rest of the URL need not be well formed. Negative
// windows and windows too long to represent report false.
func ExpiresAt(rawURL string) (time.Time, bool) {
	_, rawQuery, found := strings.Cut(rawURL, "?")
	if !found {
		return time.Time{}, false
	}
	rawQuery, _, _ = strings.Cut(rawQuery, "#")
	// ParseQuery keeps every well-formed pair even when it reports an error.
	query, _ := url.ParseQuery(rawQuery)

	seconds, err := strconv.ParseFloat(query.Get(ExpiresParam), 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 || seconds > maxWindowSeconds {
		return time.Time{}, false
	}

	issued, err := time.ParseInLocation(DateLayout, strings.TrimSuffix(query.Get(DateParam), "Z"), time.UTC)
	if err != nil {
		return time.Time{}, false
	}

	return issued.Add(time.Duration(seconds * float64(time.Second))), true
}

// Params returns the query parameters a signer embeds for a URL issued at
// issued and valid for expires.
func Params(issued time.Time, expires time.Duration) url.Values {
	values := url.Values{}
	values.Set(DateParam, issued.UTC().Format(DateLayout)+"Z")
	values.Set(ExpiresParam, strconv.FormatInt(int64(expires/time.Second), 10))
	return values
}
