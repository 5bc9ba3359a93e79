package gatekeeper

import (
	"net/http"
	"time"
)

// checkFreshness validates the client-supplied Date header against the
// server clock within maxAge. now is injected rather than read from
// time.Now() directly so tests can drive the check with a fake clock.
func checkFreshness(dateHeader string, now time.Time, maxAge time.Duration) error {
	if dateHeader == "" {
		return errMissingDate
	}
	parsed, err := http.ParseTime(dateHeader)
	if err != nil {
		return errUnparseableDate
	}
	diff := now.Sub(parsed)
	if diff < 0 || diff > maxAge {
		return errStaleRequest
	}
	return nil
}

var (
	errMissingDate     = freshnessError("Date header is missing")
	errUnparseableDate = freshnessError("Date header could not be parsed")
	errStaleRequest    = freshnessError("request is outside the freshness window")
)

type freshnessError string

func (e freshnessError) Error() string { return string(e) }
