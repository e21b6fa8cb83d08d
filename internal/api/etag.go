package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/neexbeast/destinations/internal/destination"
)

const cacheControl = "public, max-age=60"

// Fingerprint returns a strong entity tag for v: the hex SHA-256 of its JSON
// encoding, wrapped in double quotes.
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %T: %w", v, err)
	}
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

// MatchesPrecondition reports whether a client-supplied tag names current.
// "*" matches any existing representation.
func MatchesPrecondition(supplied, current string) bool {
	supplied = strings.TrimSpace(supplied)
	return supplied == "*" || supplied == current
}

// notModified reports whether the request's If-None-Match names etag.
func notModified(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	return inm != "" && MatchesPrecondition(inm, etag)
}

// ifMatch returns the precondition handed to a transactional update, or nil
// when the request carries no If-Match header and the update is unconditional.
func ifMatch[T any](r *http.Request) func(T) error {
	supplied := r.Header.Get("If-Match")
	if supplied == "" {
		return nil
	}
	return func(current T) error {
		tag, err := Fingerprint(current)
		if err != nil {
			return err
		}
		if !MatchesPrecondition(supplied, tag) {
			return destination.ErrPreconditionFailed
		}
		return nil
	}
}

// setCacheHeaders attaches the validator and caching policy to a read response.
func setCacheHeaders(w http.ResponseWriter, etag string) {
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", cacheControl)
}
