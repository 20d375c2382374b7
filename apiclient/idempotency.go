package apiclient

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// NewIdempotencyKey returns a collision-resistant key combining a
// millisecond timestamp with a random component (a ULID, 26 chars).
// Two keys generated in the same millisecond are still distinct.
func NewIdempotencyKey() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	if err != nil {
		return "", errors.Wrap(err, "[NewIdempotencyKey] ulid.New")
	}
	return id.String(), nil
}
