package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string for use as a task identifier.
// ULIDs are a monotonic timestamp plus random suffix, so they are unique
// within the process and sort in submission order.
func NewID() string {
	return ulid.Make().String()
}
