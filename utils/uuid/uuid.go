// Package uuid generates the identifiers used for members
// and temporary resources
package uuid

import (
	google_uuid "github.com/google/uuid"
)

// MustUUID returns a new random UUID string
func MustUUID() string {
	return google_uuid.New().String()
}

// Valid returns true if s is a well formed UUID
func Valid(s string) bool {
	_, err := google_uuid.Parse(s)

	return err == nil
}
