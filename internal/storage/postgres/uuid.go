package postgres

import "github.com/google/uuid"

// isUUID guards UUID columns from ids that would fail the cast server-side.
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}
