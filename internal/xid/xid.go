package xid

import "github.com/google/uuid"

// New returns a time-ordered identifier. The prefix is kept only for readability in logs.
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}
