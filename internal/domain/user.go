package domain

import "time"

// Access levels for an ACL entry, matching the broker's convention.
const (
	AccessRead      = 1
	AccessWrite     = 2
	AccessReadWrite = 3
)

// ValidAccess reports whether acc is a recognized access level.
func ValidAccess(acc int) bool {
	return acc == AccessRead || acc == AccessWrite || acc == AccessReadWrite
}

// ACL grants access to a single topic pattern. The topic string is opaque
// here; wildcard matching is the broker's concern.
type ACL struct {
	Topic string `json:"topic"`
	Acc   int    `json:"acc"`
}

// User represents one broker client principal.
type User struct {
	ID        int64
	Username  string
	Password  string
	Superuser bool
	ACLs      []ACL
	CreatedAt time.Time
	UpdatedAt time.Time
}
