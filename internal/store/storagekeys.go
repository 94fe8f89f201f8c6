package store

import (
	"fmt"
	"strings"
)

// CredsKey is the singleton logical key holding a session's credentials.
const CredsKey = "auth_creds"

// StorageKey derives the physical row key for a session's logical key.
// The mapping is injective as long as session ids never contain ':'
// (enforced by ValidateSessionID), so rows of different sessions can
// never collide and SessionPrefix matches exactly one session.
func StorageKey(sessionID, logicalKey string) string {
	return sessionID + ":" + logicalKey
}

// SessionPrefix is the shared prefix of every row key of one session,
// used for whole-session teardown.
func SessionPrefix(sessionID string) string {
	return sessionID + ":"
}

// KeyName builds the logical key for one (category, id) pair.
func KeyName(category, id string) string {
	return category + "-" + id
}

// ValidateSessionID rejects session ids that would break prefix isolation.
// A ':' inside a session id would make one session's prefix match another
// session's rows, so teardown of "a" could destroy "a:b".
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("store: session id must not be empty")
	}
	if strings.Contains(id, ":") {
		return fmt.Errorf("store: session id %q must not contain ':'", id)
	}
	return nil
}

// escapeLike escapes SQL LIKE wildcards in s so it matches literally,
// using '\' as the escape character.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
