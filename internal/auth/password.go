package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CredentialKind identifies how a stored password was encoded.
type CredentialKind int

const (
	// CredentialPlaintext is the legacy encoding: the password stored verbatim.
	CredentialPlaintext CredentialKind = iota
	// CredentialBcrypt is a salted bcrypt hash.
	CredentialBcrypt
)

// Credential is stored password material tagged with its encoding. Accounts
// created before hashing was introduced carry plaintext values and must keep
// working without a migration step; new accounts always store bcrypt hashes.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// ParseCredential classifies stored password material by its scheme marker.
func ParseCredential(stored string) Credential {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") {
		return Credential{Kind: CredentialBcrypt, Value: stored}
	}
	return Credential{Kind: CredentialPlaintext, Value: stored}
}

// Verify reports whether supplied matches the credential. Malformed hash data
// is treated as no match rather than an error.
func (c Credential) Verify(supplied string) bool {
	switch c.Kind {
	case CredentialBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(c.Value), []byte(supplied)) == nil
	default:
		return subtle.ConstantTimeCompare([]byte(c.Value), []byte(supplied)) == 1
	}
}

// HashPassword encodes a password for storage with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
