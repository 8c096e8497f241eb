package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredential(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	assert.Equal(t, CredentialBcrypt, ParseCredential(hash).Kind)
	assert.Equal(t, CredentialBcrypt, ParseCredential("$2a$10$abcdefghijklmnopqrstuv").Kind)
	assert.Equal(t, CredentialPlaintext, ParseCredential("hunter2").Kind)
	assert.Equal(t, CredentialPlaintext, ParseCredential("").Kind)
	// unknown scheme markers fall back to plaintext
	assert.Equal(t, CredentialPlaintext, ParseCredential("$argon2id$v=19$whatever").Kind)
}

func TestVerifyBcrypt(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	cred := ParseCredential(hash)
	assert.True(t, cred.Verify("hunter2"))
	assert.False(t, cred.Verify("hunter3"))
	assert.False(t, cred.Verify(""))
}

func TestVerifyPlaintext(t *testing.T) {
	cred := ParseCredential("hunter2")
	assert.True(t, cred.Verify("hunter2"))
	assert.False(t, cred.Verify("Hunter2"), "plaintext comparison is case sensitive")
	assert.False(t, cred.Verify("hunter2 "))
}

func TestVerifyMalformedHashIsNoMatch(t *testing.T) {
	cred := ParseCredential("$2a$not-a-real-hash")
	require.Equal(t, CredentialBcrypt, cred.Kind)
	assert.False(t, cred.Verify("anything"))
	assert.False(t, cred.Verify("$2a$not-a-real-hash"))
}
