package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	box, err := NewBox("master-key-for-tests")
	require.NoError(t, err)

	sealed, err := box.Encrypt("hook-verification-token")
	require.NoError(t, err)
	assert.NotEqual(t, "hook-verification-token", sealed)

	opened, err := box.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hook-verification-token", opened)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	box, err := NewBox("master-key-for-tests")
	require.NoError(t, err)

	first, err := box.Encrypt("same-secret")
	require.NoError(t, err)
	second, err := box.Encrypt("same-secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, err := NewBox("master-key-for-tests")
	require.NoError(t, err)

	sealed, err := box.Encrypt("secret")
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 0x01
	_, err = box.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	box, err := NewBox("master-key-one")
	require.NoError(t, err)
	other, err := NewBox("master-key-two")
	require.NoError(t, err)

	sealed, err := box.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewBoxRequiresMasterKey(t *testing.T) {
	_, err := NewBox("")
	assert.Error(t, err)
}
