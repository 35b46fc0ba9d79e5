package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	a, err := DeriveKey("secret")
	require.NoError(t, err)
	assert.Len(t, a, 32)

	b, err := DeriveKey("secret")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveKey("other")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := DeriveKey("secret")
	require.NoError(t, err)

	enc, err := Encrypt([]byte("api-key-value"), key)
	require.NoError(t, err)
	assert.NotContains(t, enc, "api-key-value")

	dec, err := Decrypt(enc, key)
	require.NoError(t, err)
	assert.Equal(t, "api-key-value", string(dec))

	wrong, err := DeriveKey("wrong")
	require.NoError(t, err)
	_, err = Decrypt(enc, wrong)
	assert.Error(t, err)
}
