package service

import (
	"context"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"github.com/theAravinthM/appsmith/common/logger"
)

func newTestVault() (*CredentialVault, *fakeCredentialStore) {
	store := newFakeCredentialStore()
	return NewCredentialVault(store, logger.New("error", "text")), store
}

func TestVault_GenerateECDSAKey(t *testing.T) {
	vault, store := newTestVault()

	cred, err := vault.GenerateDeployKey(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, KeyTypeECDSA, cred.KeyType)
	assert.True(t, strings.HasPrefix(cred.PublicKey, "ecdsa-sha2-nistp256 "))
	assert.True(t, strings.HasSuffix(cred.PublicKey, " appsmith"))

	block, _ := pem.Decode([]byte(cred.PrivateKey))
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	// parseable by an ssh client
	_, err = gossh.ParsePrivateKey([]byte(cred.PrivateKey))
	assert.NoError(t, err)

	// persisted
	stored, err := store.GetByID(context.Background(), cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, cred.PublicKey, stored.PublicKey)
}

func TestVault_GenerateRSAKey(t *testing.T) {
	vault, _ := newTestVault()

	cred, err := vault.GenerateDeployKey(context.Background(), "rsa")
	require.NoError(t, err)

	assert.Equal(t, KeyTypeRSA, cred.KeyType)
	assert.True(t, strings.HasPrefix(cred.PublicKey, "ssh-rsa "))

	_, err = gossh.ParsePrivateKey([]byte(cred.PrivateKey))
	assert.NoError(t, err)
}

func TestVault_UnsupportedKeyType(t *testing.T) {
	vault, _ := newTestVault()

	_, err := vault.GenerateDeployKey(context.Background(), "dsa")
	assert.Error(t, err)
}

func TestVault_SupportedKeyTypes(t *testing.T) {
	vault, _ := newTestVault()

	types := vault.SupportedKeyTypes()
	require.Len(t, types, 2)
	assert.Equal(t, KeyTypeECDSA, types[0].KeyType)
	assert.Equal(t, 256, types[0].KeySize)
	assert.Equal(t, KeyTypeRSA, types[1].KeyType)
	assert.Equal(t, 4096, types[1].KeySize)
}

func TestVault_KeysAreUnique(t *testing.T) {
	vault, _ := newTestVault()

	a, err := vault.GenerateDeployKey(context.Background(), KeyTypeECDSA)
	require.NoError(t, err)
	b, err := vault.GenerateDeployKey(context.Background(), KeyTypeECDSA)
	require.NoError(t, err)

	assert.NotEqual(t, a.PublicKey, b.PublicKey)
	assert.NotEqual(t, a.CredentialID, b.CredentialID)
}
