package service

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gossh "golang.org/x/crypto/ssh"

	"github.com/theAravinthM/appsmith/cmd/gitserver/models"
	"github.com/theAravinthM/appsmith/common/logger"
)

// Supported deploy-key types
const (
	KeyTypeECDSA = "ECDSA"
	KeyTypeRSA   = "RSA"
)

// DeployKeyType describes one supported key flavor for the protocol listing
type DeployKeyType struct {
	Protocol string `json:"protocol"`
	KeyType  string `json:"key_type"`
	KeySize  int    `json:"key_size"`
}

// CredentialVault generates and stores per-artifact deploy keys
type CredentialVault struct {
	creds CredentialStore
	log   *logger.Logger
}

// NewCredentialVault creates a new credential vault
func NewCredentialVault(creds CredentialStore, log *logger.Logger) *CredentialVault {
	return &CredentialVault{
		creds: creds,
		log:   log,
	}
}

// SupportedKeyTypes lists the deploy-key flavors this vault can generate
func (v *CredentialVault) SupportedKeyTypes() []DeployKeyType {
	return []DeployKeyType{
		{Protocol: "SSH", KeyType: KeyTypeECDSA, KeySize: 256},
		{Protocol: "SSH", KeyType: KeyTypeRSA, KeySize: 4096},
	}
}

// GenerateDeployKey creates and persists a fresh keypair. An empty keyType
// selects ECDSA.
func (v *CredentialVault) GenerateDeployKey(ctx context.Context, keyType string) (*models.GitCredential, error) {
	if keyType == "" {
		keyType = KeyTypeECDSA
	}
	keyType = strings.ToUpper(keyType)

	privatePEM, publicKey, err := generateKeypair(keyType)
	if err != nil {
		return nil, err
	}

	cred := &models.GitCredential{
		CredentialID: uuid.New(),
		KeyType:      keyType,
		PublicKey:    publicKey,
		PrivateKey:   privatePEM,
	}

	if err := v.creds.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store deploy key: %w", err)
	}

	v.log.Info("generated deploy key",
		"credential_id", cred.CredentialID,
		"key_type", keyType,
	)

	return cred, nil
}

// generateKeypair is the network-free part of key generation, split out so
// tests can exercise it without a store
func generateKeypair(keyType string) (privatePEM, publicKey string, err error) {
	var signer crypto.Signer

	switch keyType {
	case KeyTypeECDSA:
		key, genErr := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if genErr != nil {
			return "", "", fmt.Errorf("generate ecdsa key: %w", genErr)
		}
		signer = key
	case KeyTypeRSA:
		key, genErr := rsa.GenerateKey(rand.Reader, 4096)
		if genErr != nil {
			return "", "", fmt.Errorf("generate rsa key: %w", genErr)
		}
		signer = key
	default:
		return "", "", fmt.Errorf("unsupported key type %q", keyType)
	}

	der, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return "", "", fmt.Errorf("marshal private key: %w", err)
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))

	sshPub, err := gossh.NewPublicKey(signer.Public())
	if err != nil {
		return "", "", fmt.Errorf("derive ssh public key: %w", err)
	}
	publicKey = strings.TrimSpace(string(gossh.MarshalAuthorizedKey(sshPub))) + " appsmith"

	return privatePEM, publicKey, nil
}
