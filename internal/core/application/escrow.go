package application

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/ArkLabsHQ/oracle-node/internal/core/domain"
)

// EscrowKeySize is the size in bits of the RSA keys issued per password
// transaction.
const EscrowKeySize = 4096

const pemBlockType = "RSA PRIVATE KEY"

type escrowPublicKey struct {
	N *big.Int `json:"n"`
	E int      `json:"e"`
}

type EscrowOption func(*EscrowKeyIssuer)

// WithEscrowKeySize overrides EscrowKeySize.
func WithEscrowKeySize(bits int) EscrowOption {
	return func(i *EscrowKeyIssuer) {
		i.keySize = bits
	}
}

// EscrowKeyIssuer generates and persists one RSA key pair per password
// transaction.
type EscrowKeyIssuer struct {
	repo    domain.EscrowKeyRepository
	keySize int
}

func NewEscrowKeyIssuer(repo domain.EscrowKeyRepository, opts ...EscrowOption) *EscrowKeyIssuer {
	issuer := &EscrowKeyIssuer{repo, EscrowKeySize}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// IssueAndSave generates a key pair for pwtxid, persists it and returns its
// JSON encoded public half. It fails with ErrDuplicateRequest if a key was
// already issued for pwtxid.
func (i *EscrowKeyIssuer) IssueAndSave(ctx context.Context, pwtxid string) (string, error) {
	existing, err := i.repo.Get(ctx, pwtxid)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", fmt.Errorf("%w: %s", ErrDuplicateRequest, pwtxid)
	}

	key, err := rsa.GenerateKey(rand.Reader, i.keySize)
	if err != nil {
		return "", fmt.Errorf("failed to generate escrow key: %w", err)
	}

	publicKey, err := json.Marshal(escrowPublicKey{N: key.N, E: key.E})
	if err != nil {
		return "", err
	}
	privateKey := pem.EncodeToMemory(&pem.Block{
		Type:  pemBlockType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	if err := i.repo.Add(ctx, domain.EscrowKeyPair{
		Pwtxid:     pwtxid,
		PublicKey:  string(publicKey),
		PrivateKey: string(privateKey),
	}); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateRequest, pwtxid)
		}
		return "", fmt.Errorf("failed to save escrow key: %w", err)
	}
	return string(publicKey), nil
}

// Load returns the private key issued for pwtxid, or nil if there is none.
func (i *EscrowKeyIssuer) Load(ctx context.Context, pwtxid string) (*rsa.PrivateKey, error) {
	keyPair, err := i.repo.Get(ctx, pwtxid)
	if err != nil {
		return nil, err
	}
	if keyPair == nil {
		return nil, nil
	}

	block, _ := pem.Decode([]byte(keyPair.PrivateKey))
	if block == nil || block.Type != pemBlockType {
		return nil, fmt.Errorf("invalid escrow key for %s", pwtxid)
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// PublicKey returns the JSON encoded public half issued for pwtxid, or an
// empty string if there is none.
func (i *EscrowKeyIssuer) PublicKey(ctx context.Context, pwtxid string) (string, error) {
	keyPair, err := i.repo.Get(ctx, pwtxid)
	if err != nil {
		return "", err
	}
	if keyPair == nil {
		return "", nil
	}
	return keyPair.PublicKey, nil
}

// ParseEscrowPublicKey decodes the public half returned by IssueAndSave.
func ParseEscrowPublicKey(publicKey string) (*rsa.PublicKey, error) {
	var key escrowPublicKey
	if err := json.Unmarshal([]byte(publicKey), &key); err != nil {
		return nil, fmt.Errorf("invalid escrow public key: %w", err)
	}
	if key.N == nil || key.E <= 0 {
		return nil, fmt.Errorf("invalid escrow public key")
	}
	return &rsa.PublicKey{N: key.N, E: key.E}, nil
}
