package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyStatus indica el estado de una clave.
type KeyStatus string

const (
	KeyActive  KeyStatus = "active"
	KeyRetired KeyStatus = "retired"
)

// SigningKey es un par Ed25519 identificado por KID.
type SigningKey struct {
	KID       string
	Alg       string // "EdDSA"
	Priv      ed25519.PrivateKey
	Pub       ed25519.PublicKey
	Status    KeyStatus
	CreatedAt time.Time
	RetiredAt *time.Time
}

// Keystore mantiene la clave activa más las retiradas (grace para verificar
// tokens viejos). Thread-safe: emisión y rotación pueden correr concurrentes.
type Keystore struct {
	mu      sync.RWMutex
	active  *SigningKey
	retired []*SigningKey
}

var ErrNoActiveKey = errors.New("no active signing key")

// NewKeystore genera la clave inicial.
func NewKeystore() (*Keystore, error) {
	k, err := generate()
	if err != nil {
		return nil, err
	}
	return &Keystore{active: k}, nil
}

func generate() (*SigningKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SigningKey{
		KID:       uuid.NewString(),
		Alg:       "EdDSA",
		Priv:      priv,
		Pub:       pub,
		Status:    KeyActive,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Active devuelve (kid, priv, pub) de la clave activa.
func (ks *Keystore) Active() (string, ed25519.PrivateKey, ed25519.PublicKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.active == nil {
		return "", nil, nil, ErrNoActiveKey
	}
	return ks.active.KID, ks.active.Priv, ks.active.Pub, nil
}

// PublicKeyByKID busca la pubkey por KID entre active y retired.
func (ks *Keystore) PublicKeyByKID(kid string) (ed25519.PublicKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.active != nil && ks.active.KID == kid {
		return ks.active.Pub, nil
	}
	for _, k := range ks.retired {
		if k.KID == kid {
			return k.Pub, nil
		}
	}
	return nil, errors.New("unknown kid: " + kid)
}

// Rotate genera una clave nueva y retira la anterior. La retirada sigue
// publicada en el JWKS para que los tokens ya emitidos verifiquen.
func (ks *Keystore) Rotate() (string, error) {
	next, err := generate()
	if err != nil {
		return "", err
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	if ks.active != nil {
		now := time.Now().UTC()
		ks.active.Status = KeyRetired
		ks.active.RetiredAt = &now
		ks.retired = append(ks.retired, ks.active)
	}
	ks.active = next
	return next.KID, nil
}

// snapshot devuelve las claves publicables (active primero, luego retired).
func (ks *Keystore) snapshot() []*SigningKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	out := make([]*SigningKey, 0, 1+len(ks.retired))
	if ks.active != nil {
		out = append(out, ks.active)
	}
	out = append(out, ks.retired...)
	return out
}
