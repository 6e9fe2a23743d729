package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/goBridge/internal/stores"
)

var (
	// ErrTokenInvalid covers every verification failure: bad signature,
	// expired, or claims that do not match the requested operation.
	ErrTokenInvalid = errors.New("invalid confirmation token")
	// ErrInFlight means another confirmation for the same operation is
	// currently executing.
	ErrInFlight = errors.New("confirmation already in flight")
)

// Config defines a public type used by goBridge APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
	LockTTL  time.Duration
}

// Claims binds a token to one operation on one phone.
type Claims struct {
	Op    string `json:"op"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// Manager issues and verifies confirmation tokens.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
	lock   *stores.SingleFlightLock
}

// NewManager validates the config and creates a [Manager].
func NewManager(cfg Config, lock *stores.SingleFlightLock) (*Manager, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("confirm secret must be at least 32 bytes")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Manager{config: cfg, lock: lock}, nil
}

// Issue creates a signed token that authorizes op on phone until the
// token TTL elapses.
func (m *Manager) Issue(op, phone string) (string, error) {
	now := time.Now()
	claims := Claims{
		Op:    op,
		Phone: phone,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.config.Secret)
	if err != nil {
		return "", fmt.Errorf("signing confirmation token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and operation binding. Any mismatch is
// [ErrTokenInvalid]; the concrete cause is deliberately not exposed.
func (m *Manager) Verify(tokenString, op, phone string) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.config.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return ErrTokenInvalid
	}

	if claims.Op != op || claims.Phone != phone {
		return ErrTokenInvalid
	}
	return nil
}

// Begin acquires the single-flight lock for op. The returned release
// must be called when the confirmed operation finishes; it is safe to
// call from a defer with a canceled request context.
func (m *Manager) Begin(ctx context.Context, op string) (release func(), err error) {
	token := uuid.NewString()
	if err := m.lock.Acquire(ctx, op, token, m.config.LockTTL); err != nil {
		if errors.Is(err, stores.ErrLockHeld) {
			return nil, ErrInFlight
		}
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.lock.Release(ctx, op, token)
	}, nil
}
