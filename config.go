package goBridge

import (
	"errors"
	"time"
)

// Config defines a public type used by goBridge APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Store    StoreConfig
	Gateway  GatewayConfig
	Worker   WorkerConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Confirm  ConfirmConfig
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig defines a public type used by goBridge APIs.
//
// StoreConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type StoreConfig struct {
	// KeyPrefix namespaces every Redis key and the lookup channel.
	KeyPrefix string

	// ResponseTTL bounds how long an unconsumed response record lives.
	ResponseTTL time.Duration

	// LoginContextTTL is the fallback expiry for a per-phone login
	// context when the provider reports no code timeout.
	LoginContextTTL time.Duration

	// LookupTTL bounds how long an unclaimed lookup request lives.
	LookupTTL time.Duration

	// StatusTTL is the expiry of the worker heartbeat record.
	StatusTTL time.Duration
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig defines a public type used by goBridge APIs.
//
// GatewayConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GatewayConfig struct {
	ActionWait   time.Duration
	LookupWait   time.Duration
	PollInterval time.Duration
}

/*
====================================
WORKER CONFIG
====================================
*/

// WorkerConfig defines a public type used by goBridge APIs.
//
// WorkerConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type WorkerConfig struct {
	PollTimeout  time.Duration
	ErrorBackoff time.Duration
	ProgressTTL  time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig defines a public type used by goBridge APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	// EnablePhoneThrottle turns on the per-phone per-action fixed
	// window limiter in front of the provider.
	EnablePhoneThrottle bool
	MaxAttempts         int
	Window              time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goBridge APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goBridge APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
CONFIRM CONFIG
====================================
*/

// ConfirmConfig defines a public type used by goBridge APIs.
//
// ConfirmConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ConfirmConfig struct {
	Enabled bool
	// Secret signs confirmation tokens (HMAC-SHA256). Required when
	// Enabled.
	Secret   []byte
	TokenTTL time.Duration
	LockTTL  time.Duration
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			KeyPrefix:       "bridge",
			ResponseTTL:     120 * time.Second,
			LoginContextTTL: 5 * time.Minute,
			LookupTTL:       60 * time.Second,
			StatusTTL:       60 * time.Second,
		},
		Gateway: GatewayConfig{
			ActionWait:   15 * time.Second,
			LookupWait:   30 * time.Second,
			PollInterval: 200 * time.Millisecond,
		},
		Worker: WorkerConfig{
			PollTimeout:  5 * time.Second,
			ErrorBackoff: time.Second,
			ProgressTTL:  2 * time.Minute,
		},
		Security: SecurityConfig{
			EnablePhoneThrottle: true,
			MaxAttempts:         5,
			Window:              time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Confirm: ConfirmConfig{
			Enabled:  false,
			TokenTTL: 10 * time.Minute,
			LockTTL:  30 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Confirm.Secret = cloneBytes(cfg.Confirm.Secret)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	if c.Store.KeyPrefix == "" {
		return errors.New("Store KeyPrefix must not be empty")
	}
	if c.Store.ResponseTTL <= 0 {
		return errors.New("Store ResponseTTL must be positive")
	}
	if c.Store.LoginContextTTL <= 0 {
		return errors.New("Store LoginContextTTL must be positive")
	}
	if c.Gateway.ActionWait <= 0 || c.Gateway.LookupWait <= 0 {
		return errors.New("Gateway waits must be positive")
	}
	if c.Gateway.PollInterval <= 0 {
		return errors.New("Gateway PollInterval must be positive")
	}
	if c.Gateway.PollInterval >= c.Gateway.ActionWait {
		return errors.New("Gateway PollInterval must be shorter than ActionWait")
	}
	if c.Security.EnablePhoneThrottle {
		if c.Security.MaxAttempts <= 0 {
			return errors.New("Security MaxAttempts must be positive when throttling")
		}
		if c.Security.Window <= 0 {
			return errors.New("Security Window must be positive when throttling")
		}
	}
	if c.Confirm.Enabled {
		if len(c.Confirm.Secret) < 32 {
			return errors.New("Confirm Secret must be at least 32 bytes")
		}
		if c.Confirm.TokenTTL <= 0 {
			return errors.New("Confirm TokenTTL must be positive")
		}
	}
	return nil
}
