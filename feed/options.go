package feed

import (
	"crypto/ed25519"
	"log/slog"
)

// config holds options shared by Create and Clone.
type config struct {
	signed    bool
	secretKey ed25519.PrivateKey
	logger    *slog.Logger
}

// Option configures a Feed.
type Option func(*config)

// WithSigned controls whether a created feed is signed (the default).
//
// A signed feed gets an Ed25519 keypair and stays open-ended: every append
// re-signs the tree. An unsigned feed has no key until Seal, after which its
// key is the tree hash and no further appends are accepted.
func WithSigned(signed bool) Option {
	return func(c *config) {
		c.signed = signed
	}
}

// WithSecretKey uses sk instead of generating a keypair for a signed feed.
func WithSecretKey(sk ed25519.PrivateKey) Option {
	return func(c *config) {
		c.secretKey = sk
	}
}

// WithLogger sets the logger for feed events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
