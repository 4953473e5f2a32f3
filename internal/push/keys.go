// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package push

import (
	"context"
	"errors"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
)

// ErrNoKeys is returned by a KeyStore that holds no key pair yet.
var ErrNoKeys = errors.New("no VAPID keys stored")

// KeyStore persists the generated VAPID key pair.
type KeyStore interface {
	LoadVAPIDKeys(ctx context.Context) (publicKey, privateKey string, err error)
	SaveVAPIDKeys(ctx context.Context, publicKey, privateKey string) error
}

// ResolveKeys returns the VAPID key pair to use, in order of preference:
// configured keys, keys stored by a previous run, a freshly generated pair
// (which is then stored). isMissing tells whether a KeyStore error means
// "nothing stored"; store may be nil.
func ResolveKeys(ctx context.Context, cfg config.PushConfig, store KeyStore, isMissing func(error) bool) (publicKey, privateKey string, err error) {
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		return cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, nil
	}
	if cfg.VAPIDPublicKey != "" || cfg.VAPIDPrivateKey != "" {
		return "", "", fmt.Errorf("both VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set")
	}

	if store != nil {
		pub, priv, err := store.LoadVAPIDKeys(ctx)
		switch {
		case err == nil:
			return pub, priv, nil
		case errors.Is(err, ErrNoKeys) || (isMissing != nil && isMissing(err)):
		default:
			return "", "", fmt.Errorf("load VAPID keys: %w", err)
		}
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate VAPID keys: %w", err)
	}
	if store != nil {
		if err := store.SaveVAPIDKeys(ctx, pub, priv); err != nil {
			return "", "", fmt.Errorf("store VAPID keys: %w", err)
		}
	}
	logging.Warn().Msg("Generated VAPID keys; set VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY to pin them")
	return pub, priv, nil
}
