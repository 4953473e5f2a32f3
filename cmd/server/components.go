// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/database"
	"github.com/juac793lc/sala-chat/internal/dedup"
	"github.com/juac793lc/sala-chat/internal/events"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/proximity"
	"github.com/juac793lc/sala-chat/internal/push"
)

// components holds the optional collaborators of the engine. Nil fields
// are disabled features.
type components struct {
	push      *push.Sender
	ledger    *dedup.Ledger
	publisher *events.Publisher
	natsSrv   *events.EmbeddedServer
}

// initComponents starts push, the notification ledger and the event mirror
// according to cfg. Whatever was started is closed again on error.
func initComponents(ctx context.Context, cfg *config.Config, db *database.DB) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if cfg.Push.Enabled {
		pub, priv, err := push.ResolveKeys(ctx, cfg.Push, db, func(err error) bool {
			return errors.Is(err, database.ErrNotFound)
		})
		if err != nil {
			return nil, fmt.Errorf("resolve VAPID keys: %w", err)
		}
		c.push = push.NewSender(cfg.Push, pub, priv)
		logging.Info().Str("subject", cfg.Push.Subject).Msg("Web Push enabled")
	} else {
		logging.Info().Msg("Web Push disabled (PUSH_ENABLED=false)")
	}

	if cfg.Dedup.Enabled {
		c.ledger, err = dedup.Open(cfg.Dedup)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("path", cfg.Dedup.Path).Bool("in_memory", cfg.Dedup.InMemory).Msg("Notification ledger opened")
	}

	if cfg.NATS.Enabled {
		url := cfg.NATS.URL
		if cfg.NATS.EmbeddedServer {
			srvCfg, err := events.ServerConfigFromURL(cfg.NATS.URL, cfg.NATS.StoreDir)
			if err != nil {
				return nil, err
			}
			c.natsSrv, err = events.NewEmbeddedServer(srvCfg)
			if err != nil {
				return nil, err
			}
			url = c.natsSrv.ClientURL()
			logging.Info().Str("url", url).Msg("Embedded NATS server started")
		}
		c.publisher, err = events.NewNATSPublisher(url, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("url", url).Str("prefix", cfg.NATS.SubjectPrefix).Msg("Marker events mirrored to NATS")
	}

	return c, nil
}

// dependencies maps the enabled components onto engine collaborators,
// leaving disabled ones as untyped nil interfaces.
func (c *components) dependencies(db *database.DB) proximity.Dependencies {
	deps := proximity.Dependencies{Storage: db}
	if c.push != nil {
		deps.Push = c.push
		deps.Subscriptions = db
	}
	if c.ledger != nil {
		deps.Ledger = c.ledger
	}
	if c.publisher != nil {
		deps.Events = c.publisher
	}
	return deps
}

func (c *components) vapidPublicKey() string {
	if c.push == nil {
		return ""
	}
	return c.push.PublicKey()
}

// Close releases components in reverse start order.
func (c *components) Close() {
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event publisher")
		}
	}
	if c.natsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.natsSrv.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error shutting down embedded NATS server")
		}
	}
	if c.ledger != nil {
		if err := c.ledger.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing notification ledger")
		}
	}
}
