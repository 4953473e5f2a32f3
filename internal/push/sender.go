// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package push delivers Web Push notifications to browser subscriptions.
//
// Each delivery goes through a circuit breaker so a failing push service
// does not keep every marker creation waiting on timeouts. A 404 or 410 from
// the push service is a normal answer (the subscription is gone), not a
// breaker failure.
package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
)

const (
	breakerName        = "web-push"
	defaultConcurrency = 8
	defaultTTL         = 3600
)

// HTTPDoer is the subset of *http.Client used for delivery.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// serverError marks a 5xx answer so the breaker counts it.
type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("push service responded %d", e.status)
}

// Sender delivers encrypted payloads with VAPID authentication.
type Sender struct {
	publicKey   string
	privateKey  string
	subject     string
	ttl         int
	timeout     time.Duration
	client      HTTPDoer
	concurrency int
	cb          *gobreaker.CircuitBreaker[int]
}

// Option customizes a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(s *Sender) { s.client = c }
}

// WithConcurrency bounds parallel deliveries of one fan-out.
func WithConcurrency(n int) Option {
	return func(s *Sender) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewSender creates a sender for the given key pair.
func NewSender(cfg config.PushConfig, publicKey, privateKey string, opts ...Option) *Sender {
	s := &Sender{
		publicKey:   publicKey,
		privateKey:  privateKey,
		subject:     cfg.Subject,
		ttl:         cfg.TTL,
		timeout:     cfg.Timeout,
		concurrency: defaultConcurrency,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.timeout <= 0 {
		s.timeout = 10 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: s.timeout}
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	s.cb = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return s
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (s *Sender) PublicKey() string {
	return s.publicKey
}

// SendToSubscriptions delivers payload to every subscription in parallel and
// returns one result per subscription. A failure never stops the others.
func (s *Sender) SendToSubscriptions(ctx context.Context, subs []models.PushSubscription, payload []byte) []models.PushResult {
	if len(subs) == 0 {
		return nil
	}
	p := pool.NewWithResults[models.PushResult]().WithMaxGoroutines(s.concurrency)
	for _, sub := range subs {
		p.Go(func() models.PushResult {
			return s.Send(ctx, sub, payload)
		})
	}
	return p.Wait()
}

// Send delivers payload to one subscription.
func (s *Sender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) models.PushResult {
	res := models.PushResult{Endpoint: sub.Endpoint}

	status, err := s.cb.Execute(func() (int, error) {
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
		}, &webpush.Options{
			HTTPClient:      s.client,
			Subscriber:      s.subject,
			TTL:             s.ttl,
			Urgency:         webpush.UrgencyHigh,
			VAPIDPublicKey:  s.publicKey,
			VAPIDPrivateKey: s.privateKey,
		})
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp.StatusCode, &serverError{status: resp.StatusCode}
		}
		return resp.StatusCode, nil
	})

	res.StatusCode = status
	switch {
	case err != nil:
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("push delivery skipped: %w", err)
		}
		res.Err = err
	case status >= 200 && status < 300:
		res.OK = true
	default:
		res.Err = fmt.Errorf("push service responded %d", status)
	}
	return res
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
