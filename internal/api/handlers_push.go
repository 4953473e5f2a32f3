// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package api

import (
	"net/http"
	"time"

	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/models"
)

// VAPIDKeyResponse carries the application server key browsers pass to
// PushManager.subscribe.
type VAPIDKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// PushAckResponse acknowledges a subscription change.
type PushAckResponse struct {
	Success bool `json:"success"`
}

// VAPIDPublicKey returns the public VAPID key.
func (h *Handler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.deps.VAPIDPublicKey == "" {
		respondError(w, http.StatusServiceUnavailable, "PUSH_DISABLED", "Push notifications are disabled", nil)
		return
	}
	respondJSON(w, http.StatusOK, successResponse(VAPIDKeyResponse{PublicKey: h.deps.VAPIDPublicKey}, nil))
}

// PushSubscribe stores a browser subscription. The authenticated user, when
// present, takes precedence over the userId of the body.
func (h *Handler) PushSubscribe(w http.ResponseWriter, r *http.Request) {
	if h.deps.Subscriptions == nil {
		respondError(w, http.StatusServiceUnavailable, "PUSH_DISABLED", "Push notifications are disabled", nil)
		return
	}

	var req models.PushSubscribeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID := identityUserID(r)
	if userID == "" {
		userID = req.UserID
	}

	sub := models.PushSubscription{
		UserID:    userID,
		Endpoint:  req.Subscription.Endpoint,
		P256dh:    req.Subscription.Keys.P256dh,
		Auth:      req.Subscription.Keys.Auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.deps.Subscriptions.SavePushSubscription(r.Context(), sub); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not store subscription", err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("user_id", sanitizeLogValue(userID)).
		Msg("Push subscription stored")
	respondJSON(w, http.StatusOK, successResponse(PushAckResponse{Success: true}, nil))
}

// PushUnsubscribe forgets an endpoint. Unknown endpoints are not an error.
func (h *Handler) PushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if h.deps.Subscriptions == nil {
		respondError(w, http.StatusServiceUnavailable, "PUSH_DISABLED", "Push notifications are disabled", nil)
		return
	}

	var req models.PushUnsubscribeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.deps.Subscriptions.RemovePushSubscription(r.Context(), req.Endpoint); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not remove subscription", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse(PushAckResponse{Success: true}, nil))
}
