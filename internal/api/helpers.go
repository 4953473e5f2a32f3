// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/models"
	"github.com/juac793lc/sala-chat/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	resp := successResponse(nil, nil)
	resp.Status = "error"
	resp.Error = &models.APIError{Code: code, Message: message}
	respondJSON(w, status, resp)
}

// respondValidationError reports every failed rule with its field name.
func respondValidationError(w http.ResponseWriter, err error) {
	apiErr := &models.APIError{Code: "VALIDATION_ERROR", Message: err.Error()}
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr.Details = map[string]interface{}{"fields": verr.FieldNames()}
	}
	resp := successResponse(nil, nil)
	resp.Status = "error"
	resp.Error = apiErr
	respondJSON(w, http.StatusBadRequest, resp)
}

// decodeAndValidate reads a bounded JSON body into dst and runs the
// struct validation rules. It writes the error response itself and reports
// whether the handler may continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
			return false
		}
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read request body", nil)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body is not valid JSON", nil)
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}
