package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"haultrack/internal/domain/user"
	"haultrack/internal/general/jwt"
	"haultrack/internal/general/logger"
	"haultrack/internal/general/websocket"
	"haultrack/internal/ports"
)

// TrackingHTTPHandler adapts HTTP requests to the tracking feed and its
// read-side location API.
type TrackingHTTPHandler struct {
	store  ports.LocationStore
	logger *logger.Logger
	auth   *jwt.Manager
	socket *websocket.TrackingSocket
}

// NewTrackingHTTPHandler wires an HTTP handler around the tracking service.
func NewTrackingHTTPHandler(
	store ports.LocationStore,
	logger *logger.Logger,
	auth *jwt.Manager,
	socket *websocket.TrackingSocket,
) *TrackingHTTPHandler {
	return &TrackingHTTPHandler{store: store, logger: logger, auth: auth, socket: socket}
}

// RegisterRoutes mounts tracking endpoints on the provided mux.
func (handler *TrackingHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	// WebSocket authenticates itself via the ?token= query parameter
	mux.HandleFunc("GET /ws/tracking", handler.socket.ServeTracking)

	mux.HandleFunc("GET /api/v1/drivers/{driver_id}/location",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver, user.RoleDispatcher, user.RoleAdmin)(handler.handleGetLocation),
	)

	mux.HandleFunc("GET /health", handler.handleHealth)
	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// handleGetLocation returns the latest known position of a driver. Drivers
// may only read their own position; dispatchers and admins may read anyone's.
func (handler *TrackingHTTPHandler) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID := strings.TrimSpace(r.PathValue("driver_id"))
	if driverID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "driver_id is required", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims.Role.IsDriver() && claims.Subject != driverID {
		handler.httpError(ctx, w, http.StatusForbidden, "drivers may only read their own location", nil)
		return
	}

	loc, err := handler.store.GetCurrent(ctx, driverID)
	if err != nil {
		handler.httpError(ctx, w, http.StatusNotFound, "no location known for driver", err)
		return
	}

	type locationResponse struct {
		UserID    string    `json:"user_id"`
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
		IsOnline  bool      `json:"is_online"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	handler.jsonResponse(ctx, w, http.StatusOK, locationResponse{
		UserID:    loc.UserID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		IsOnline:  loc.IsOnline,
		UpdatedAt: loc.UpdatedAt,
	})
}

// handleHealth reports liveness.
func (handler *TrackingHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

// ----- token minting (testing convenience) -----

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

// handleCreateToken generates JWT tokens for testing
func (handler *TrackingHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": req.Role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	})
}

// ----- general helpers -----

// jsonResponse takes any type of data and encode it to HTTP response.
func (handler *TrackingHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *TrackingHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *TrackingHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
