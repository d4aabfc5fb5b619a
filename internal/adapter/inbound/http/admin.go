package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/param-gate/paramgate/internal/domain/auth"
	"github.com/param-gate/paramgate/internal/service"
)

// defaultRecentLimit bounds the rejection history page size.
const defaultRecentLimit = 100

// AdminHandler serves the rejection history behind key authentication.
// Keys are verified against a stored hash, never compared in plaintext.
type AdminHandler struct {
	keyHash      string
	auditService *service.AuditService
	logger       *slog.Logger
}

// NewAdminHandler creates the handler. keyHash is an Argon2id PHC string
// or "sha256:<hex>" as produced by the hash-key command.
func NewAdminHandler(keyHash string, auditService *service.AuditService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{keyHash: keyHash, auditService: auditService, logger: logger}
}

// Register mounts the admin routes on the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.Handle("GET /admin/rejections", h.requireKey(http.HandlerFunc(h.handleRejections)))
}

// requireKey authenticates the Authorization: Bearer <key> header.
func (h *AdminHandler) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		key := strings.TrimPrefix(authz, "Bearer ")
		match, err := auth.VerifyKey(key, h.keyHash)
		if err != nil {
			h.logger.Error("admin key verification failed", "error", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !match {
			h.logger.Warn("admin key rejected", "path", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleRejections returns recent validation rejections, newest first.
// Supports ?limit=N up to the default page size.
func (h *AdminHandler) handleRejections(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}

	entries, err := h.auditService.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("reading rejection history failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"count":      len(entries),
		"rejections": entries,
	})
}
