package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/huddle-chat/huddle/internal/config"
	"github.com/huddle-chat/huddle/internal/delivery/ws"
	"github.com/huddle-chat/huddle/internal/domain"
	"github.com/huddle-chat/huddle/internal/middleware"
	"github.com/huddle-chat/huddle/internal/session"
	"github.com/huddle-chat/huddle/internal/storage"
)

var (
	htmlTagRegex     = regexp.MustCompile(`<[^>]*>`)
	controlCharRegex = regexp.MustCompile(`[\x00-\x1F\x7F]`)
)

// sanitizeDisplayName cleans and validates display name input
func sanitizeDisplayName(name string) string {
	name = strings.TrimSpace(name)

	// Limit length to 50 characters
	if utf8.RuneCountInString(name) > 50 {
		runes := []rune(name)
		name = string(runes[:50])
	}

	// Remove HTML tags and control characters
	name = htmlTagRegex.ReplaceAllString(name, "")
	name = controlCharRegex.ReplaceAllString(name, "")

	return strings.TrimSpace(name)
}

// Handler serves the JSON API and the websocket upgrade endpoint.
type Handler struct {
	log      zerolog.Logger
	cfg      *config.Config
	hub      *ws.Hub
	store    *storage.Store
	sessions *session.Manager
	upgrader websocket.Upgrader
}

// NewHandler wires the HTTP surface to its collaborators.
func NewHandler(log zerolog.Logger, cfg *config.Config, hub *ws.Hub, store *storage.Store, sessions *session.Manager) *Handler {
	h := &Handler{
		log:      log,
		cfg:      cfg,
		hub:      hub,
		store:    store,
		sessions: sessions,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.isOriginAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

// isOriginAllowed checks if the origin is in the allowed list
func (h *Handler) isOriginAllowed(origin string) bool {
	// Empty origin is allowed (same-origin requests)
	if origin == "" {
		return true
	}

	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

// Routes builds the router. API and websocket endpoints get separate
// per-IP rate limits.
func (h *Handler) Routes() chi.Router {
	apiLimiter := middleware.NewIPRateLimiter(h.cfg.RateLimitAPI, 2*int(h.cfg.RateLimitAPI))
	wsLimiter := middleware.NewIPRateLimiter(h.cfg.RateLimitWS, 2*int(h.cfg.RateLimitWS))

	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	r.With(middleware.RateLimit(wsLimiter)).Get("/ws", h.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(apiLimiter))
		r.Post("/session", h.handleLogin)
		r.Get("/session", h.handleWhoAmI)
		r.Delete("/session", h.handleLogout)
		r.Get("/history", h.handleHistory)
		r.Get("/roster", h.handleRoster)
		r.Delete("/messages/{id}", h.handleRemoveMessage)
	})

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("write response failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": h.hub.ClientCount(),
	})
}

// handleLogin establishes a session for a display-name claim. Password
// verification belongs to an identity provider, not this service.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	name := sanitizeDisplayName(req.DisplayName)
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "display name required")
		return
	}

	ident := domain.Identity{
		UserID:      uuid.NewString(),
		DisplayName: name,
		Role:        domain.RoleMember,
	}

	if err := h.store.UpsertUser(r.Context(), ident); err != nil {
		h.log.Error().Err(err).Msg("upsert user failed")
		h.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := h.sessions.Issue(w, ident); err != nil {
		h.log.Error().Err(err).Msg("issue session failed")
		h.writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.writeJSON(w, http.StatusOK, ident)
}

func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	ident, err := h.sessions.Resolve(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	h.writeJSON(w, http.StatusOK, ident)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// scopeFromQuery builds a scope from request query parameters. Direct
// scopes are addressed relative to the requesting identity.
func scopeFromQuery(q map[string][]string, me string) (domain.Scope, error) {
	get := func(key string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var scope domain.Scope
	switch domain.ScopeKind(get("kind")) {
	case domain.ScopeKindChannel:
		scope = domain.ChannelScope(get("team"), get("channel"))
	case domain.ScopeKindGroup:
		scope = domain.GroupScope(get("group"))
	case domain.ScopeKindDirect:
		scope = domain.DirectScope(me, get("peer"))
	case domain.ScopeKindGlobal:
		scope = domain.GlobalScope()
	default:
		return domain.Scope{}, errors.New("unknown scope kind")
	}
	return scope, scope.Validate()
}

// handleHistory serves initial sync for one scope, ascending id order.
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ident, err := h.sessions.Resolve(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	scope, err := scopeFromQuery(r.URL.Query(), ident.UserID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := h.cfg.HistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	msgs, err := h.store.History(r.Context(), scope, limit)
	if err != nil {
		h.log.Error().Err(err).Str("scope", scope.Key()).Msg("history query failed")
		h.writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	h.writeJSON(w, http.StatusOK, msgs)
}

// rosterEntry joins a known user with their live presence.
type rosterEntry struct {
	storage.KnownUser
	Presence string `json:"presence"`
}

// handleRoster returns every known user labelled online, away or
// offline, with last-logout times for the offline ones.
func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Resolve(r); err != nil {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	users, err := h.store.Users(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("roster query failed")
		h.writeError(w, http.StatusInternalServerError, "roster unavailable")
		return
	}

	snap := h.hub.PresenceSnapshot()
	online := make(map[string]struct{}, len(snap.Online))
	for _, id := range snap.Online {
		online[id] = struct{}{}
	}
	away := make(map[string]struct{}, len(snap.Away))
	for _, id := range snap.Away {
		away[id] = struct{}{}
	}

	entries := make([]rosterEntry, 0, len(users))
	for _, u := range users {
		e := rosterEntry{KnownUser: u, Presence: "offline"}
		if _, ok := online[u.ID]; ok {
			e.Presence = "online"
		} else if _, ok := away[u.ID]; ok {
			e.Presence = "away"
		}
		entries = append(entries, e)
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// handleRemoveMessage redacts a message and propagates the removal to
// current subscribers of its scope.
func (h *Handler) handleRemoveMessage(w http.ResponseWriter, r *http.Request) {
	ident, err := h.sessions.Resolve(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	msg, err := h.store.Message(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("message_id", id).Msg("load message failed")
		h.writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}

	if msg.SenderID != ident.UserID && ident.Role != domain.RoleAdmin {
		h.writeError(w, http.StatusForbidden, "not your message")
		return
	}

	if err := h.store.MarkRemoved(r.Context(), id); err != nil {
		h.log.Error().Err(err).Int64("message_id", id).Msg("remove message failed")
		h.writeError(w, http.StatusInternalServerError, "remove failed")
		return
	}

	h.hub.PublishRemoval(msg.Scope, msg.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleWebSocket upgrades an authenticated request and hands the
// connection to the hub.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ident, err := h.sessions.Resolve(r)
	if err != nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, ident, int64(h.cfg.MaxMessageSize))
	h.hub.Register(client)

	// Start read/write pumps in goroutines
	go client.WritePump()
	go client.ReadPump()
}
