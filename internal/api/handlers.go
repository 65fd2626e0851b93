// Package api exposes HTTP handlers for the gym service.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/gymassistant/internal/auth"
	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/observability"
	"example.com/gymassistant/internal/persistence"
	"example.com/gymassistant/internal/verification"
)

// SubdomainHeader lets clients name their gym when the Host header cannot.
const SubdomainHeader = "X-Gym-Subdomain"

const (
	defaultChatLimit = 50
	maxChatLimit     = 200
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	verifier *verification.Verifier
	tokens   auth.Config
	logger   logrus.FieldLogger
	throttle func(http.Handler) http.Handler
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for unexpected failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithVerificationThrottle wraps the verification endpoints, typically with a rate limiter.
func WithVerificationThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.throttle = mw
	}
}

// WithClock overrides the time source used to stamp tokens.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, verifier *verification.Verifier, tokens auth.Config, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		verifier: verifier,
		tokens:   tokens,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/api/auth/request-verification", h.throttled(http.HandlerFunc(h.requestVerification)))
	mux.Handle("/api/auth/verify", h.throttled(http.HandlerFunc(h.verify)))
	mux.HandleFunc("/api/users/me", h.me)
	mux.HandleFunc("/api/gym", h.gym)
	mux.HandleFunc("/api/training-programs", h.programs)
	mux.HandleFunc("/api/chat", h.chat)
	mux.HandleFunc("/api/supplements", h.supplements)
	mux.HandleFunc("/api/entries", h.entries)
	mux.HandleFunc("/api/entries/{id}/exit", h.recordExit)
	mux.HandleFunc("/api/occupancy", h.occupancy)
	mux.HandleFunc("/api/admin/pending-users", h.pendingUsers)
	mux.HandleFunc("/api/admin/approve-user/{id}", h.approveUser)
	mux.HandleFunc("/api/admin/reject-user/{id}", h.rejectUser)
	mux.HandleFunc("/healthz", healthz)
}

func (h *Handler) throttled(next http.Handler) http.Handler {
	if h.throttle == nil {
		return next
	}
	return h.throttle(next)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
}

// actor returns the identity resolved by the auth middleware.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*domain.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing bearer token")
		return nil, false
	}
	return identity, true
}

func (h *Handler) requestVerification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req VerificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if req.PhoneNumber == "" {
		req.PhoneNumber = r.URL.Query().Get("phone_number")
	}
	req.PhoneNumber = normalizePhone(req.PhoneNumber)
	if err := req.Validate(); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	code, err := h.verifier.Issue(r.Context(), req.PhoneNumber)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	resp := VerificationResponse{Message: "Verification code sent"}
	if h.verifier.DemoMode() {
		resp.Code = code
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req VerifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	query := r.URL.Query()
	if req.PhoneNumber == "" {
		req.PhoneNumber = query.Get("phone_number")
	}
	if req.Code == "" {
		req.Code = query.Get("code")
	}
	if req.Gym == "" {
		req.Gym = resolveSubdomain(r)
	}
	req.PhoneNumber = normalizePhone(req.PhoneNumber)
	if err := req.Validate(); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if err := h.verifier.Match(r.Context(), req.PhoneNumber, req.Code); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	identity, created, err := h.service.Register(r.Context(), req.PhoneNumber, req.Gym)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if err := h.verifier.Consume(r.Context(), req.PhoneNumber); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	if created {
		h.logger.WithFields(logrus.Fields{
			"identity_id": identity.ID,
			"tenant_id":   identity.TenantKey,
		}).Info("registered pending identity")
	}

	token, expiresAt, err := auth.Issue(identity.ID, h.tokens, h.now())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		User:        toIdentityView(*identity),
	})
}

// resolveSubdomain reads the gym routing key from the explicit header, falling back to the
// first label of a Host with at least three labels (irongym.example.com).
func resolveSubdomain(r *http.Request) string {
	if value := strings.TrimSpace(r.Header.Get(SubdomainHeader)); value != "" {
		return strings.ToLower(value)
	}
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return ""
	}
	return strings.ToLower(labels[0])
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toIdentityView(*actor))
}

func (h *Handler) gym(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	gym, err := h.service.Gym(r.Context(), actor)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toGymView(*gym))
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordEntry(w, r)
	case http.MethodGet:
		h.listEntries(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) recordEntry(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req RecordEntryRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	var entryTime time.Time
	if req.EntryTime != nil {
		entryTime = *req.EntryTime
	}

	entry, err := h.service.RecordEntry(r.Context(), actor, entryTime)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryView(*entry))
}

func (h *Handler) recordExit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req RecordExitRequest
	if err := decodeBody(r, &req); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	var exitTime time.Time
	if req.ExitTime != nil {
		exitTime = *req.ExitTime
	}

	entry, err := h.service.RecordExit(r.Context(), actor, r.PathValue("id"), exitTime)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryView(*entry))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := domain.EntryFilter{
		IdentityID: strings.TrimSpace(query.Get("user_id")),
		OpenOnly:   query.Get("open") == "true",
	}
	wholeTenant := query.Get("scope") == "tenant"

	entries, err := h.service.ListEntries(r.Context(), actor, filter, wholeTenant)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	items := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toEntryView(entry))
	}
	writeJSON(w, http.StatusOK, ListEntriesResponse{Items: items})
}

func (h *Handler) occupancy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	occupancy, err := h.service.Occupancy(r.Context(), actor)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	observability.RecordOccupancy(string(actor.TenantKey), occupancy.Current, occupancy.Percentage)
	writeJSON(w, http.StatusOK, toOccupancyView(occupancy))
}

func (h *Handler) pendingUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	identities, err := h.service.ListPendingIdentities(r.Context(), actor)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	views := make([]IdentityView, 0, len(identities))
	for _, identity := range identities {
		views = append(views, toIdentityView(identity))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) approveUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if _, err := h.service.ApproveIdentity(r.Context(), actor, r.PathValue("id")); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User approved"})
}

func (h *Handler) rejectUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if _, err := h.service.RejectIdentity(r.Context(), actor, r.PathValue("id")); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User rejected"})
}

func (h *Handler) programs(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		programs, err := h.service.ListPrograms(r.Context(), actor)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		views := make([]ProgramView, 0, len(programs))
		for _, program := range programs {
			views = append(views, toProgramView(program))
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req CreateProgramRequest
		if err := decodeBody(r, &req); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		program, err := h.service.CreateProgram(r.Context(), actor, domain.TrainingProgram{
			Title:       req.Title,
			Description: req.Description,
			Date:        req.Date,
			Exercises:   req.exercises(),
			PDFURL:      req.PDFURL,
			ImageURL:    req.ImageURL,
		})
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toProgramView(*program))
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		limit := defaultChatLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = min(parsed, maxChatLimit)
			}
		}
		cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		messages, next, err := h.service.ListMessages(r.Context(), actor, cursor, limit)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		items := make([]MessageView, 0, len(messages))
		for _, message := range messages {
			items = append(items, toMessageView(message))
		}
		writeJSON(w, http.StatusOK, ListMessagesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
	case http.MethodPost:
		var req SendMessageRequest
		if err := decodeBody(r, &req); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		kind, err := domain.ParseMessageType(req.Type)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		message, err := h.service.SendMessage(r.Context(), actor, req.Message, kind)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMessageView(*message))
	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) supplements(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		supplements, err := h.service.ListSupplements(r.Context(), actor)
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		views := make([]SupplementView, 0, len(supplements))
		for _, supplement := range supplements {
			views = append(views, toSupplementView(supplement))
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req CreateSupplementRequest
		if err := decodeBody(r, &req); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		if err := req.Validate(); err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		supplement, err := h.service.CreateSupplement(r.Context(), actor, domain.Supplement{
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			ImageURL:    req.ImageURL,
		})
		if err != nil {
			writeDomainError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSupplementView(*supplement))
	default:
		methodNotAllowed(w)
	}
}
