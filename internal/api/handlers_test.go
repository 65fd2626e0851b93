package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"example.com/gymassistant/internal/auth"
	"example.com/gymassistant/internal/domain"
	memstore "example.com/gymassistant/internal/persistence/memory"
	"example.com/gymassistant/internal/verification"
)

var testTokens = auth.Config{Secret: "handler-secret-0123456789", Issuer: "gymassistant.test", TTL: time.Hour}

type testServer struct {
	store   *memstore.Store
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...Option) testServer {
	t.Helper()
	return newTestServerWithVerifier(t, verification.NewVerifier(verification.NewMemoryStore(), verification.WithDemoMode(true)), opts...)
}

func newTestServerWithVerifier(t *testing.T, verifier *verification.Verifier, opts ...Option) testServer {
	t.Helper()
	store := memstore.NewStore()
	store.PutGym(domain.Gym{ID: "gym-a", Name: "Alpha", Capacity: 4, Subdomain: "alpha"})
	store.PutGym(domain.Gym{ID: "gym-b", Name: "Beta", Capacity: 50, Subdomain: "beta"})
	store.PutIdentity(domain.Identity{ID: "admin-a", PhoneNumber: "+10000000001", Name: "Ada", Role: domain.RoleAdmin, Status: domain.StatusApproved, TenantKey: "gym-a"})
	store.PutIdentity(domain.Identity{ID: "member-a", PhoneNumber: "+10000000002", Name: "Max", Role: domain.RoleMember, Status: domain.StatusApproved, TenantKey: "gym-a"})
	store.PutIdentity(domain.Identity{ID: "admin-b", PhoneNumber: "+10000000003", Name: "Bo", Role: domain.RoleAdmin, Status: domain.StatusApproved, TenantKey: "gym-b"})

	logger := logrus.New()
	logger.SetOutput(testWriter{t})

	service := domain.NewService(store)
	handler := NewHandler(service, verifier, testTokens, append([]Option{WithLogger(logger)}, opts...)...)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mw := auth.NewMiddleware(auth.NewGate(testTokens, store), auth.PublicPaths, logger)
	return testServer{store: store, handler: mw.Wrap(mux)}
}

func (s testServer) do(t *testing.T, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		token, _, err := auth.Issue(subject, testTokens, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestVerificationFlowRegistersPendingMember(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/auth/request-verification", "", map[string]string{"phone_number": "+15550001111"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, verification.DemoCode, decode[VerificationResponse](t, rr).Code)

	rr = srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{
		"phone_number": "+15550001111",
		"code":         verification.DemoCode,
		"gym":          "alpha",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	token := decode[TokenResponse](t, rr)
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, "bearer", token.TokenType)
	require.Equal(t, domain.StatusPending, token.User.Status)
	require.Equal(t, domain.DefaultMemberName, token.User.Name)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	me := httptest.NewRecorder()
	srv.handler.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	require.Equal(t, token.User.ID, decode[IdentityView](t, me).ID)
}

func TestVerifyRejections(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"phone_number": "+15550001111", "code": "999999", "gym": "alpha"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"phone_number": "+15550001111", "code": verification.DemoCode, "gym": "nowhere"})
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"phone_number": "not-a-phone", "code": verification.DemoCode})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/auth/verify", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestVerifyResolvesGymFromHeader(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(map[string]string{"phone_number": "+15550004444", "code": verification.DemoCode})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/verify", bytes.NewReader(body))
	req.Header.Set(SubdomainHeader, "Beta")
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	created, err := srv.store.FindIdentityByPhone(req.Context(), "+15550004444")
	require.NoError(t, err)
	require.Equal(t, domain.TenantKey("gym-b"), created.TenantKey)
}

func TestResolveSubdomainFromHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://irongym.example.com/api/auth/verify", nil)
	require.Equal(t, "irongym", resolveSubdomain(req))

	req = httptest.NewRequest(http.MethodPost, "http://localhost:8080/api/auth/verify", nil)
	require.Empty(t, resolveSubdomain(req))

	req = httptest.NewRequest(http.MethodPost, "http://10.0.0.1:8080/api/auth/verify", nil)
	require.Empty(t, resolveSubdomain(req))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/api/users/me", "/api/gym", "/api/occupancy", "/api/entries", "/api/chat"} {
		rr := srv.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}

	rr := srv.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestEntryLifecycleAndOccupancy(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/entries", "member-a", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	entry := decode[EntryView](t, rr)
	require.Equal(t, "member-a", entry.UserID)
	require.Nil(t, entry.ExitTime)

	for _, subject := range []string{"member-a", "admin-a"} {
		rr = srv.do(t, http.MethodPost, "/api/entries", subject, nil)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr = srv.do(t, http.MethodGet, "/api/occupancy", "member-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	occupancy := decode[OccupancyView](t, rr)
	require.Equal(t, 3, occupancy.Current)
	require.Equal(t, 4, occupancy.Capacity)
	require.InDelta(t, 75.0, occupancy.Percentage, 0.0001)
	require.Equal(t, domain.OccupancyRed, occupancy.Status)

	rr = srv.do(t, http.MethodGet, "/api/occupancy", "admin-b", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, decode[OccupancyView](t, rr).Current)

	rr = srv.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/exit", "admin-b", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	exit := entry.EntryTime.Add(30 * time.Minute)
	rr = srv.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/exit", "member-a", map[string]time.Time{"exit_time": exit})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	closed := decode[EntryView](t, rr)
	require.NotNil(t, closed.Duration)
	require.Equal(t, 30, *closed.Duration)

	rr = srv.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/exit", "member-a", nil)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/entries", "member-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListEntriesResponse](t, rr).Items, 2)

	rr = srv.do(t, http.MethodGet, "/api/entries?scope=tenant", "member-a", nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/entries?scope=tenant&open=true", "admin-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[ListEntriesResponse](t, rr).Items, 2)
}

func TestAdminApproval(t *testing.T) {
	srv := newTestServer(t)
	srv.store.PutIdentity(domain.Identity{ID: "pending-a", PhoneNumber: "+10000000009", Name: domain.DefaultMemberName, Role: domain.RoleMember, Status: domain.StatusPending, TenantKey: "gym-a", CreatedAt: time.Now()})

	rr := srv.do(t, http.MethodGet, "/api/admin/pending-users", "member-a", nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/admin/pending-users", "admin-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pending := decode[[]IdentityView](t, rr)
	require.Len(t, pending, 1)
	require.Equal(t, "pending-a", pending[0].ID)

	rr = srv.do(t, http.MethodPost, "/api/admin/approve-user/pending-a", "admin-b", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/admin/approve-user/pending-a", "admin-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "User approved", decode[map[string]string](t, rr)["message"])

	rr = srv.do(t, http.MethodPost, "/api/admin/reject-user/pending-a", "admin-a", nil)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(t, http.MethodPost, "/api/admin/approve-user/unknown", "admin-a", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGymBranding(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodGet, "/api/gym", "member-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	gym := decode[GymView](t, rr)
	require.Equal(t, "Alpha", gym.Name)
	require.Equal(t, "alpha", gym.Subdomain)
}

func TestContentEndpoints(t *testing.T) {
	srv := newTestServer(t)

	program := map[string]any{
		"title":     "Push day",
		"date":      "2025-03-04T00:00:00Z",
		"exercises": []map[string]any{{"name": "bench", "sets": 5}},
	}
	rr := srv.do(t, http.MethodPost, "/api/training-programs", "member-a", program)
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = srv.do(t, http.MethodPost, "/api/training-programs", "admin-a", program)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.JSONEq(t, `[{"name":"bench","sets":5}]`, decode[ProgramView](t, rr).Exercises)

	rr = srv.do(t, http.MethodGet, "/api/training-programs", "member-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[[]ProgramView](t, rr), 1)
	rr = srv.do(t, http.MethodGet, "/api/training-programs", "admin-b", nil)
	require.Empty(t, decode[[]ProgramView](t, rr))

	rr = srv.do(t, http.MethodPost, "/api/supplements", "admin-a", map[string]any{"name": "Whey", "price": -5})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = srv.do(t, http.MethodPost, "/api/supplements", "admin-a", map[string]any{"name": "Whey", "price": 2990})
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = srv.do(t, http.MethodGet, "/api/supplements", "member-a", nil)
	require.Len(t, decode[[]SupplementView](t, rr), 1)
}

func TestChatPaging(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/chat", "member-a", map[string]string{"message": "hi", "type": "broadcast"})
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = srv.do(t, http.MethodPost, "/api/chat", "member-a", map[string]string{"message": "hi", "type": "shout"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	for i := 0; i < 3; i++ {
		rr = srv.do(t, http.MethodPost, "/api/chat", "member-a", map[string]string{"message": "hi"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = srv.do(t, http.MethodGet, "/api/chat?limit=2", "admin-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[ListMessagesResponse](t, rr)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	require.Equal(t, "Max", page.Items[0].SenderName)

	rr = srv.do(t, http.MethodGet, "/api/chat?limit=2&cursor="+page.NextCursor, "admin-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rest := decode[ListMessagesResponse](t, rr)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.NextCursor)

	rr = srv.do(t, http.MethodGet, "/api/chat?cursor=%25%25", "admin-a", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/chat", "admin-b", nil)
	require.Empty(t, decode[ListMessagesResponse](t, rr).Items)
}

func TestVerificationThrottle(t *testing.T) {
	throttle, err := NewRateLimiter(memory.NewStore(), "2-M")
	require.NoError(t, err)
	srv := newTestServer(t, WithVerificationThrottle(throttle))

	for i := 0; i < 2; i++ {
		rr := srv.do(t, http.MethodPost, "/api/auth/request-verification", "", map[string]string{"phone_number": "+15550001111"})
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := srv.do(t, http.MethodPost, "/api/auth/request-verification", "", map[string]string{"phone_number": "+15550001111"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}

func TestVerificationAcceptsNationalPhoneFormat(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/auth/request-verification", "", map[string]string{"phone_number": "09121234567"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{
		"phone_number": "0912 123-4567",
		"code":         verification.DemoCode,
		"gym":          "alpha",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "09121234567", decode[TokenResponse](t, rr).User.PhoneNumber)

	for _, phone := range []string{"+989121234567", "00989121234567"} {
		rr = srv.do(t, http.MethodPost, "/api/auth/request-verification", "", map[string]string{"phone_number": phone})
		require.Equal(t, http.StatusOK, rr.Code, phone)
	}
	for _, phone := range []string{"12345", "0912abc4567", "++989121234567"} {
		rr = srv.do(t, http.MethodPost, "/api/auth/request-verification", "", map[string]string{"phone_number": phone})
		require.Equal(t, http.StatusBadRequest, rr.Code, phone)
	}
}

func TestVerifyKeepsCodeWhenRegistrationFails(t *testing.T) {
	ctx := context.Background()
	verifier := verification.NewVerifier(verification.NewMemoryStore())
	srv := newTestServerWithVerifier(t, verifier)

	code, err := verifier.Issue(ctx, "09125550000")
	require.NoError(t, err)

	rr := srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"phone_number": "09125550000", "code": code, "gym": "nowhere"})
	require.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"phone_number": "09125550000", "code": code, "gym": "alpha"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(t, http.MethodPost, "/api/auth/verify", "", map[string]string{"phone_number": "09125550000", "code": code, "gym": "alpha"})
	require.Equal(t, http.StatusBadRequest, rr.Code, "a used code cannot sign in twice")
}

func TestPathRoutesRejectWrongMethodWithJSON(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/api/entries/some-entry/exit",
		"/api/admin/approve-user/member-a",
		"/api/admin/reject-user/member-a",
	} {
		rr := srv.do(t, http.MethodGet, path, "admin-a", nil)
		require.Equal(t, http.StatusMethodNotAllowed, rr.Code, path)
		body := decode[map[string]string](t, rr)
		require.Equal(t, "method_not_allowed", body["type"], path)
	}
}

func TestOccupancyPublishesTenantGauge(t *testing.T) {
	srv := newTestServer(t)

	for _, subject := range []string{"member-a", "admin-a"} {
		rr := srv.do(t, http.MethodPost, "/api/entries", subject, nil)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	rr := srv.do(t, http.MethodGet, "/api/occupancy", "member-a", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	require.Equal(t, 2.0, gaugeValue(t, "gym_service_occupancy_current_visitors", "gym-a"))
	require.Equal(t, 50.0, gaugeValue(t, "gym_service_occupancy_percentage", "gym-a"))
}

func gaugeValue(t *testing.T, name, tenant string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "tenant" && label.GetValue() == tenant {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{tenant=%q} not found", name, tenant)
	return 0
}
