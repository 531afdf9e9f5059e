package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"growth-chat/internal/domain"
	"growth-chat/internal/llm"
	"growth-chat/internal/repository/memory"
	"growth-chat/internal/service"
)

type chatServer struct {
	router *gin.Engine
	store  *memory.Store
	llm    *llm.MockClient
	token  string
	other  string
}

func newChatServer(t *testing.T, chatLimiter service.RateLimiter) *chatServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	store := memory.NewStore()
	if _, err := store.Users().Create(ctx, domain.User{Email: "alice@example.com", Username: "alice"}); err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := store.Users().Create(ctx, domain.User{Email: "bob@example.com", Username: "bob"}); err != nil {
		t.Fatalf("create bob: %v", err)
	}
	store.PutSection(domain.Section{ID: 7, CourseID: 1, Title: "Intro", Content: "Growth loops compound."})

	mock := &llm.MockClient{Response: "Hi there"}
	jwtSvc := testJWT(nil)
	chatSvc := service.NewChatService(service.ChatServiceDeps{
		Users:        service.NewRepositoryUserDirectory(store.Users()),
		Sessions:     store.Sessions(),
		Messages:     store.Messages(),
		Sections:     store.Sections(),
		LLM:          mock,
		Logger:       logger,
		DefaultModel: "gemini-2.5-flash",
	})
	userSvc := service.NewUserService(logger, store.Users(), nil)

	router := NewRouter(logger, RouterConfig{APIRoot: "/api", CORSOrigins: []string{"http://localhost:5173"}},
		jwtSvc,
		NewUserHandler(logger, userSvc, jwtSvc, nil),
		NewChatHandler(logger, chatSvc, chatLimiter),
		NewHealthHandler(logger, nil),
	)

	token, err := jwtSvc.Issue("alice@example.com")
	if err != nil {
		t.Fatalf("issue alice: %v", err)
	}
	other, err := jwtSvc.Issue("bob@example.com")
	if err != nil {
		t.Fatalf("issue bob: %v", err)
	}
	return &chatServer{router: router, store: store, llm: mock, token: token, other: other}
}

func (s *chatServer) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestChatHandler_RequiresAuthentication(t *testing.T) {
	s := newChatServer(t, nil)

	rec := postJSON(s.router, "/api/chat", map[string]string{"message": "hi"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	body := decodeError(t, rec)
	if body.Status != 401 || body.Error != "Unauthorized" || body.Message != unauthorizedMessage {
		t.Fatalf("unexpected body %+v", body)
	}
	if len(s.llm.Calls()) != 0 {
		t.Fatalf("expected no model calls")
	}
}

func TestChatHandler_ChatFlow(t *testing.T) {
	s := newChatServer(t, nil)

	rec := postJSON(s.router, "/api/chat", map[string]string{"message": "How do I grow?"}, s.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
	var res service.ChatResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Reply != "Hi there" || !res.IsNew || res.SessionID == 0 || res.Title != "How do I grow?" {
		t.Fatalf("unexpected result %+v", res)
	}

	rec = postJSON(s.router, "/api/chat", map[string]any{"message": "And then?", "chatSessionId": res.SessionID}, s.token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on follow-up, got %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/api/chat/sessions", s.token)
	var sessions []service.SessionSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil || len(sessions) != 1 {
		t.Fatalf("expected one session, got %s (%v)", rec.Body.String(), err)
	}

	rec = s.do(http.MethodGet, "/api/chat/sessions/"+itoa(res.SessionID)+"/messages", s.token)
	var messages []domain.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &messages); err != nil || len(messages) != 4 {
		t.Fatalf("expected four messages, got %s (%v)", rec.Body.String(), err)
	}
	if messages[0].Role != domain.RoleUser || messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected order %+v", messages)
	}

	if rec := s.do(http.MethodGet, "/api/chat/sessions/"+itoa(res.SessionID)+"/messages", s.other); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign session, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/chat/sessions/"+itoa(res.SessionID), s.other); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting foreign session, got %d", rec.Code)
	}
	if rec := s.do(http.MethodDelete, "/api/chat/sessions/"+itoa(res.SessionID), s.token); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/chat/sessions/"+itoa(res.SessionID)+"/messages", s.token); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestChatHandler_ValidationErrors(t *testing.T) {
	s := newChatServer(t, nil)

	if rec := postJSON(s.router, "/api/chat", map[string]string{"message": "   "}, s.token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank message, got %d", rec.Code)
	}
	if rec := postJSON(s.router, "/api/chat", map[string]any{"message": "hi", "chatSessionId": 999}, s.token); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown session, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/chat/sessions/abc/messages", s.token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non numeric id, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/api/chat/sessions/0/messages", s.token); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero id, got %d", rec.Code)
	}
	if len(s.llm.Calls()) != 0 {
		t.Fatalf("expected no model calls, got %d", len(s.llm.Calls()))
	}
}

func TestChatHandler_GatewayErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "timeout", err: llm.ErrTimeout, want: http.StatusGatewayTimeout},
		{name: "upstream", err: &llm.UpstreamError{Status: 503, Body: "overloaded"}, want: http.StatusBadGateway},
		{name: "transport", err: &llm.TransportError{Op: "do request", Err: errors.New("refused")}, want: http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newChatServer(t, nil)
			s.llm.Err = tc.err

			rec := postJSON(s.router, "/api/chat", map[string]string{"message": "hi"}, s.token)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
			body := decodeError(t, rec)
			if body.Status != tc.want || body.Error != http.StatusText(tc.want) {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

func TestChatHandler_RateLimited(t *testing.T) {
	s := newChatServer(t, service.NewMemoryRateLimiter(time.Minute, 1))

	if rec := postJSON(s.router, "/api/chat", map[string]string{"message": "hi"}, s.token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := postJSON(s.router, "/api/chat", map[string]string{"message": "hi"}, s.token); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec := postJSON(s.router, "/api/chat", map[string]string{"message": "hi"}, s.other); rec.Code != http.StatusOK {
		t.Fatalf("expected other user to be unaffected, got %d", rec.Code)
	}
}

func TestChatHandler_SectionChat(t *testing.T) {
	s := newChatServer(t, nil)

	rec := s.do(http.MethodGet, "/api/sections/7/chat", s.token)
	var empty service.SectionChat
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil || empty.SessionID != nil || len(empty.Messages) != 0 {
		t.Fatalf("expected empty section chat, got %s (%v)", rec.Body.String(), err)
	}

	first := postJSON(s.router, "/api/sections/7/chat", map[string]string{"message": "What is a loop?"}, s.token)
	second := postJSON(s.router, "/api/sections/7/chat", map[string]string{"message": "Example?"}, s.token)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("expected 200s, got %d and %d", first.Code, second.Code)
	}
	var a, b service.ChatResult
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.SessionID != b.SessionID || !a.IsNew || b.IsNew {
		t.Fatalf("expected one section session, got %+v then %+v", a, b)
	}

	rec = s.do(http.MethodGet, "/api/sections/7/chat", s.token)
	var chat service.SectionChat
	if err := json.Unmarshal(rec.Body.Bytes(), &chat); err != nil || chat.SessionID == nil || len(chat.Messages) != 4 {
		t.Fatalf("unexpected section chat %s (%v)", rec.Body.String(), err)
	}
	if chat.Messages[0].Content != "What is a loop?" {
		t.Fatalf("expected raw question stored, got %q", chat.Messages[0].Content)
	}

	if rec := postJSON(s.router, "/api/sections/99/chat", map[string]string{"message": "hi"}, s.token); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown section, got %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newChatServer(t, nil)
	for _, path := range []string{"/health", "/health/db"} {
		if rec := s.do(http.MethodGet, path, ""); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	failing := NewHealthHandler(zap.NewNop(), func(context.Context) error { return errors.New("down") })
	r := gin.New()
	r.GET("/health/db", failing.DB)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newChatServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
