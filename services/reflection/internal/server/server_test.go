package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"soulreflect/pkg/generator"
	"soulreflect/pkg/store"
	"soulreflect/services/reflection/internal/app"
	"soulreflect/services/reflection/internal/sessions"
)

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	core, err := app.New(app.Config{
		Profiles:    store.NewMemoryStore(),
		Generator:   generator.NewFake(),
		Sessions:    sessions.NewMemoryStore(time.Hour),
		CallTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	tokens, err := sessions.NewTokenIssuer("test-secret", time.Hour, sessions.TokenOptions{})
	if err != nil {
		t.Fatalf("new token issuer: %v", err)
	}
	cfg := Config{App: core, Tokens: tokens}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session expected 201, got %d", resp.StatusCode)
	}
	var out struct {
		Token   string      `json:"token"`
		Session sessionView `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if out.Token == "" {
		t.Fatalf("expected session token")
	}
	if out.Session.View != "language_selector" {
		t.Fatalf("new session view = %q, want language_selector", out.Session.View)
	}
	return &client{t: t, base: ts.URL, token: out.Token}
}

func (c *client) do(method, path, body string) (*http.Response, sessionView) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var view sessionView
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
			c.t.Fatalf("decode view: %v", err)
		}
	}
	return resp, view
}

func (c *client) intent(path, body string) sessionView {
	c.t.Helper()
	resp, view := c.do(http.MethodPost, "/api/session/"+path, body)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("POST %s expected 200, got %d", path, resp.StatusCode)
	}
	return view
}

func hasAction(v sessionView, action string) bool {
	for _, a := range v.Actions {
		if a == action {
			return true
		}
	}
	return false
}

func TestReflectionFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)

	v := c.intent("language", `{"language":"de-AT"}`)
	if v.View != "auth_choice" || v.Language != "de" {
		t.Fatalf("after language: view=%q language=%q", v.View, v.Language)
	}
	v = c.intent("auth/method", `{"method":"PASSWORD"}`)
	if v.View != "login_form" {
		t.Fatalf("after method: view=%q", v.View)
	}
	v = c.intent("auth/signup-form", "")
	if v.View != "sign_up_form" {
		t.Fatalf("after signup-form: view=%q", v.View)
	}
	v = c.intent("auth/signup", `{"name":"Mira","email":"mira@example.com","password":"s3cret"}`)
	if v.View != "progress_dashboard" || v.User == nil {
		t.Fatalf("after signup: view=%q error=%q", v.View, v.Error)
	}
	if v.Dashboard == nil || v.Dashboard.ReflectionCount != 0 {
		t.Fatalf("expected empty dashboard summary, got %+v", v.Dashboard)
	}
	if hasAction(v, "diagnostic/full") {
		t.Fatalf("full diagnostic offered without history: %v", v.Actions)
	}

	c.intent("reflection/begin", "")
	v = c.intent("reflection/start", `{"situation":"I snapped at a friend"}`)
	if v.View != "question_flow" || v.Question == nil {
		t.Fatalf("after start: view=%q question=%v error=%q", v.View, v.Question, v.Error)
	}
	if v.Question.Index != 0 || v.Question.Total != generator.QuestionsPerBatch {
		t.Fatalf("question position = %d/%d", v.Question.Index, v.Question.Total)
	}
	for i := 0; i < generator.QuestionsPerBatch; i++ {
		if i%2 == 0 {
			v = c.intent("reflection/answer", `{"optionIndex":1}`)
		} else {
			v = c.intent("reflection/answer", `{"option":"option `+string(rune('1'+i))+`.2"}`)
		}
	}
	if v.View != "diagnostic_result" || v.Result == nil {
		t.Fatalf("after last answer: view=%q error=%q", v.View, v.Error)
	}
	if len(v.Transcript) != generator.QuestionsPerBatch {
		t.Fatalf("transcript length = %d", len(v.Transcript))
	}
	if v.User == nil || len(v.User.History) != 1 {
		t.Fatalf("expected one stored result")
	}

	v = c.intent("back", "")
	if v.View != "progress_dashboard" || v.Dashboard == nil || v.Dashboard.ReflectionCount != 1 {
		t.Fatalf("after back: view=%q dashboard=%+v", v.View, v.Dashboard)
	}
	if !hasAction(v, "history/view") {
		t.Fatalf("history not offered: %v", v.Actions)
	}
	resultID := v.User.History[0].ID
	v = c.intent("history/view", `{"resultId":"`+resultID+`"}`)
	if v.View != "diagnostic_result" || v.Situation != "I snapped at a friend" {
		t.Fatalf("history view: view=%q situation=%q", v.View, v.Situation)
	}

	resp, got := c.do(http.MethodGet, "/api/session", "")
	if resp.StatusCode != http.StatusOK || got.View != "diagnostic_result" {
		t.Fatalf("GET session: status=%d view=%q", resp.StatusCode, got.View)
	}
}

func TestValidationErrorsStayInView(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	c.intent("language", `{"language":"en"}`)
	c.intent("auth/method", `{"method":"PASSWORD"}`)
	v := c.intent("auth/login", `{"email":"nobody@example.com","password":"x"}`)
	if v.View != "login_form" {
		t.Fatalf("failed login moved to %q", v.View)
	}
	if v.Error != app.MsgProfileNotFound {
		t.Fatalf("error = %q, want %q", v.Error, app.MsgProfileNotFound)
	}
}

func TestSessionRequiresToken(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/session")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token expected 401, got %d", resp.StatusCode)
	}

	c := &client{t: t, base: ts.URL, token: "not-a-jwt"}
	resp, _ = c.do(http.MethodPost, "/api/session/back", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token expected 401, got %d", resp.StatusCode)
	}
}

func TestDeletedSessionIsUnauthorized(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	resp, _ := c.do(http.MethodDelete, "/api/session", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete expected 204, got %d", resp.StatusCode)
	}
	resp, _ = c.do(http.MethodGet, "/api/session", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deleted session expected 401, got %d", resp.StatusCode)
	}
}

func TestIntentNotAllowedIsConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	resp, _ := c.do(http.MethodPost, "/api/session/reflection/start", `{"situation":"x"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("start on language selector expected 409, got %d", resp.StatusCode)
	}
	resp, _ = c.do(http.MethodPost, "/api/session/back", "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("back from root expected 409, got %d", resp.StatusCode)
	}
}

func TestMalformedJSON(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)
	resp, _ := c.do(http.MethodPost, "/api/session/language", `{"language":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body expected 400, got %d", resp.StatusCode)
	}
	resp, _ = c.do(http.MethodGet, "/api/session/language", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET intent expected 405, got %d", resp.StatusCode)
	}
}

func TestAuthRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ts := newTestServer(t, func(cfg *Config) {
		cfg.Redis = rdb
		cfg.AuthRateLimitPerMinute = 1
	})
	c := newClient(t, ts)
	c.intent("language", `{"language":"en"}`)
	c.intent("auth/method", `{"method":"PASSWORD"}`)

	body := `{"email":"u@example.com","password":"pass"}`
	resp, _ := c.do(http.MethodPost, "/api/session/auth/login", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first login expected 200, got %d", resp.StatusCode)
	}
	resp, _ = c.do(http.MethodPost, "/api/session/auth/login", body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second login expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestLanguages(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/api/languages")
	if err != nil {
		t.Fatalf("get languages: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Items   []languageItem `json:"items"`
		Default string         `json:"default"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode languages: %v", err)
	}
	if out.Default != "en" || len(out.Items) == 0 {
		t.Fatalf("unexpected languages response: %+v", out)
	}
	for _, item := range out.Items {
		if item.Code == "de" && !strings.EqualFold(item.Name, "Deutsch") {
			t.Fatalf("de native name = %q", item.Name)
		}
	}
}

func TestSessionRoutesCarryRequestIDAndNoStore(t *testing.T) {
	ts := newTestServer(t, nil)
	c := newClient(t, ts)

	send := func(requestID string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/session/language", strings.NewReader(`{"language":"en"}`))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("X-Request-Id", requestID)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("select language: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	resp := send("web-1234")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-Id"); got != "web-1234" {
		t.Fatalf("expected client request id to be echoed, got %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-store" {
		t.Fatalf("session responses must not be cached, Cache-Control=%q", got)
	}

	resp = send("bad id with spaces")
	if got := resp.Header.Get("X-Request-Id"); got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected a minted request id, got %q", got)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("language is chosen once, expected 409, got %d", resp.StatusCode)
	}
}

func TestActionsFollowPhase(t *testing.T) {
	loading := app.Session{Phase: app.PhaseChoice, Loading: true}
	if hasAction(sessionView{Actions: actionsFor(loading)}, "reflection/start") {
		t.Fatalf("start offered while loading")
	}
	root := app.Session{Phase: app.PhaseLanguageSelect}
	got := actionsFor(root)
	if len(got) != 1 || got[0] != "language" {
		t.Fatalf("language selector actions = %v", got)
	}
}
