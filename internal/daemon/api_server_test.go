package daemon

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vinscan/internal/api"
	"vinscan/internal/config"
	"vinscan/internal/history"
	"vinscan/internal/observation"
	"vinscan/internal/session"
	"vinscan/internal/testsupport"
)

const vinHonda = "1HGCM82633A004352"

type testServer struct {
	daemon  *Daemon
	handler http.Handler
	store   *history.Store
}

func newTestServer(t *testing.T, maxActive int, opts ...testsupport.ConfigOption) *testServer {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)

	var store *history.Store
	if cfg.History.Enabled {
		store = testsupport.MustOpenStore(t, cfg)
	}
	manager := newManager(t, cfg, store, maxActive)
	d, err := New(cfg, manager, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testServer{daemon: d, handler: d.api.handler, store: store}
}

func newManager(t *testing.T, cfg *config.Config, store *history.Store, maxActive int) *session.Manager {
	t.Helper()
	defaults, err := session.OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if store != nil {
		defaults.Sink = store
	}
	return session.NewManager(session.ManagerOptions{Defaults: defaults, MaxActive: maxActive})
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) startSession(t *testing.T, req api.StartSessionRequest) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/sessions", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("start session: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.StartSessionResponse
	decode(t, w, &resp)
	if resp.ID == "" {
		t.Fatal("expected session id")
	}
	return resp.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
}

func barcodeObservation(text string) observation.Raw {
	return observation.Raw{
		Text:   text,
		Source: observation.SourceBarcode,
		Hint:   observation.SymbologyCode128,
	}
}

func TestAPIServerSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, 0)
	id := ts.startSession(t, api.StartSessionRequest{Capacity: 1})

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/observations", barcodeObservation(vinHonda))
	if w.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var submit api.SubmitResponse
	decode(t, w, &submit)
	if submit.Decision == nil || submit.Decision.VIN != vinHonda {
		t.Fatalf("expected decision for %s, got %+v", vinHonda, submit.Decision)
	}
	if submit.State != session.StateTerminated {
		t.Fatalf("expected terminated state, got %q", submit.State)
	}

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("describe: expected 200, got %d", w.Code)
	}
	var info session.Info
	decode(t, w, &info)
	if info.Outcome != session.OutcomeDecided || info.Capacity != 1 || info.Buffered != 1 {
		t.Fatalf("unexpected session info %+v", info)
	}

	w = ts.do(t, http.MethodPost, "/api/sessions/"+id+"/observations", barcodeObservation(vinHonda))
	if w.Code != http.StatusConflict {
		t.Fatalf("submit after decision: expected 409, got %d", w.Code)
	}
	w = ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel after decision: expected 409, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/decisions?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("decisions: expected 200, got %d", w.Code)
	}
	var list api.DecisionListResponse
	decode(t, w, &list)
	if list.Total != 1 || len(list.Decisions) != 1 {
		t.Fatalf("expected one recorded decision, got %+v", list)
	}
	if list.Decisions[0].SessionID != id || list.Decisions[0].VIN != vinHonda {
		t.Fatalf("unexpected entry %+v", list.Decisions[0])
	}
}

func TestAPIServerCancel(t *testing.T) {
	ts := newTestServer(t, 0)
	id := ts.startSession(t, api.StartSessionRequest{})

	w := ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel: expected 204, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/api/sessions/"+id, nil)
	var info session.Info
	decode(t, w, &info)
	if info.State != session.StateTerminated || info.Outcome != session.OutcomeCancelled {
		t.Fatalf("expected cancelled session, got %+v", info)
	}
	if info.Capacity != 15 {
		t.Fatalf("expected configured default capacity, got %d", info.Capacity)
	}
}

func TestAPIServerUnknownSession(t *testing.T) {
	ts := newTestServer(t, 0)
	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/sessions/missing", nil},
		{http.MethodDelete, "/api/sessions/missing", nil},
		{http.MethodPost, "/api/sessions/missing/observations", barcodeObservation(vinHonda)},
	}
	for _, tc := range cases {
		w := ts.do(t, tc.method, tc.path, tc.body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestAPIServerRejectsInvalidOverrides(t *testing.T) {
	ts := newTestServer(t, 0)
	cases := []struct {
		name string
		body any
	}{
		{"negative capacity", api.StartSessionRequest{Capacity: -1}},
		{"unknown policy", api.StartSessionRequest{Policy: "fuzzy"}},
		{"threshold above one", api.StartSessionRequest{MinConfidence: 1.5}},
		{"malformed body", "not an object"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/api/sessions", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%s)", w.Code, w.Body.String())
			}
			var resp api.ErrorResponse
			decode(t, w, &resp)
			if resp.Error == "" {
				t.Fatal("expected error message")
			}
		})
	}
}

func TestAPIServerEnforcesActiveLimit(t *testing.T) {
	ts := newTestServer(t, 1)
	ts.startSession(t, api.StartSessionRequest{})

	w := ts.do(t, http.MethodPost, "/api/sessions", api.StartSessionRequest{})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestAPIServerReportsZoomHint(t *testing.T) {
	ts := newTestServer(t, 0)
	id := ts.startSession(t, api.StartSessionRequest{})

	garbage := observation.Raw{Text: "NOTHING HERE", Source: observation.SourceOpticalText}
	var resp api.SubmitResponse
	for range 6 {
		w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/observations", garbage)
		if w.Code != http.StatusOK {
			t.Fatalf("submit: expected 200, got %d", w.Code)
		}
		decode(t, w, &resp)
	}
	if resp.Decision != nil || resp.State != session.StateActive {
		t.Fatalf("unexpected response %+v", resp)
	}
	if math.Abs(resp.Zoom-1.2) > 1e-9 {
		t.Fatalf("expected zoom 1.2 after six misses, got %v", resp.Zoom)
	}
}

func TestAPIServerSubmitRequiresBody(t *testing.T) {
	ts := newTestServer(t, 0)
	id := ts.startSession(t, api.StartSessionRequest{})

	w := ts.do(t, http.MethodPost, "/api/sessions/"+id+"/observations", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerDecisionsWithoutHistory(t *testing.T) {
	ts := newTestServer(t, 0, testsupport.WithoutHistory())

	w := ts.do(t, http.MethodGet, "/api/decisions", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAPIServerDecisionsRejectsBadQuery(t *testing.T) {
	ts := newTestServer(t, 0)
	for _, path := range []string{"/api/decisions?limit=abc", "/api/decisions?limit=-1", "/api/decisions?since=yesterday"} {
		w := ts.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestAPIServerStatus(t *testing.T) {
	ts := newTestServer(t, 0)
	ts.startSession(t, api.StartSessionRequest{})

	w := ts.do(t, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status api.DaemonStatus
	decode(t, w, &status)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.Sessions.Active != 1 || !status.HistoryEnabled || status.HistoryPath != ts.store.Path() {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Defaults.Policy != "strict" || status.Defaults.Capacity != 15 {
		t.Fatalf("unexpected defaults %+v", status.Defaults)
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	ts := newTestServer(t, 0, testsupport.WithAPIToken("s3cret"))

	w := ts.do(t, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("WWW-Authenticate"), "Bearer") {
		t.Fatalf("expected a bearer challenge, got %q", w.Header().Get("WWW-Authenticate"))
	}
	if w := ts.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Bearer s3cret"); w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/status", nil, "Authorization", "bearer s3cret"); w.Code != http.StatusOK {
		t.Fatalf("lowercase scheme: expected 200, got %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/status", nil, "Authorization", "Basic s3cret"); w.Code != http.StatusUnauthorized {
		t.Fatalf("basic scheme: expected 401, got %d", w.Code)
	}
}

func TestAPIServerEchoesRequestID(t *testing.T) {
	ts := newTestServer(t, 0)

	w := ts.do(t, http.MethodGet, "/api/status", nil, requestIDHeader, "req-42")
	if got := w.Header().Get(requestIDHeader); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}
	w = ts.do(t, http.MethodGet, "/api/status", nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected generated request id")
	}
}
