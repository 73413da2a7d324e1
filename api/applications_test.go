package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/garnizeh/hrbot/api"
	"github.com/garnizeh/hrbot/internal/config"
	"github.com/garnizeh/hrbot/pkg/models"
	"github.com/garnizeh/hrbot/pkg/repository/mock"
)

type fakeEvents struct {
	statuses  []models.ApplicationStatus
	screened  []int64
	notifyErr error
}

func (f *fakeEvents) NotifyStatusChange(_ context.Context, _ int64, status models.ApplicationStatus) error {
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeEvents) RequestScreening(_ context.Context, appID int64) (int64, error) {
	f.screened = append(f.screened, appID)
	return 42, nil
}

type testServer struct {
	store  *mock.Store
	events *fakeEvents
	token  string
	router http.Handler
}

func newTestServer(t *testing.T, screening bool) *testServer {
	t.Helper()
	cfg := &config.Config{JWTSecret: "testsecret", TokenDuration: time.Hour}
	cfg.Screening.Enabled = screening
	store := mock.NewStore()
	events := &fakeEvents{}
	id := addStaff(t, store, "hr@example.com", "pw")
	return &testServer{
		store:  store,
		events: events,
		token:  signToken(t, cfg.JWTSecret, id),
		router: api.SetupRoutes(cfg, "test", "now", api.Deps{Store: store, Events: events}),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// submit creates a user's application and moves it to pending.
func (s *testServer) submit(t *testing.T, userID int64, name string) int64 {
	t.Helper()
	ctx := context.Background()
	a, _, err := s.store.GetOrCreateDraft(ctx, userID)
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if _, err := s.store.UpdateFields(ctx, a.ID, models.FieldSet{models.FieldFirstName: name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok, err := s.store.SetStatus(ctx, a.ID, models.StatusDraft, models.StatusPending); err != nil || !ok {
		t.Fatalf("submit: %v %v", ok, err)
	}
	return a.ID
}

func TestListApplications(t *testing.T) {
	s := newTestServer(t, false)
	for i, name := range []string{"Ali", "Vali", "Gani"} {
		s.submit(t, int64(100+i), name)
	}
	if _, _, err := s.store.GetOrCreateDraft(context.Background(), 200); err != nil {
		t.Fatalf("draft: %v", err)
	}

	w := s.do(t, http.MethodGet, "/v1/applications?limit=2&offset=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Total int64                `json:"total"`
		Items []models.Application `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 3 || len(resp.Items) != 2 {
		t.Fatalf("unexpected page: total=%d items=%d", resp.Total, len(resp.Items))
	}
	if *resp.Items[0].FirstName != "Vali" {
		t.Fatalf("page not ordered oldest first: %s", *resp.Items[0].FirstName)
	}

	for _, q := range []string{"status=draft", "status=bogus"} {
		if w := s.do(t, http.MethodGet, "/v1/applications?"+q, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", q, w.Code)
		}
	}

	w = s.do(t, http.MethodGet, "/v1/applications?status=accepted", "")
	if !strings.Contains(w.Body.String(), `"items":[]`) {
		t.Fatalf("empty page should list no items: %s", w.Body.String())
	}
}

func TestGetApplication(t *testing.T) {
	s := newTestServer(t, false)
	id := s.submit(t, 100, "Ali")
	draft, _, _ := s.store.GetOrCreateDraft(context.Background(), 101)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"submitted", "/v1/applications/" + itoa(id), http.StatusOK},
		{"draft is hidden", "/v1/applications/" + itoa(draft.ID), http.StatusNotFound},
		{"missing", "/v1/applications/9999", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, http.MethodGet, tt.path, ""); w.Code != tt.want {
				t.Fatalf("expected %d got %d body=%s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/applications/"+itoa(id), nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated: expected 401 got %d", w.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t, false)
	id := s.submit(t, 100, "Ali")
	path := "/v1/applications/" + itoa(id) + "/status"

	steps := []struct {
		body     string
		want     int
		notified int
	}{
		{`{"status":"under_review"}`, http.StatusOK, 0},
		{`{"status":"pending"}`, http.StatusConflict, 0},
		{`{"status":"nope"}`, http.StatusBadRequest, 0},
		{`not json`, http.StatusBadRequest, 0},
		{`{"status":"interview_scheduled"}`, http.StatusOK, 0},
		{`{"status":"accepted"}`, http.StatusOK, 1},
		{`{"status":"rejected"}`, http.StatusConflict, 1},
	}
	for i, st := range steps {
		w := s.do(t, http.MethodPost, path, st.body)
		if w.Code != st.want {
			t.Fatalf("step %d %s: expected %d got %d body=%s", i, st.body, st.want, w.Code, w.Body.String())
		}
		if len(s.events.statuses) != st.notified {
			t.Fatalf("step %d: notified %d times, want %d", i, len(s.events.statuses), st.notified)
		}
	}

	a, _ := s.store.Get(context.Background(), id)
	if a.Status != models.StatusAccepted {
		t.Fatalf("final status = %s", a.Status)
	}
}

func TestUpdateStatus_NotificationFailureKeepsChange(t *testing.T) {
	s := newTestServer(t, false)
	s.events.notifyErr = errors.New("queue down")
	id := s.submit(t, 100, "Ali")

	w := s.do(t, http.MethodPost, "/v1/applications/"+itoa(id)+"/status", `{"status":"rejected"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"notified":false`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	a, _ := s.store.Get(context.Background(), id)
	if a.Status != models.StatusRejected {
		t.Fatalf("status not changed: %s", a.Status)
	}
}

func TestUpdateNotes(t *testing.T) {
	s := newTestServer(t, false)
	id := s.submit(t, 100, "Ali")

	w := s.do(t, http.MethodPut, "/v1/applications/"+itoa(id)+"/notes", `{"notes":"strong candidate"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
	a, _ := s.store.Get(context.Background(), id)
	if a.HRNotes == nil || *a.HRNotes != "strong candidate" {
		t.Fatalf("notes not stored: %v", a.HRNotes)
	}

	big := `{"notes":"` + strings.Repeat("x", 70*1024) + `"}`
	if w := s.do(t, http.MethodPut, "/v1/applications/"+itoa(id)+"/notes", big); w.Code != http.StatusBadRequest {
		t.Fatalf("oversized notes: expected 400 got %d", w.Code)
	}
}

func TestRequestScreening(t *testing.T) {
	off := newTestServer(t, false)
	id := off.submit(t, 100, "Ali")
	if w := off.do(t, http.MethodPost, "/v1/applications/"+itoa(id)+"/screening", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled: expected 503 got %d", w.Code)
	}

	on := newTestServer(t, true)
	id = on.submit(t, 100, "Ali")
	w := on.do(t, http.MethodPost, "/v1/applications/"+itoa(id)+"/screening", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", w.Code, w.Body.String())
	}
	if len(on.events.screened) != 1 || on.events.screened[0] != id {
		t.Fatalf("screening not requested: %v", on.events.screened)
	}
	if !strings.Contains(w.Body.String(), `"job_id":42`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t, false)
	s.submit(t, 100, "Ali")
	id := s.submit(t, 101, "Vali")
	if _, err := s.store.SetStatus(context.Background(), id, models.StatusPending, models.StatusUnderReview); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if _, _, err := s.store.GetOrCreateDraft(context.Background(), 102); err != nil {
		t.Fatalf("draft: %v", err)
	}

	w := s.do(t, http.MethodGet, "/v1/applications/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
	var resp struct {
		Total    int64            `json:"total"`
		ByStatus map[string]int64 `json:"by_status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 2 || resp.ByStatus["pending"] != 1 || resp.ByStatus["under_review"] != 1 {
		t.Fatalf("unexpected stats: %+v", resp)
	}
	if _, ok := resp.ByStatus["draft"]; ok {
		t.Fatalf("drafts must not be reported")
	}
}

func TestOpenEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/health", "/version", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, w.Code)
		}
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
