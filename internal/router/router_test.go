package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"timetrack/backend/internal/clock"
	"timetrack/backend/internal/db"
	"timetrack/backend/internal/handler"
	"timetrack/backend/internal/repository"
	"timetrack/backend/internal/router"
	"timetrack/backend/internal/service"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type timerJSON struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	RecordedElapsedMs int64   `json:"recordedElapsedMs"`
	TotalPausedMs     int64   `json:"totalPausedMs"`
	CurrentElapsedMs  int64   `json:"currentElapsedMs"`
	PausedAt          *string `json:"pausedAt"`
	EndedAt           *string `json:"endedAt"`
	Note              string  `json:"note"`
	Version           int     `json:"version"`
}

type timerEnvelope struct {
	Timer *timerJSON `json:"timer"`
}

type timersEnvelope struct {
	Timers []timerJSON `json:"timers"`
}

type timesheetEnvelope struct {
	Entries []struct {
		TimerID    string `json:"timerId"`
		DurationMs int64  `json:"durationMs"`
	} `json:"entries"`
}

type progressEnvelope struct {
	Progress struct {
		XP              int `json:"xp"`
		Level           int `json:"level"`
		CompletedTimers int `json:"completedTimers"`
	} `json:"progress"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Timer       *timerJSON `json:"timer"`
			ActiveTimer *timerJSON `json:"activeTimer"`
		} `json:"details"`
	} `json:"error"`
}

type testServer struct {
	handler http.Handler
	clock   *clock.Manual
}

func TestTimerLifecycle(t *testing.T) {
	server := setupTestServer(t)
	user := registerUser(t, server.handler, "user1@example.com", "123456")

	status, raw := requestJSON(t, server.handler, http.MethodGet, "/api/timers/active", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for active, got %d: %s", status, raw)
	}
	if active := decodeTimer(t, raw); active.Timer != nil {
		t.Fatalf("expected no active timer, got %+v", active.Timer)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers", user.Token, map[string]interface{}{
		"note":     "write report",
		"billable": true,
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on start, got %d: %s", status, raw)
	}
	timerID := decodeTimer(t, raw).Timer.ID

	server.clock.Advance(10 * time.Second)
	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers/"+timerID+"/pause", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on pause, got %d: %s", status, raw)
	}
	paused := decodeTimer(t, raw).Timer
	if paused.Status != "PAUSED" || paused.RecordedElapsedMs != 10_000 || paused.PausedAt == nil {
		t.Fatalf("unexpected paused timer: %+v", paused)
	}

	server.clock.Advance(5 * time.Second)
	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers/"+timerID+"/resume", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on resume, got %d: %s", status, raw)
	}

	server.clock.Advance(10 * time.Second)
	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers/"+timerID+"/complete", user.Token, map[string]string{
		"note": "report sent",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on complete, got %d: %s", status, raw)
	}
	completed := decodeTimer(t, raw).Timer
	if completed.Status != "COMPLETED" || completed.RecordedElapsedMs != 20_000 || completed.TotalPausedMs != 5_000 {
		t.Fatalf("unexpected completed timer: %+v", completed)
	}
	if completed.Note != "report sent" || completed.EndedAt == nil {
		t.Fatalf("expected note and endedAt on completed timer: %+v", completed)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers/"+timerID+"/pause", user.Token, nil)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 pausing a completed timer, got %d", status)
	}
	apiErr := decodeError(t, raw)
	if apiErr.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", apiErr.Error.Code)
	}
	if apiErr.Error.Details.Timer == nil || apiErr.Error.Details.Timer.Status != "COMPLETED" {
		t.Fatalf("expected current timer in details, got %+v", apiErr.Error.Details.Timer)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/timesheet", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for timesheet, got %d: %s", status, raw)
	}
	var sheet timesheetEnvelope
	if err := json.Unmarshal(raw, &sheet); err != nil {
		t.Fatalf("unmarshal timesheet: %v", err)
	}
	if len(sheet.Entries) != 1 || sheet.Entries[0].TimerID != timerID || sheet.Entries[0].DurationMs != 20_000 {
		t.Fatalf("unexpected timesheet: %+v", sheet.Entries)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/progress", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for progress, got %d: %s", status, raw)
	}
	var progress progressEnvelope
	if err := json.Unmarshal(raw, &progress); err != nil {
		t.Fatalf("unmarshal progress: %v", err)
	}
	if progress.Progress.CompletedTimers != 1 || progress.Progress.XP != 30 {
		t.Fatalf("unexpected progress: %+v", progress.Progress)
	}
}

func TestSecondTimerConflicts(t *testing.T) {
	server := setupTestServer(t)
	user := registerUser(t, server.handler, "user1@example.com", "123456")

	status, raw := requestJSON(t, server.handler, http.MethodPost, "/api/timers", user.Token, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on start, got %d: %s", status, raw)
	}
	firstID := decodeTimer(t, raw).Timer.ID

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers", user.Token, map[string]string{"note": "second"})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", status)
	}
	apiErr := decodeError(t, raw)
	if apiErr.Error.Code != "active_timer_conflict" {
		t.Fatalf("expected active_timer_conflict, got %s", apiErr.Error.Code)
	}
	if apiErr.Error.Details.ActiveTimer == nil || apiErr.Error.Details.ActiveTimer.ID != firstID {
		t.Fatalf("expected active timer %s in details, got %+v", firstID, apiErr.Error.Details.ActiveTimer)
	}

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers/"+firstID+"/cancel", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d: %s", status, raw)
	}
	status, _ = requestJSON(t, server.handler, http.MethodPost, "/api/timers", user.Token, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 after cancel, got %d", status)
	}

	status, raw = requestJSON(t, server.handler, http.MethodGet, "/api/timers?status=canceled", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for list, got %d: %s", status, raw)
	}
	var list timersEnvelope
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list.Timers) != 1 || list.Timers[0].ID != firstID {
		t.Fatalf("expected only the canceled timer, got %+v", list.Timers)
	}
}

func TestTimersAreIsolatedPerUser(t *testing.T) {
	server := setupTestServer(t)
	owner := registerUser(t, server.handler, "owner@example.com", "123456")
	other := registerUser(t, server.handler, "other@example.com", "123456")

	status, raw := requestJSON(t, server.handler, http.MethodPost, "/api/timers", owner.Token, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on start, got %d: %s", status, raw)
	}
	timerID := decodeTimer(t, raw).Timer.ID

	status, raw = requestJSON(t, server.handler, http.MethodPost, "/api/timers/"+timerID+"/cancel", other.Token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign timer, got %d", status)
	}
	if code := decodeError(t, raw).Error.Code; code != "timer_not_found" {
		t.Fatalf("expected timer_not_found, got %s", code)
	}

	status, _ = requestJSON(t, server.handler, http.MethodPost, "/api/timers", other.Token, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected other user to start independently, got %d", status)
	}
}

func TestBadRequests(t *testing.T) {
	server := setupTestServer(t)
	user := registerUser(t, server.handler, "user1@example.com", "123456")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{name: "no token", method: http.MethodGet, path: "/api/timers/active", status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "bad status filter", method: http.MethodGet, path: "/api/timers?status=STOPPED", token: user.Token, status: http.StatusBadRequest, code: "invalid_filter"},
		{name: "bad from", method: http.MethodGet, path: "/api/timers?from=yesterday", token: user.Token, status: http.StatusBadRequest, code: "invalid_filter"},
		{name: "bad limit", method: http.MethodGet, path: "/api/timers?limit=ten", token: user.Token, status: http.StatusBadRequest, code: "invalid_filter"},
		{name: "unknown timer", method: http.MethodGet, path: "/api/timers/does-not-exist", token: user.Token, status: http.StatusNotFound, code: "timer_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, raw := requestJSON(t, server.handler, tc.method, tc.path, tc.token, nil)
			if status != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, status, raw)
			}
			if code := decodeError(t, raw).Error.Code; code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/timers", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+user.Token)
	recorder := httptest.NewRecorder()
	server.handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", recorder.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	server := setupTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/timers", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	server.handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func setupTestServer(t *testing.T) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsDir := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")
	if _, err := db.RunMigrations(context.Background(), database, migrationsDir); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	clk := clock.NewManual(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	userRepo := repository.NewUserRepository(database)
	rewardRepo := repository.NewRewardRepository(database)
	timerRepo := repository.NewTimerRepository(database)

	authService := service.NewAuthService(userRepo, rewardRepo, clk, "test-secret", 24*time.Hour)
	rewardService := service.NewRewardService(rewardRepo, clk, logger)
	timerService := service.NewTimerService(timerRepo, rewardService, service.TimerServiceOptions{
		Clock:  clk,
		Logger: logger,
	})

	engine := router.New(
		authService,
		handler.NewAuthHandler(authService),
		handler.NewTimerHandler(timerService),
		handler.NewProgressHandler(rewardService),
		[]string{"http://localhost:5173"},
	)
	return testServer{handler: engine, clock: clk}
}

func registerUser(t *testing.T, server http.Handler, email, password string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func decodeTimer(t *testing.T, raw []byte) timerEnvelope {
	t.Helper()
	var envelope timerEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal timer response: %v", err)
	}
	return envelope
}

func decodeError(t *testing.T, raw []byte) apiErrorEnvelope {
	t.Helper()
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal error response: %v", err)
	}
	return envelope
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body interface{},
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
