package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/nerrad567/gray-logic-radio/internal/auth"
	"github.com/nerrad567/gray-logic-radio/internal/program"
)

// createTestProgram creates a program through the API and returns it.
func createTestProgram(t *testing.T, f *testFixture, adminToken, body string) program.Program {
	t.Helper()

	w := f.request(http.MethodPost, "/api/v1/programs", adminToken, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create program status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created program.Program
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	return created
}

func TestPrograms_CreateAndGet(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	token := f.token(t, admin)

	created := createTestProgram(t, f, token, `{
		"name": "Evening News",
		"source": "BRAM",
		"message": 2,
		"channels": [
			{"channel": 1, "frequency_hz": 540000},
			{"channel": 2, "frequency_hz": 600000}
		]
	}`)

	if created.ID == "" {
		t.Error("expected program ID to be auto-generated")
	}
	if created.Slug != "evening-news" {
		t.Errorf("slug = %q, want evening-news", created.Slug)
	}

	w := f.request(http.MethodGet, "/api/v1/programs/"+created.ID, token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	var got program.Program
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	if got.Name != "Evening News" {
		t.Errorf("name = %q, want Evening News", got.Name)
	}
	if len(got.Channels) != 2 {
		t.Errorf("channels = %d, want 2", len(got.Channels))
	}
}

func TestPrograms_GetNotFound(t *testing.T) {
	f := testServer(t)
	viewer := f.seedOperator(t, "watcher", auth.RoleViewer)

	w := f.request(http.MethodGet, "/api/v1/programs/nonexistent", f.token(t, viewer), "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPrograms_CreateValidation(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	token := f.token(t, admin)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"channels": [{"channel": 1, "frequency_hz": 540000}]}`},
		{"no channels", `{"name": "Empty"}`},
		{"channel out of range", `{"name": "Bad", "channels": [{"channel": 13, "frequency_hz": 540000}]}`},
		{"frequency out of band", `{"name": "Bad", "channels": [{"channel": 1, "frequency_hz": 100}]}`},
		{"bad source", `{"name": "Bad", "source": "TAPE", "channels": [{"channel": 1, "frequency_hz": 540000}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.request(http.MethodPost, "/api/v1/programs", token, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}

func TestPrograms_DuplicateSlugConflicts(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	token := f.token(t, admin)

	body := `{"name": "Morning Show", "channels": [{"channel": 1, "frequency_hz": 540000}]}`
	createTestProgram(t, f, token, body)

	w := f.request(http.MethodPost, "/api/v1/programs", token, body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestPrograms_Update(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	token := f.token(t, admin)

	created := createTestProgram(t, f, token,
		`{"name": "Original", "channels": [{"channel": 1, "frequency_hz": 540000}]}`)

	w := f.request(http.MethodPatch, "/api/v1/programs/"+created.ID, token,
		`{"name": "Renamed", "enabled": false}`)

	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d; body: %s", w.Code, w.Body.String())
	}

	var updated program.Program
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Errorf("name = %q, want Renamed", updated.Name)
	}
	if updated.Enabled {
		t.Error("expected program disabled")
	}
}

func TestPrograms_Delete(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	token := f.token(t, admin)

	created := createTestProgram(t, f, token,
		`{"name": "Doomed", "channels": [{"channel": 1, "frequency_hz": 540000}]}`)

	w := f.request(http.MethodDelete, "/api/v1/programs/"+created.ID, token, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = f.request(http.MethodGet, "/api/v1/programs/"+created.ID, token, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestPrograms_OperatorCannotManage(t *testing.T) {
	f := testServer(t)
	op := f.seedOperator(t, "bob", auth.RoleOperator)

	w := f.request(http.MethodPost, "/api/v1/programs", f.token(t, op),
		`{"name": "Nope", "channels": [{"channel": 1, "frequency_hz": 540000}]}`)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// ─── Activation Tests ──────────────────────────────────────────────

func TestPrograms_Activate(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	adminToken := f.token(t, admin)
	op := f.seedOperator(t, "bob", auth.RoleOperator)
	opToken := f.token(t, op)

	created := createTestProgram(t, f, adminToken, `{
		"name": "Drive Time",
		"source": "BRAM",
		"message": 5,
		"channels": [
			{"channel": 1, "frequency_hz": 540000},
			{"channel": 3, "frequency_hz": 700000}
		]
	}`)

	f.connect(t)

	w := f.request(http.MethodPost, "/api/v1/programs/"+created.ID+"/activate", opToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("activate status = %d; body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Status      string `json:"status"`
		ExecutionID string `json:"execution_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "activated" {
		t.Errorf("status = %q, want activated", resp.Status)
	}
	if resp.ExecutionID == "" {
		t.Error("expected execution_id to be set")
	}

	// The device should be on air with the programmed plan.
	if !f.sim.Broadcasting() {
		t.Error("expected carrier on after activation")
	}
	if enabled, freq := f.sim.Channel(3); !enabled || freq != 700_000 {
		t.Errorf("channel 3 = (%v, %d), want (true, 700000)", enabled, freq)
	}
	if enabled, _ := f.sim.Channel(2); enabled {
		t.Error("expected unlisted channel 2 disabled")
	}

	// Execution history records the run.
	w = f.request(http.MethodGet, "/api/v1/programs/"+created.ID+"/executions", opToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("executions status = %d; body: %s", w.Code, w.Body.String())
	}

	var execs struct {
		Executions []program.Execution `json:"executions"`
		Count      int                 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &execs); err != nil {
		t.Fatalf("unmarshal executions: %v", err)
	}
	if execs.Count != 1 {
		t.Fatalf("executions count = %d, want 1", execs.Count)
	}
	if execs.Executions[0].Status != program.StatusCompleted {
		t.Errorf("execution status = %v, want %v", execs.Executions[0].Status, program.StatusCompleted)
	}
}

func TestPrograms_ActivateDisabledConflicts(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	token := f.token(t, admin)

	created := createTestProgram(t, f, token,
		`{"name": "Parked", "enabled": false, "channels": [{"channel": 1, "frequency_hz": 540000}]}`)

	f.connect(t)

	w := f.request(http.MethodPost, "/api/v1/programs/"+created.ID+"/activate", token, "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusConflict, w.Body.String())
	}
}

func TestPrograms_ActivateViewerForbidden(t *testing.T) {
	f := testServer(t)
	admin := f.seedOperator(t, "root", auth.RoleAdmin)
	viewer := f.seedOperator(t, "watcher", auth.RoleViewer)

	created := createTestProgram(t, f, f.token(t, admin),
		`{"name": "Guarded", "channels": [{"channel": 1, "frequency_hz": 540000}]}`)

	w := f.request(http.MethodPost, "/api/v1/programs/"+created.ID+"/activate", f.token(t, viewer), "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}
