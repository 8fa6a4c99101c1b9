package deskctl

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "roomdesk/pkg/errors"
	httputil "roomdesk/pkg/http"
	"roomdesk/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method  string
	Path    string
	Query   string
	Actor   string
	Role    string
	IdemKey string
	Body    []byte
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	server   *httptest.Server
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		_, _ = body.ReadFrom(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, recordedRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Actor:   r.Header.Get("X-Actor-ID"),
			Role:    r.Header.Get("X-Actor-Role"),
			IdemKey: r.Header.Get("Idempotency-Key"),
			Body:    body.Bytes(),
		})
		api.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) last(t *testing.T) recordedRequest {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	require.NotEmpty(t, a.requests)
	return a.requests[len(a.requests)-1]
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := NewApp(&out).Run(append([]string{"deskctl", "--config", ""}, args...))
	return out.String(), err
}

func sampleBooking() *model.Booking {
	return &model.Booking{
		ID:            "65f000000000000000000001",
		ResourceID:    "room-1",
		RequesterID:   "u-1",
		Title:         "Design review",
		Justification: "Quarterly planning",
		StartTime:     time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2026, 11, 2, 10, 0, 0, 0, time.UTC),
		Status:        model.StatusPending,
		Version:       1,
	}
}

func TestBookingsGet_RendersYAML(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteSuccess(w, sampleBooking())
	})

	out, err := run(t, "--bookings-url", api.server.URL, "--actor", "rev-1", "--role", "reviewer",
		"bookings", "get", "65f000000000000000000001")
	require.NoError(t, err)

	req := api.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/v1/bookings/id/65f000000000000000000001", req.Path)
	assert.Equal(t, "rev-1", req.Actor)
	assert.Equal(t, "reviewer", req.Role)

	assert.Contains(t, out, "title: Design review")
	assert.Contains(t, out, "resource_id: room-1")
	assert.Contains(t, out, "status: pending")
}

func TestBookingsList_PassesFiltersAndRendersJSON(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WritePaginated(w, []*model.Booking{sampleBooking()}, 7, 5, 0)
	})

	out, err := run(t, "--bookings-url", api.server.URL, "--actor", "rev-1", "-o", "json",
		"bookings", "list", "--status", "pending", "--sort", "-start", "--limit", "5")
	require.NoError(t, err)

	req := api.last(t)
	assert.Equal(t, "/api/v1/bookings", req.Path)
	assert.Contains(t, req.Query, "status=pending")
	assert.Contains(t, req.Query, "sort=-start")
	assert.Contains(t, req.Query, "limit=5")

	var got struct {
		Items []model.Booking `json:"items"`
		Total int64           `json:"total"`
		Limit int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, int64(7), got.Total)
	assert.Equal(t, 5, got.Limit)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Design review", got.Items[0].Title)
}

func TestBookingsDecide(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		wantDecision string
		wantErr      string
	}{
		{name: "approve", args: []string{"--approve"}, wantDecision: "approve"},
		{name: "reject with reason", args: []string{"--reject", "--reason", "room is closed"}, wantDecision: "reject"},
		{name: "neither flag", args: nil, wantErr: "exactly one of"},
		{name: "both flags", args: []string{"--approve", "--reject"}, wantErr: "exactly one of"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
				b := sampleBooking()
				b.Status = model.StatusApproved
				_ = httputil.WriteSuccess(w, b)
			})

			args := append([]string{"--bookings-url", api.server.URL, "--actor", "rev-1", "bookings", "decide"}, tt.args...)
			args = append(args, "65f000000000000000000001")
			_, err := run(t, args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Empty(t, api.requests)
				return
			}
			require.NoError(t, err)

			req := api.last(t)
			assert.Equal(t, "/api/v1/bookings/id/65f000000000000000000001/decision", req.Path)
			var body map[string]string
			require.NoError(t, json.Unmarshal(req.Body, &body))
			assert.Equal(t, tt.wantDecision, body["decision"])
		})
	}
}

func TestBookingsCreate_SendsTimes(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteCreated(w, sampleBooking())
	})

	_, err := run(t, "--bookings-url", api.server.URL, "--actor", "u-1",
		"bookings", "create",
		"--resource", "room-1",
		"--title", "Design review",
		"--justification", "Quarterly planning",
		"--start", "2026-11-02T09:00:00Z",
		"--end", "2026-11-02T10:00:00Z",
		"--requested", "projector",
		"--requested", "whiteboard",
	)
	require.NoError(t, err)

	var sent model.Booking
	require.NoError(t, json.Unmarshal(api.last(t).Body, &sent))
	assert.Equal(t, "room-1", sent.ResourceID)
	assert.True(t, sent.StartTime.Equal(time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, []string{"projector", "whiteboard"}, sent.RequestedResources)

	_, err = run(t, "--bookings-url", api.server.URL, "--actor", "u-1",
		"bookings", "create", "--resource", "room-1", "--title", "x", "--justification", "y",
		"--start", "tomorrow", "--end", "2026-11-02T10:00:00Z")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RFC3339")
}

func TestConflictsResolve(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteSuccess(w, model.ResolutionResult{ConflictID: "c-1", ResolverID: "rev-1"})
	})

	out, err := run(t, "--conflicts-url", api.server.URL, "--actor", "rev-1", "--role", "reviewer",
		"conflicts", "resolve", "--approve", "b-1", "--resource", "room-1", "--reason", "first come first served", "c-1")
	require.NoError(t, err)
	assert.Contains(t, out, "conflict_id: c-1")

	req := api.last(t)
	assert.Equal(t, "/api/v1/conflicts/resolve", req.Path)
	assert.NotEmpty(t, req.IdemKey)

	var cmd model.ResolutionCommand
	require.NoError(t, json.Unmarshal(req.Body, &cmd))
	assert.Equal(t, model.ActionApprove, cmd.Action)
	assert.Equal(t, "b-1", cmd.ChosenBookingID)
	assert.Equal(t, "c-1", cmd.ConflictID)
	assert.Equal(t, "room-1", cmd.ResourceID)
}

func TestResolutionCommand(t *testing.T) {
	tests := []struct {
		name       string
		approveID  string
		rejectAll  bool
		wantAction model.ResolutionAction
		wantErr    bool
	}{
		{name: "approve", approveID: "b-1", wantAction: model.ActionApprove},
		{name: "reject all", rejectAll: true, wantAction: model.ActionRejectAll},
		{name: "both", approveID: "b-1", rejectAll: true, wantErr: true},
		{name: "none", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := resolutionCommand("c-1", tt.approveID, tt.rejectAll, "reason text")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, cmd.Action)
			assert.Equal(t, "reason text", cmd.RejectionReason)
		})
	}
}

func TestAPIErrorIsReturned(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteError(w, apperrors.Forbidden("reviewer role required"))
	})

	_, err := run(t, "--conflicts-url", api.server.URL, "--actor", "u-1", "conflicts", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestMissingActor(t *testing.T) {
	_, err := run(t, "conflicts", "stats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actor is required")
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deskctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"bookings_url: https://bookings.example.com",
		"actor_id: rev-9",
		"actor_role: reviewer",
		"output: json",
		"timeout: 3s",
	}, "\n")), 0o600))

	profile, err := LoadProfile(path, true)
	require.NoError(t, err)
	assert.Equal(t, "https://bookings.example.com", profile.BookingsURL)
	assert.Equal(t, DefaultConflictsURL, profile.ConflictsURL)
	assert.Equal(t, "rev-9", profile.ActorID)
	assert.Equal(t, OutputJSON, profile.Output)
	assert.Equal(t, 3*time.Second, profile.Timeout)

	_, err = LoadProfile(filepath.Join(dir, "missing.yaml"), true)
	assert.Error(t, err)

	profile, err = LoadProfile(filepath.Join(dir, "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile(), profile)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("output: xml\n"), 0o600))
	_, err = LoadProfile(bad, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output must be")
}

func TestProfileFlagsOverrideFile(t *testing.T) {
	api := newFakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		_ = httputil.WriteSuccess(w, model.ConflictStats{PendingConflictGroups: 2})
	})

	path := filepath.Join(t.TempDir(), "deskctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conflicts_url: "+api.server.URL+"\nactor_id: from-file\n"), 0o600))

	var out bytes.Buffer
	err := NewApp(&out).Run([]string{"deskctl", "--config", path, "--actor", "from-flag", "conflicts", "stats"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", api.last(t).Actor)
	assert.Contains(t, out.String(), "pending_conflict_groups: 2")
}

func TestRender(t *testing.T) {
	v := map[string]any{"flag": "true", "count": 3, "tags": []string{"a", "b"}}

	var yamlOut bytes.Buffer
	require.NoError(t, Render(&yamlOut, OutputYAML, v))
	assert.Contains(t, yamlOut.String(), "count: 3")
	assert.NotContains(t, yamlOut.String(), "flag: true\n")
	assert.Contains(t, yamlOut.String(), "true")
	assert.Contains(t, yamlOut.String(), "- a")

	var jsonOut bytes.Buffer
	require.NoError(t, Render(&jsonOut, OutputJSON, v))
	assert.Contains(t, jsonOut.String(), `"count": 3`)

	assert.Error(t, Render(&bytes.Buffer{}, "xml", v))
}
