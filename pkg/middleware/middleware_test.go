package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "roomdesk/pkg/errors"
	"roomdesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Output: io.Discard})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestActorIdentity(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantActor  Actor
		wantFound  bool
	}{
		{name: "no actor", wantStatus: http.StatusOK},
		{
			name:       "defaults to requester",
			headers:    map[string]string{HeaderActorID: "u-1"},
			wantStatus: http.StatusOK,
			wantActor:  Actor{ID: "u-1", Role: RoleRequester},
			wantFound:  true,
		},
		{
			name:       "reviewer role case insensitive",
			headers:    map[string]string{HeaderActorID: "u-2", HeaderActorRole: "Reviewer"},
			wantStatus: http.StatusOK,
			wantActor:  Actor{ID: "u-2", Role: RoleReviewer},
			wantFound:  true,
		},
		{
			name:       "unknown role rejected",
			headers:    map[string]string{HeaderActorID: "u-3", HeaderActorRole: "root"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Actor
			var found bool
			h := ActorIdentity()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, found = ActorFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/conflicts", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantActor, got)
		})
	}
}

func TestRequirePrivileged(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	_, err := RequirePrivileged(req)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	req = req.WithContext(WithActor(req.Context(), Actor{ID: "u-1", Role: RoleRequester}))
	_, err = RequirePrivileged(req)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	req = req.WithContext(WithActor(req.Context(), Actor{ID: "u-9", Role: RoleAdmin}))
	actor, err := RequirePrivileged(req)
	require.NoError(t, err)
	assert.Equal(t, "u-9", actor.ID)
}

func TestActorRateLimiter_Allow(t *testing.T) {
	limiter := NewActorRateLimiter(2, time.Minute, nil, testLogger())
	defer limiter.Stop()

	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("actor:a"))
	assert.True(t, limiter.Allow("actor:a"))
	assert.False(t, limiter.Allow("actor:a"))
	assert.True(t, limiter.Allow("actor:b"))
	assert.True(t, limiter.Allow(""))

	now = now.Add(time.Minute)
	assert.True(t, limiter.Allow("actor:a"))
}

func TestRateLimit_Rejects(t *testing.T) {
	limiter := NewActorRateLimiter(1, time.Minute, nil, testLogger())
	defer limiter.Stop()

	h := ActorIdentity()(RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set(HeaderActorID, "u-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call().Code)
	rec := call()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, apperrors.CodeTooManyRequests, decodeError(t, rec).Code)
}

func TestIdempotency_ReplaysSuccessfulPost(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"call":` + string(rune('0'+n)) + `}`))
	}))

	send := func(actor, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/conflicts/resolve", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", key)
		req.Header.Set(HeaderActorID, actor)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("u-1", "k1")
	second := send("u-1", "k1")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderIdempotentReplay))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	send("u-2", "k1")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestIdempotency_DoesNotCacheFailures(t *testing.T) {
	store := NewInMemoryIdempotencyStore(time.Hour)
	defer store.Stop()

	var calls int32
	h := Idempotency(store, "")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusConflict)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/conflicts/resolve", nil)
		req.Header.Set("Idempotency-Key", "k1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestContentTypeValidation(t *testing.T) {
	h := ContentTypeValidation(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		body        string
		contentType string
		want        int
	}{
		{"get passes", http.MethodGet, "", "", http.StatusNoContent},
		{"json post", http.MethodPost, `{}`, "application/json; charset=utf-8", http.StatusNoContent},
		{"empty post", http.MethodPost, "", "", http.StatusNoContent},
		{"form post", http.MethodPost, "a=b", "application/x-www-form-urlencoded", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, "/api/v1/bookings", body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperrors.CodeInternal, decodeError(t, rec).Code)
}

func TestRequestTimeout(t *testing.T) {
	h := RequestTimeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, apperrors.CodeTimeout, decodeError(t, rec).Code)
}

func TestRequestLogging_PropagatesRequestID(t *testing.T) {
	var seen string
	h := RequestLogging(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}
