package debughttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

func get(t *testing.T, h http.Handler, path string, header map[string]string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHandlerEndpoints(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop(), Sources{
		Status: func() any { return map[string]int{"ticks": 3} },
		Schedule: func() (timeline.ResolvedSchedule, error) {
			return timeline.ResolvedSchedule{PeriodID: "morning", DayPlanID: "weekday", Collect: true}, nil
		},
	})
	h := s.Handler(Config{Enabled: true})

	code, body := get(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, h, "/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"ticks":3}`, body)

	code, body = get(t, h, "/schedule", nil)
	require.Equal(t, http.StatusOK, code)
	var sched timeline.ResolvedSchedule
	require.NoError(t, json.Unmarshal([]byte(body), &sched))
	assert.Equal(t, "morning", sched.PeriodID)
	assert.True(t, sched.Collect)

	code, _ = get(t, h, "/debug/pprof/", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandlerMissingSourcesAndErrors(t *testing.T) {
	t.Parallel()
	h := New(logx.Nop(), Sources{
		Schedule: func() (timeline.ResolvedSchedule, error) {
			return timeline.ResolvedSchedule{}, errors.New("no resolver")
		},
	}).Handler(Config{Enabled: true, Pprof: true})

	code, _ := get(t, h, "/status", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body := get(t, h, "/schedule", nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "no resolver")

	code, _ = get(t, h, "/debug/pprof/cmdline", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandlerToken(t *testing.T) {
	t.Parallel()
	h := New(logx.Nop(), Sources{}).Handler(Config{Enabled: true, Token: "s3cret"})

	code, _ := get(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, h, "/healthz?token=nope", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, h, "/healthz?token=s3cret", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, h, "/healthz", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckBind(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"disabled", Config{Addr: "0.0.0.0:6060"}, true},
		{"default loopback", Config{Enabled: true}, true},
		{"localhost", Config{Enabled: true, Addr: "localhost:7000"}, true},
		{"ipv6 loopback", Config{Enabled: true, Addr: "[::1]:7000"}, true},
		{"all interfaces", Config{Enabled: true, Addr: ":6060"}, false},
		{"public", Config{Enabled: true, Addr: "10.0.0.5:6060"}, false},
		{"public with token", Config{Enabled: true, Addr: "10.0.0.5:6060", Token: "t"}, true},
		{"public insecure", Config{Enabled: true, Addr: "10.0.0.5:6060", AllowInsecure: true}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := CheckBind(tc.cfg)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestReconfigureStartsAndStops(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop(), Sources{})
	ctx := context.Background()

	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	s.Reconfigure(stopCtx, Config{})
	assert.Equal(t, "", s.Addr())
}
