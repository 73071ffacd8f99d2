package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/attune/internal/bus"
	"github.com/abhisek/attune/internal/dialogue"
	"github.com/abhisek/attune/internal/dispatch"
	"github.com/abhisek/attune/internal/engine"
	"github.com/abhisek/attune/internal/fusion"
	"github.com/abhisek/attune/internal/llm"
	"github.com/abhisek/attune/internal/mastery"
	"github.com/abhisek/attune/internal/scheduler"
)

type fixture struct {
	url string
	bus *bus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	provider := llm.NewMockProvider()
	b := bus.New(16, nil)
	eng, err := engine.New(engine.Config{
		Fusion:    fusion.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
		Limits:    dialogue.DefaultLimits(),
	}, engine.Deps{
		Tracker:    mastery.NewTracker(mastery.DefaultParams()),
		Tutor:      dialogue.NewTutor(provider, dialogue.DefaultTutorConfig(), nil),
		Dispatcher: dispatch.NewDefaultDispatcher(provider, dispatch.DefaultHandlerConfig(), nil),
		Publisher:  b,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = eng.Run(ctx)
	}()

	srv := httptest.NewServer(New(eng, b, []string{"*"}, nil).Routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-stopped
		b.Close()
	})
	return &fixture{url: srv.URL, bus: b}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.url+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (f *fixture) get(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(f.url + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

const helpSnapshot = `{"user_id":"u1","topic":"gradient descent","help_requested":true,
	"user_message":"why does the learning rate matter?"}`

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.get(t, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostSnapshot(t *testing.T) {
	f := newFixture(t)

	resp, out := f.post(t, "/v1/snapshots", `{"user_id":"u1","screen_content":"Compute the eigenvalue of the matrix",
		"typing_speed_ratio":0.3,"deletion_rate":0.7,"pause_duration":25,"scroll_back_count":5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "linear_algebra", out["topic"])
	decision := out["decision"].(map[string]any)
	assert.Equal(t, true, decision["fire"])
	assert.Equal(t, "confusion", decision["reason"])

	resp, out = f.post(t, "/v1/snapshots", `{not json`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"fire": false, "reason": "skipped"}, out["decision"])
	assert.Equal(t, "default", out["user_id"])
	assert.Nil(t, out["assessment"])
}

func TestDialogueRoutes(t *testing.T) {
	f := newFixture(t)

	_, out := f.post(t, "/v1/snapshots", helpSnapshot)
	dlg, ok := out["dialogue"].(map[string]any)
	require.True(t, ok, "expected a dialogue in %v", out)
	id := dlg["session_id"].(string)

	var view map[string]any
	resp := f.get(t, "/v1/sessions/"+id, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gradient_descent", view["concept"])

	resp, reply := f.post(t, "/v1/sessions/"+id+"/replies", `{"message":"it sets the step size"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, reply, "message")

	resp, _ = f.post(t, "/v1/sessions/"+id+"/replies", `{"message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, report := f.post(t, "/v1/sessions/"+id+"/close", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user_closed", report["close_reason"])

	resp, missing := f.post(t, "/v1/sessions/"+id+"/replies", `{"message":"hello?"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "session_not_found", missing["error"])
	assert.Equal(t, (&dialogue.ErrSessionNotFound{}).Apology(), missing["apology"])
}

func TestMasteryRoutes(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/v1/snapshots", `{"user_id":"u1","topic":"calculus",
		"analysis":{"understands":["chain rule"],"work_status":"correct"}}`)

	var list []map[string]any
	resp := f.get(t, "/v1/mastery", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 2)
	assert.Equal(t, "calculus", list[0]["concept_id"])
	assert.Equal(t, "chain_rule", list[1]["concept_id"])

	var detail map[string]any
	resp = f.get(t, "/v1/mastery/Chain%20Rule", &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "chain_rule", detail["concept_id"])
	assert.Contains(t, detail, "record")

	resp = f.get(t, "/v1/mastery/topology", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSchedulerRoute(t *testing.T) {
	f := newFixture(t)
	var out map[string]any
	resp := f.get(t, "/v1/scheduler", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := out["config"].(map[string]any)
	assert.EqualValues(t, 30*time.Second, cfg["cooldown"])
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(f.url, "http") + "/v1/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The subscription is set up after the handshake; publish until the
	// stream picks it up.
	got := make(chan bus.Event, 1)
	go func() {
		var ev bus.Event
		if err := wsjson.Read(ctx, conn, &ev); err == nil {
			got <- ev
		}
	}()
	require.Eventually(t, func() bool {
		_ = f.bus.Publish(bus.TopicDecisions, map[string]string{"reason": "not_yet"})
		select {
		case ev := <-got:
			return ev.Topic == bus.TopicDecisions && strings.Contains(string(ev.Payload), "not_yet")
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
