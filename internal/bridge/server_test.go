// ABOUTME: Tests for the bridge WebSocket server
// ABOUTME: Drives requests through a real connection against fakes and a memory-backed engine
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/internal/media"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeMedia struct {
	mu      sync.Mutex
	calls   []string
	results chan error
	current string
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{results: make(chan error, 1)}
}

func (f *fakeMedia) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeMedia) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeMedia) Play(ctx context.Context, uri string, isLocalResource bool) <-chan error {
	f.record("play " + uri)
	f.mu.Lock()
	f.current = uri
	f.mu.Unlock()
	return f.results
}

func (f *fakeMedia) Pause()  { f.record("pause") }
func (f *fakeMedia) Resume() { f.record("resume") }
func (f *fakeMedia) Stop()   { f.record("stop") }

func (f *fakeMedia) Playing() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.current != ""
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func newTestBridge(t *testing.T, m Metronome, p Media) (*Server, *testConn) {
	t.Helper()

	s := New(Config{Name: "test-bridge"}, m, p)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	tc := &testConn{t: t, conn: conn}

	var hello struct {
		Event string `json:"event"`
		Data  Hello  `json:"data"`
	}
	tc.read(&hello)
	require.Equal(t, EventHello, hello.Event)
	require.Equal(t, "test-bridge", hello.Data.Name)
	require.NotEmpty(t, hello.Data.ClientID)

	return s, tc
}

func (c *testConn) read(v any) {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	require.NoError(c.t, json.Unmarshal(data, v))
}

type rawResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
	Event  string          `json:"event"`
}

// call sends a request and returns its response, skipping beat events
func (c *testConn) call(id, method string, params any) rawResponse {
	c.t.Helper()
	req := map[string]any{"id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	require.NoError(c.t, c.conn.WriteJSON(req))

	for {
		var resp rawResponse
		c.read(&resp)
		if resp.Event != "" {
			continue
		}
		require.Equal(c.t, id, resp.ID)
		return resp
	}
}

func memoryEngine() *metronome.Engine {
	return metronome.NewEngine(metronome.EngineConfig{
		NewSink: func() (output.Sink, error) { return output.NewMemory(), nil },
	})
}

func TestStartStatusStop(t *testing.T) {
	engine := memoryEngine()
	defer engine.Stop()
	_, c := newTestBridge(t, engine, newFakeMedia())

	resp := c.call("1", MethodStartMetronome, map[string]any{"bpm": 90, "volume": 0.4})
	require.Nil(t, resp.Error)
	require.JSONEq(t, `{"ok":true}`, string(resp.Result))
	require.True(t, engine.Running())

	resp = c.call("2", MethodStatus, nil)
	require.Nil(t, resp.Error)
	var st Status
	require.NoError(t, json.Unmarshal(resp.Result, &st))
	require.True(t, st.Running)
	require.Equal(t, 90.0, st.BPM)
	require.Equal(t, 0.4, st.Volume)
	require.NotEmpty(t, st.Session)

	resp = c.call("3", MethodSetMetronomeBPM, map[string]any{"bpm": 120})
	require.Nil(t, resp.Error)
	require.Equal(t, 120.0, engine.BPM())

	resp = c.call("4", MethodSetMetronomeVolume, map[string]any{"volume": 0.9})
	require.Nil(t, resp.Error)
	require.Equal(t, 0.9, engine.Volume())

	resp = c.call("5", MethodStopMetronome, nil)
	require.Nil(t, resp.Error)
	require.False(t, engine.Running())
}

func TestErrorCodes(t *testing.T) {
	engine := memoryEngine()
	defer engine.Stop()
	_, c := newTestBridge(t, engine, newFakeMedia())

	tests := []struct {
		name   string
		method string
		params any
		code   string
	}{
		{"bpm out of range", MethodStartMetronome, map[string]any{"bpm": 300, "volume": 0.5}, CodeInvalidArgument},
		{"missing volume", MethodStartMetronome, map[string]any{"bpm": 60}, CodeBadRequest},
		{"wrong param type", MethodSetMetronomeBPM, map[string]any{"bpm": "fast"}, CodeBadRequest},
		{"missing bpm", MethodSetMetronomeBPM, nil, CodeBadRequest},
		{"volume out of range", MethodSetMetronomeVolume, map[string]any{"volume": 2}, CodeInvalidArgument},
		{"unknown", "explode", nil, CodeUnknownMethod},
		{"bad uri", MethodPlay, map[string]any{"uri": "ftp://x/y.mp3"}, CodeInvalidArgument},
		{"bad asset name", MethodPlay, map[string]any{"uri": "../x", "isResource": true}, CodeInvalidArgument},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = t
			resp := c.call(string(rune('a'+i)), tt.method, tt.params)
			require.NotNil(t, resp.Error)
			require.Equal(t, tt.code, resp.Error.Code, resp.Error.Message)
		})
	}
	require.False(t, engine.Running())
}

func TestMalformedRequest(t *testing.T) {
	_, c := newTestBridge(t, memoryEngine(), newFakeMedia())

	require.NoError(t, c.conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var resp rawResponse
	c.read(&resp)
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeBadRequest, resp.Error.Code)
}

func TestMediaControls(t *testing.T) {
	fm := newFakeMedia()
	_, c := newTestBridge(t, memoryEngine(), fm)

	for i, method := range []string{MethodPause, MethodResume, MethodStop} {
		resp := c.call(string(rune('1'+i)), method, nil)
		require.Nil(t, resp.Error)
	}
	require.Equal(t, []string{"pause", "resume", "stop"}, fm.Calls())
}

func TestPlayAnswersOnCompletion(t *testing.T) {
	fm := newFakeMedia()
	_, c := newTestBridge(t, memoryEngine(), fm)

	require.NoError(t, c.conn.WriteJSON(map[string]any{
		"id": "p1", "method": MethodPlay,
		"params": map[string]any{"uri": "https://example.com/a.mp3"},
	}))

	// Other requests are served while the sound plays
	resp := c.call("s1", MethodStatus, nil)
	var st Status
	require.NoError(t, json.Unmarshal(resp.Result, &st))
	require.Equal(t, "https://example.com/a.mp3", st.Media)

	fm.results <- nil
	var done rawResponse
	c.read(&done)
	require.Equal(t, "p1", done.ID)
	require.Nil(t, done.Error)
}

func TestPlayReportsFailure(t *testing.T) {
	fm := newFakeMedia()
	_, c := newTestBridge(t, memoryEngine(), fm)

	fm.results <- media.ErrResourceNotFound
	resp := c.call("p1", MethodPlay, map[string]any{"uri": "missing", "isResource": true})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodePlaybackError, resp.Error.Code)
	require.Equal(t, []string{"play missing"}, fm.Calls())
}

func TestBroadcastBeat(t *testing.T) {
	s, c := newTestBridge(t, memoryEngine(), newFakeMedia())
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	at := time.UnixMilli(1_700_000_000_000)
	s.BroadcastBeat(metronome.Beat{Index: 3, Role: metronome.Tock, At: at})

	var ev struct {
		Event string    `json:"event"`
		Data  BeatEvent `json:"data"`
	}
	c.read(&ev)
	require.Equal(t, EventBeat, ev.Event)
	require.Equal(t, BeatEvent{Index: 3, Role: "tock", At: at.UnixMilli()}, ev.Data)
}

func TestClientRemovedOnDisconnect(t *testing.T) {
	s, c := newTestBridge(t, memoryEngine(), newFakeMedia())
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	c.conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 0 }, time.Second, time.Millisecond)
}

func TestShutdownRefusesNewConnections(t *testing.T) {
	s := New(Config{Name: "test-bridge"}, memoryEngine(), newFakeMedia())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + Path

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	s.shutdown()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// The live connection is closed, so every counted goroutine drains
	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("connections still counted after shutdown")
	}
	require.Zero(t, s.Clients())
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&metronome.RangeError{Param: "bpm"}, CodeInvalidArgument},
		{metronome.ErrDeviceFault, CodeDeviceFault},
		{metronome.ErrShutdownTimeout, CodeDeviceFault},
		{media.ErrInterrupted, CodePlaybackError},
		{media.ErrPlayback, CodePlaybackError},
		{media.ErrInvalidURI, CodeInvalidArgument},
		{badRequest("x"), CodeBadRequest},
		{context.Canceled, CodeInternal},
	}

	for _, tt := range tests {
		if got := codeFor(tt.err); got != tt.want {
			t.Errorf("codeFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
