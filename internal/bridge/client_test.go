// ABOUTME: Tests for the bridge client
// ABOUTME: Runs the client against a live bridge backed by a memory engine
package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-metronome/pkg/metronome"
	"github.com/stretchr/testify/require"
)

func dialTestBridge(t *testing.T, m Metronome, p Media) (*Server, *Client) {
	t.Helper()

	s := New(Config{Name: "client-test"}, m, p)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := Dial(ctx, strings.TrimPrefix(ts.URL, "http://"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	return s, c
}

func TestClientCalls(t *testing.T) {
	engine := memoryEngine()
	defer engine.Stop()
	_, c := dialTestBridge(t, engine, newFakeMedia())

	require.Equal(t, "client-test", c.Hello().Name)

	ctx := context.Background()
	require.NoError(t, c.Call(ctx, MethodStartMetronome, StartParams{BPM: ptr(100.0), Volume: ptr(0.6)}, nil))

	var st Status
	require.NoError(t, c.Call(ctx, MethodStatus, nil, &st))
	require.True(t, st.Running)
	require.Equal(t, 100.0, st.BPM)

	require.NoError(t, c.Call(ctx, MethodStopMetronome, nil, nil))
	require.False(t, engine.Running())
}

func TestClientReportsBridgeErrors(t *testing.T) {
	_, c := dialTestBridge(t, memoryEngine(), newFakeMedia())

	err := c.Call(context.Background(), MethodSetMetronomeBPM, BPMParams{BPM: ptr(10.0)}, nil)

	var bridgeErr *Error
	require.True(t, errors.As(err, &bridgeErr))
	require.Equal(t, CodeInvalidArgument, bridgeErr.Code)
	require.Contains(t, err.Error(), "invalid_argument: ")
}

func TestClientConcurrentCalls(t *testing.T) {
	_, c := dialTestBridge(t, memoryEngine(), newFakeMedia())

	errs := make(chan error, 20)
	for i := 0; i < cap(errs); i++ {
		go func() {
			var st Status
			errs <- c.Call(context.Background(), MethodStatus, nil, &st)
		}()
	}
	for i := 0; i < cap(errs); i++ {
		require.NoError(t, <-errs)
	}
}

func TestClientReceivesBeats(t *testing.T) {
	s, c := dialTestBridge(t, memoryEngine(), newFakeMedia())
	require.Eventually(t, func() bool { return s.Clients() == 1 }, time.Second, time.Millisecond)

	s.BroadcastBeat(metronome.Beat{Index: 0, Role: metronome.Tick, At: time.UnixMilli(5)})

	select {
	case beat := <-c.Beats():
		require.Equal(t, BeatEvent{Index: 0, Role: "tick", At: 5}, beat)
	case <-time.After(2 * time.Second):
		t.Fatal("no beat received")
	}
}

func TestClientCallAfterClose(t *testing.T) {
	_, c := dialTestBridge(t, memoryEngine(), newFakeMedia())
	require.NoError(t, c.Close())

	err := c.Call(context.Background(), MethodStatus, nil, nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestClientCallHonoursContext(t *testing.T) {
	fm := newFakeMedia()
	_, c := dialTestBridge(t, memoryEngine(), fm)

	// play is answered only when playback ends, which never happens here
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Call(ctx, MethodPlay, PlayParams{URI: "https://example.com/long.mp3"}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFoundAddr(t *testing.T) {
	f := Found{Name: "studio", Host: "192.168.1.20", Port: 8928}
	require.Equal(t, "192.168.1.20:8928", f.Addr())
}

func ptr[T any](v T) *T { return &v }
