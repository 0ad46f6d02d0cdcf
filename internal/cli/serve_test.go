package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/bridge"
	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
	"github.com/roach88/bprogram/internal/store"
)

func startMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	return mr
}

// observe subscribes to channel and returns the events other peers publish.
func observe(t *testing.T, addr, channel string) <-chan engine.Event {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	events := make(chan engine.Event, 16)
	b, err := bridge.New(rdb, channel, "observer", func(ev engine.Event) { events <- ev },
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	select {
	case <-b.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not subscribe")
	}
	return events
}

func TestServe_GatesAndForwards(t *testing.T) {
	mr := startMiniredis(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "door.yaml", doorYAML)
	db := filepath.Join(dir, "traces.db")
	forwarded := observe(t, mr.Addr(), "house")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	type served struct {
		out string
		err error
	}
	done := make(chan served, 1)
	go func() {
		out, err := executeContext(t, ctx, "--format", "json", "serve", file,
			"--redis", mr.Addr(), "--channel", "house", "--origin", "engine-1",
			"--forward", "opened", "--db", db)
		done <- served{out, err}
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("house")["house"] >= 2
	}, 2*time.Second, 10*time.Millisecond, "serve did not subscribe")

	_, err := execute(t, "trigger", "opened", "--redis", mr.Addr(), "--channel", "house")
	require.NoError(t, err)
	_, err = execute(t, "trigger", "open", "--redis", mr.Addr(), "--channel", "house", "--detail", `{"door":"front"}`)
	require.NoError(t, err)

	var seen []string
	timeout := time.After(2 * time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-forwarded:
			seen = append(seen, ev.Type)
		case <-timeout:
			t.Fatalf("timed out waiting for forwarded event, saw %v", seen)
		}
	}
	assert.Equal(t, []string{"opened", "open", "opened"}, seen, "both triggers and the forwarded selection")

	cancel()
	var result served
	select {
	case result = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
	require.NoError(t, result.err)

	var summary ServeResult
	decodeResponse(t, result.out, &summary)
	assert.Equal(t, "door", summary.Program)
	assert.Equal(t, "engine-1", summary.Origin)
	assert.Equal(t, int64(2), summary.Steps)
	require.NotEmpty(t, summary.RunID)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	trace, err := st.ReadTrace(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "opened"}, ir.SelectedTypes(trace.Selections))
	require.Len(t, trace.Triggers, 2)
	assert.False(t, trace.Triggers[0].Accepted, "opened is not public")
	assert.True(t, trace.Triggers[1].Public)
}

func TestServe_RedisUnreachable(t *testing.T) {
	mr := startMiniredis(t)
	addr := mr.Addr()
	mr.Close()
	file := writeFile(t, t.TempDir(), "door.yaml", doorYAML)

	_, err := execute(t, "serve", file, "--redis", addr)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "is unreachable")
}

func TestServe_BadProgram(t *testing.T) {
	_, err := execute(t, "serve", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
