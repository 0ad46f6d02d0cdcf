package cli

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_Publishes(t *testing.T) {
	mr := startMiniredis(t)
	events := observe(t, mr.Addr(), "house")

	out, err := execute(t, "--format", "json", "trigger", "open",
		"--redis", mr.Addr(), "--channel", "house", "--origin", "cli", "--detail", `{"n":2}`)
	require.NoError(t, err)

	var result PublishResult
	decodeResponse(t, out, &result)
	assert.Equal(t, PublishResult{Type: "open", Channel: "house", Origin: "cli"}, result)

	select {
	case ev := <-events:
		assert.Equal(t, "open", ev.Type)
		assert.Equal(t, map[string]any{"n": uint64(2)}, ev.Detail)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTrigger_ChannelFromConfig(t *testing.T) {
	mr := startMiniredis(t)
	dir := t.TempDir()
	cfg := writeFile(t, dir, "bpctl.toml", "[bridge]\naddr = \""+mr.Addr()+"\"\nchannel = \"lights\"\n")
	events := observe(t, mr.Addr(), "lights")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfg, "trigger", "on"})
	cmd.SetOut(io.Discard)
	require.NoError(t, cmd.Execute())

	select {
	case ev := <-events:
		assert.Equal(t, "on", ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTrigger_Errors(t *testing.T) {
	mr := startMiniredis(t)

	_, err := execute(t, "trigger", "open", "--redis", mr.Addr(), "--detail", "{")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "trigger")
	require.Error(t, err)
}
