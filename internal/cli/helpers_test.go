package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const hotColdYAML = `name: hotCold
threads:
  - name: addHot
    repeat: 3
    syncs:
      - request: [{type: hot}]
  - name: addCold
    repeat: 3
    syncs:
      - request: [{type: cold}]
  - name: mixHotCold
    repeat: true
    syncs:
      - {wait_for: [{type: hot}], block: [{type: cold}]}
      - {wait_for: [{type: cold}], block: [{type: hot}]}
`

const doorYAML = `name: door
public_events: [open]
threads:
  - name: door
    syncs:
      - wait_for: [{type: open}]
      - request: [{type: opened}]
`

// writeFile writes content into dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs bpctl with an empty configuration file and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cfg := writeFile(t, t.TempDir(), "bpctl.toml", "")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", cfg, "--no-color"}, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

// response is CLIResponse with the payload left undecoded.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string, data any) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil && resp.Data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}
