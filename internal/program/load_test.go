package program

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "p.yaml", hotColdYAML},
		{"yml", "p.yml", hotColdYAML},
		{"json", "p.json", `{"name": "hotCold", "threads": [{"name": "addHot", "repeat": 3, "syncs": [{"request": [{"type": "hot"}]}]}]}`},
		{"cue", "p.cue", `program: hotCold: threads: [{name: "addHot", repeat: 3, syncs: [{request: ["hot"]}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			programs, err := LoadFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, programs, 1)
			assert.Equal(t, "hotCold", programs[0].Name)
			assert.Equal(t, "addHot", programs[0].Threads[0].Name)
			assert.Equal(t, ir.RepeatTimes(3), programs[0].Threads[0].Repeat)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "p.txt", "x"))
	assert.ErrorContains(t, err, "unsupported program file")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read")

	_, err = LoadFile(writeFile(t, "p.yaml", "name: x\nthreadz: []\n"))
	assert.ErrorContains(t, err, "threadz")

	_, err = LoadFile(writeFile(t, "p.yaml", ""))
	assert.ErrorContains(t, err, "no program declared")
}

func TestDecode_MultipleDocuments(t *testing.T) {
	programs, err := Decode(strings.NewReader("name: a\nthreads: []\n---\nname: b\nthreads: []\n"))
	require.NoError(t, err)
	require.Len(t, programs, 2)

	p, err := Select(programs, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name)

	_, err = Select(programs, "")
	assert.ErrorContains(t, err, "choose one by name")

	_, err = Select(programs, "c")
	assert.ErrorContains(t, err, `program "c" not found`)
}

func TestLoad_Validates(t *testing.T) {
	p, err := Load(writeFile(t, "ok.yaml", hotColdYAML), "")
	require.NoError(t, err)
	assert.Equal(t, "hotCold", p.Name)

	_, err = Load(writeFile(t, "bad.yaml", "name: bad\nthreads: []\n"), "")
	var invalid *InvalidError
	assert.ErrorAs(t, err, &invalid)
}
