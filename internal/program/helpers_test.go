package program

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

func quiet() engine.Option {
	return engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func decodeOne(t *testing.T, src string) *ir.Program {
	t.Helper()
	programs, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, programs, 1)
	return programs[0]
}

// selections records the selected event types of an engine.
func selections(e *engine.Engine) *[]string {
	var out []string
	e.UseSnapshot(func(msg engine.SnapshotMessage) {
		if b, ok := msg.Selected(); ok {
			out = append(out, b.Type)
		}
	})
	return &out
}
