package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bprogram/internal/engine"
	"github.com/roach88/bprogram/internal/ir"
)

const hotColdYAML = `
name: hotCold
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

func TestInstantiate_HotCold(t *testing.T) {
	inst, err := Instantiate(decodeOne(t, hotColdYAML), seeded(1), quiet())
	require.NoError(t, err)
	got := selections(inst.Engine)

	inst.Trigger(engine.Event{Type: "start"})

	assert.Equal(t, []string{"start", "hot", "cold", "hot", "cold", "hot", "cold"}, *got)
	assert.Equal(t, []string{"mixHotCold"}, inst.Engine.Threads().Names())
}

func TestInstantiate_PublicEventsGate(t *testing.T) {
	p := decodeOne(t, `
name: gated
public_events: [open]
threads:
  - name: door
    syncs:
      - wait_for: [{type: open}]
      - request: [{type: opened}]
`)
	inst, err := Instantiate(p, nil, quiet())
	require.NoError(t, err)
	got := selections(inst.Engine)

	inst.Trigger(engine.Event{Type: "opened"})
	assert.Empty(t, *got)

	inst.Trigger(engine.Event{Type: "open"})
	assert.Equal(t, []string{"open", "opened"}, *got)
}

func TestInstantiate_OptionsOverrideProgramStrategy(t *testing.T) {
	p := decodeOne(t, `
name: pick
threads:
  - name: a
    syncs: [{request: [{type: a}]}]
  - name: b
    syncs: [{request: [{type: b}]}]
`)
	replay := engine.NewReplay([]string{"go", "b", "a"})
	inst, err := Instantiate(p, nil, quiet(), engine.WithStrategy(replay.Strategy()))
	require.NoError(t, err)
	got := selections(inst.Engine)

	inst.Trigger(engine.Event{Type: "go"})

	assert.Equal(t, []string{"go", "b", "a"}, *got)
	assert.True(t, replay.Complete())
}

func TestInstantiate_DetailMatchers(t *testing.T) {
	p := decodeOne(t, `
name: bank
threads:
  - name: limit
    repeat: true
    syncs:
      - block:
          - {type: withdraw, path: amount, equals: 500}
          - {path: account.frozen, equals: true}
`)
	inst, err := Instantiate(p, nil, quiet())
	require.NoError(t, err)
	got := selections(inst.Engine)

	inst.Trigger(engine.Event{Type: "withdraw", Detail: map[string]any{"amount": 500}})
	inst.Trigger(engine.Event{Type: "deposit", Detail: map[string]any{"account": map[string]any{"frozen": true}}})
	inst.Trigger(engine.Event{Type: "withdraw", Detail: map[string]any{"amount": 20}})

	assert.Equal(t, []string{"withdraw"}, *got)
}

func TestInstantiate_RandomRequestAndShuffle(t *testing.T) {
	p := decodeOne(t, `
name: fuzz
threads:
  - name: coin
    repeat: 20
    syncs:
      - random_request: [{type: heads}, {type: tails}]
  - name: steps
    shuffle: true
    syncs:
      - request: [{type: one}]
      - request: [{type: two}]
      - request: [{type: three}]
`)
	inst, err := Instantiate(p, seeded(7), quiet())
	require.NoError(t, err)
	got := selections(inst.Engine)

	inst.Trigger(engine.Event{Type: "go"})

	counts := map[string]int{}
	for _, typ := range *got {
		counts[typ]++
	}
	assert.Equal(t, 20, counts["heads"]+counts["tails"])
	assert.Positive(t, counts["heads"])
	assert.Positive(t, counts["tails"])
	assert.Equal(t, 1, counts["one"])
	assert.Equal(t, 1, counts["two"])
	assert.Equal(t, 1, counts["three"])
}

func TestInstantiate_ForeverWithStepBudget(t *testing.T) {
	p := &ir.Program{Name: "ticker", Threads: []ir.ThreadSpec{{
		Name:   "tick",
		Repeat: ir.RepeatForever(),
		Syncs:  []ir.SyncSpec{{Request: []ir.EventSpec{{Type: "tick"}}}},
	}}}
	inst, err := Instantiate(p, nil, quiet(), engine.WithMaxSteps(5))
	require.NoError(t, err)
	got := selections(inst.Engine)

	inst.Trigger(engine.Event{Type: "start"})

	assert.Equal(t, []string{"start", "tick", "tick", "tick", "tick"}, *got)
}

func TestDefinition_Invalid(t *testing.T) {
	_, err := Definition(&ir.Program{Name: "empty"}, nil)
	require.Error(t, err)

	var invalid *InvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "empty", invalid.Program)
	assert.Contains(t, err.Error(), "at least one thread is required")

	_, err = Definition(&ir.Program{Name: "s", Strategy: "nope", Threads: []ir.ThreadSpec{
		{Name: "a", Syncs: []ir.SyncSpec{{Request: []ir.EventSpec{{Type: "a"}}}}},
	}}, nil)
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestIdiom(t *testing.T) {
	idiom, err := Idiom(ir.SyncSpec{
		Request: []ir.EventSpec{{Type: "a", Detail: 1}},
		WaitFor: []ir.MatcherSpec{{Type: "b"}},
		Block:   []ir.MatcherSpec{{Type: "c"}},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []engine.Event{{Type: "a", Detail: 1}}, idiom.Request)
	assert.Nil(t, idiom.Template)
	assert.Equal(t, engine.On("b"), idiom.WaitFor)
	assert.Equal(t, engine.On("c"), idiom.Block)
	assert.Nil(t, idiom.Interrupt)

	_, err = Idiom(ir.SyncSpec{Block: []ir.MatcherSpec{{Equals: 1}}}, nil)
	assert.ErrorContains(t, err, "block: [0]: equals and exists require a path")
}
