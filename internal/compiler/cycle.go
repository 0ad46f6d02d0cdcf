package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bprogram/internal/ir"
)

// CycleWarning represents an event chain that may never quiesce.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Tickers guarded by another thread's block
//   - Ping-pong protocols ended by a counter or an external event
//   - Programs run with a step budget on purpose
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["ping", "pong", "ping"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static livelock analysis on a program.
//
// It builds an event dependency graph: an edge a → b means that selecting a
// resumes some thread whose next sync point requests b. A strongly
// connected component in that graph is a chain of events that can keep
// selecting itself without any external trigger; such a drain only ends
// when a block intervenes or the step budget runs out.
//
// The algorithm:
//  1. Build event → event edges from consecutive sync points of each thread
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle
//
// Blocks are ignored, so a reported cycle may be harmless in practice.
// Only unbounded repeats close a thread's last sync point back to its first.
func AnalyzeCycles(p *ir.Program) []CycleWarning {
	if p == nil || len(p.Threads) == 0 {
		return []CycleWarning{}
	}

	graph := buildDependencyGraph(p)
	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Message, b.Message)
	})
	return warnings
}

// dependencyGraph maps event type → event types its selection may lead to.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the event dependency graph.
//
// For sync point i of a thread, the events that advance it are its plain
// requests and its type-matching waits. Each of them gets an edge to every
// event the following sync point requests. Shuffled threads may run their
// sync points in any order, so every pair is connected.
func buildDependencyGraph(p *ir.Program) dependencyGraph {
	graph := make(dependencyGraph)
	addEdge := func(from, to string) {
		if !slices.Contains(graph[from], to) {
			graph[from] = append(graph[from], to)
		}
		if graph[to] == nil {
			graph[to] = []string{}
		}
	}

	for _, th := range p.Threads {
		n := len(th.Syncs)
		forever := th.Repeat != nil && th.Repeat.Forever
		for i, s := range th.Syncs {
			var next []int
			switch {
			case th.Shuffle:
				for j := range th.Syncs {
					if j != i || forever {
						next = append(next, j)
					}
				}
			case i+1 < n:
				next = []int{i + 1}
			case forever:
				next = []int{0}
			}
			for _, from := range advancers(s) {
				for _, j := range next {
					for _, to := range requested(th.Syncs[j]) {
						addEdge(from, to)
					}
				}
			}
		}
	}

	return graph
}

func advancers(s ir.SyncSpec) []string {
	out := requested(s)
	for _, m := range s.WaitFor {
		if m.Type != "" {
			out = append(out, m.Type)
		}
	}
	return out
}

func requested(s ir.SyncSpec) []string {
	var out []string
	for _, ev := range s.Request {
		out = append(out, ev.Type)
	}
	for _, ev := range s.RandomRequest {
		out = append(out, ev.Type)
	}
	return out
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in sorted order so results are deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		ev := scc[0]
		return CycleWarning{
			Path:    []string{ev, ev},
			Message: fmt.Sprintf("Self-sustaining event: %s → %s", ev, ev),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential livelock: %s", strings.Join(path, " → ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its first node
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
