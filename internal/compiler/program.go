package compiler

import (
	"encoding/json"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/bprogram/internal/ir"
)

// CompileFile compiles every program declared in a CUE file.
func CompileFile(path string) ([]*ir.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return CompileSource(path, src)
}

// CompileSource compiles every program under the top-level "program"
// struct, in declaration order:
//
//	program: hotCold: {
//		threads: [
//			{name: "addHot", syncs: [{request: [{type: "hot"}]}]},
//		]
//	}
func CompileSource(filename string, src []byte) ([]*ir.Program, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	root := v.LookupPath(cue.ParsePath("program"))
	if !root.Exists() {
		return nil, &CompileError{
			Field:   "program",
			Message: "no program declared",
			Pos:     v.Pos(),
		}
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var programs []*ir.Program
	for iter.Next() {
		p, err := CompileProgram(iter.Value())
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	return programs, nil
}

// CompileProgram parses a CUE value into a Program. The program name is
// the struct label unless the struct sets name explicitly.
func CompileProgram(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Program{}
	if labels := v.Path().Selectors(); len(labels) > 0 {
		p.Name = unquote(labels[len(labels)-1].String())
	}

	var err error
	if name, ok, err := optionalString(v, "name"); err != nil {
		return nil, err
	} else if ok {
		p.Name = name
	}
	if p.Strategy, _, err = optionalString(v, "strategy"); err != nil {
		return nil, err
	}

	if pub := v.LookupPath(cue.ParsePath("public_events")); pub.Exists() {
		events := []string{}
		if err := pub.Decode(&events); err != nil {
			return nil, &CompileError{Field: "public_events", Message: "must be a list of strings", Pos: pub.Pos()}
		}
		p.PublicEvents = events
	}

	threadsVal := v.LookupPath(cue.ParsePath("threads"))
	if !threadsVal.Exists() {
		return nil, &CompileError{
			Field:   "threads",
			Message: "threads is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := threadsVal.List()
	if err != nil {
		return nil, &CompileError{Field: "threads", Message: "must be a list", Pos: threadsVal.Pos()}
	}
	for i := 0; iter.Next(); i++ {
		th, err := parseThread(iter.Value(), fmt.Sprintf("threads[%d]", i))
		if err != nil {
			return nil, err
		}
		p.Threads = append(p.Threads, th)
	}

	return p, nil
}

func parseThread(v cue.Value, field string) (ir.ThreadSpec, error) {
	th := ir.ThreadSpec{}

	name, ok, err := optionalString(v, "name")
	if err != nil {
		return th, err
	}
	if !ok {
		return th, &CompileError{Field: field + ".name", Message: "name is required", Pos: v.Pos()}
	}
	th.Name = name

	if rv := v.LookupPath(cue.ParsePath("repeat")); rv.Exists() {
		r, err := parseRepeat(rv, field+".repeat")
		if err != nil {
			return th, err
		}
		th.Repeat = r
	}

	if sv := v.LookupPath(cue.ParsePath("shuffle")); sv.Exists() {
		b, err := sv.Bool()
		if err != nil {
			return th, &CompileError{Field: field + ".shuffle", Message: "must be a bool", Pos: sv.Pos()}
		}
		th.Shuffle = b
	}

	syncsVal := v.LookupPath(cue.ParsePath("syncs"))
	if !syncsVal.Exists() {
		return th, &CompileError{Field: field + ".syncs", Message: "syncs is required", Pos: v.Pos()}
	}
	iter, err := syncsVal.List()
	if err != nil {
		return th, &CompileError{Field: field + ".syncs", Message: "must be a list", Pos: syncsVal.Pos()}
	}
	th.Syncs = []ir.SyncSpec{}
	for i := 0; iter.Next(); i++ {
		s, err := parseSync(iter.Value(), fmt.Sprintf("%s.syncs[%d]", field, i))
		if err != nil {
			return th, err
		}
		th.Syncs = append(th.Syncs, s)
	}
	return th, nil
}

// parseRepeat accepts true/false or a non-negative integer.
func parseRepeat(v cue.Value, field string) (*ir.Repeat, error) {
	switch v.IncompleteKind() {
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &ir.Repeat{Forever: b}, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < 0 {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("must be >= 0, got %d", n), Pos: v.Pos()}
		}
		return &ir.Repeat{Times: int(n)}, nil
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("must be a bool or an int, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func parseSync(v cue.Value, field string) (ir.SyncSpec, error) {
	var s ir.SyncSpec
	var err error
	if s.Request, err = parseEvents(v, "request", field); err != nil {
		return s, err
	}
	if s.RandomRequest, err = parseEvents(v, "random_request", field); err != nil {
		return s, err
	}
	if s.WaitFor, err = parseMatchers(v, "wait_for", field); err != nil {
		return s, err
	}
	if s.Block, err = parseMatchers(v, "block", field); err != nil {
		return s, err
	}
	if s.Interrupt, err = parseMatchers(v, "interrupt", field); err != nil {
		return s, err
	}
	return s, nil
}

// parseEvents reads a list of events. A bare string is shorthand for
// {type: <string>}.
func parseEvents(v cue.Value, key, field string) ([]ir.EventSpec, error) {
	lv := v.LookupPath(cue.ParsePath(key))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field + "." + key, Message: "must be a list", Pos: lv.Pos()}
	}
	var out []ir.EventSpec
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		at := fmt.Sprintf("%s.%s[%d]", field, key, i)
		if s, err := ev.String(); err == nil {
			out = append(out, ir.EventSpec{Type: s})
			continue
		}
		typ, ok, err := optionalString(ev, "type")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &CompileError{Field: at + ".type", Message: "type is required", Pos: ev.Pos()}
		}
		spec := ir.EventSpec{Type: typ}
		if dv := ev.LookupPath(cue.ParsePath("detail")); dv.Exists() {
			if spec.Detail, err = decodeAny(dv, at+".detail"); err != nil {
				return nil, err
			}
		}
		out = append(out, spec)
	}
	return out, nil
}

// parseMatchers reads a list of matchers. A bare string is shorthand for
// {type: <string>}.
func parseMatchers(v cue.Value, key, field string) ([]ir.MatcherSpec, error) {
	lv := v.LookupPath(cue.ParsePath(key))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, &CompileError{Field: field + "." + key, Message: "must be a list", Pos: lv.Pos()}
	}
	var out []ir.MatcherSpec
	for i := 0; iter.Next(); i++ {
		mv := iter.Value()
		at := fmt.Sprintf("%s.%s[%d]", field, key, i)
		if s, err := mv.String(); err == nil {
			out = append(out, ir.MatcherSpec{Type: s})
			continue
		}
		var m ir.MatcherSpec
		if m.Type, _, err = optionalString(mv, "type"); err != nil {
			return nil, err
		}
		if m.Path, _, err = optionalString(mv, "path"); err != nil {
			return nil, err
		}
		if av := mv.LookupPath(cue.ParsePath("any")); av.Exists() {
			if m.Any, err = av.Bool(); err != nil {
				return nil, &CompileError{Field: at + ".any", Message: "must be a bool", Pos: av.Pos()}
			}
		}
		if ev := mv.LookupPath(cue.ParsePath("equals")); ev.Exists() {
			if m.Equals, err = decodeAny(ev, at+".equals"); err != nil {
				return nil, err
			}
		}
		if xv := mv.LookupPath(cue.ParsePath("exists")); xv.Exists() {
			b, err := xv.Bool()
			if err != nil {
				return nil, &CompileError{Field: at + ".exists", Message: "must be a bool", Pos: xv.Pos()}
			}
			m.Exists = &b
		}
		out = append(out, m)
	}
	return out, nil
}

// decodeAny converts a concrete CUE value to its JSON data model.
func decodeAny(v cue.Value, field string) (any, error) {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &CompileError{Field: field, Message: "must be concrete", Pos: v.Pos()}
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return out, nil
}

func optionalString(v cue.Value, key string) (string, bool, error) {
	sv := v.LookupPath(cue.ParsePath(key))
	if !sv.Exists() {
		return "", false, nil
	}
	s, err := sv.String()
	if err != nil {
		return "", false, &CompileError{Field: key, Message: "must be a string", Pos: sv.Pos()}
	}
	return s, true, nil
}

func unquote(label string) string {
	if len(label) >= 2 && label[0] == '"' && label[len(label)-1] == '"' {
		return label[1 : len(label)-1]
	}
	return label
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
