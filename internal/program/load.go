package program

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bprogram/internal/compiler"
	"github.com/roach88/bprogram/internal/ir"
)

// LoadFile reads every program in a file. CUE files go through the
// compiler; YAML and JSON files hold one program per document.
func LoadFile(path string) ([]*ir.Program, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return compiler.CompileFile(path)
	case ".yaml", ".yml", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		programs, err := Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return programs, nil
	default:
		return nil, fmt.Errorf("unsupported program file %s: want .cue, .yaml, .yml or .json", path)
	}
}

// Decode reads YAML (or JSON) program documents. Unknown fields are
// rejected.
func Decode(r io.Reader) ([]*ir.Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var programs []*ir.Program
	for {
		var p ir.Program
		err := dec.Decode(&p)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		programs = append(programs, &p)
	}
	if len(programs) == 0 {
		return nil, errors.New("no program declared")
	}
	return programs, nil
}

// Select picks the program called name. An empty name selects the only
// program of a single-program file.
func Select(programs []*ir.Program, name string) (*ir.Program, error) {
	if name == "" {
		if len(programs) == 1 {
			return programs[0], nil
		}
		names := make([]string, len(programs))
		for i, p := range programs {
			names[i] = p.Name
		}
		return nil, fmt.Errorf("file declares %d programs (%s); choose one by name", len(programs), strings.Join(names, ", "))
	}
	for _, p := range programs {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("program %q not found", name)
}

// Load reads path, selects a program and validates it.
func Load(path, name string) (*ir.Program, error) {
	programs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Select(programs, name)
	if err != nil {
		return nil, err
	}
	if err := Check(p); err != nil {
		return nil, err
	}
	return p, nil
}
