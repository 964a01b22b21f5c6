// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Only ${...} is a placeholder; a bare $ is left alone so packager
// templates such as $Number$ pass through.
var placeholder = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// PipeEnds are the paths of the two ends of a named pipe.
type PipeEnds struct {
	Read  string
	Write string
}

// Vars resolves the placeholders of command arguments.
type Vars struct {
	Output  string
	TempDir string
	Pipes   map[string]PipeEnds
}

func (v Vars) lookup(name string) (string, bool) {
	switch name {
	case "output":
		return v.Output, true
	case "temp_dir":
		return v.TempDir, true
	}
	rest, ok := strings.CutPrefix(name, "pipe.")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, ".")
	if i < 0 {
		return "", false
	}
	ends, ok := v.Pipes[rest[:i]]
	if !ok {
		return "", false
	}
	switch rest[i+1:] {
	case "read":
		return ends.Read, true
	case "write":
		return ends.Write, true
	}
	return "", false
}

// Expand substitutes every placeholder in arg.
func (v Vars) Expand(arg string) (string, error) {
	var err error
	out := placeholder.ReplaceAllStringFunc(arg, func(m string) string {
		name := m[2 : len(m)-1]
		val, ok := v.lookup(name)
		if !ok && err == nil {
			err = fmt.Errorf("%w: unknown placeholder %s", ErrInvalidConfig, m)
		}
		return val
	})
	return out, err
}

// ExpandAll substitutes the placeholders of every argument.
func (v Vars) ExpandAll(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		e, err := v.Expand(a)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}
