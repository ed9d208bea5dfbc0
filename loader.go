package svsync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// A Record is one configuration source: a mapping from service name to the
// raw settings for that service. Raw values are kept untyped so that timing
// fields can be normalized silently instead of failing the decode.
type Record struct {
	// Source identifies where the record came from, used in error messages
	Source string
	// Services maps service name to its raw settings
	Services map[string]map[string]any
}

// Load validates zero or more configuration records and produces the
// desired-state map. It touches no filesystem state.
//
// A record with no services, a service without a run sequence, a log value
// that is not a sequence, or a service name appearing in more than one
// record all fail with a *LoadError and no map is returned. Absent,
// negative, or non-numeric sleep/logsleep values silently default to
// DefaultStartDelay.
func Load(records ...Record) (map[string]ServiceSpec, error) {
	desired := make(map[string]ServiceSpec)
	origin := make(map[string]string)

	for _, rec := range records {
		if len(rec.Services) == 0 {
			return nil, &LoadError{Source: rec.Source, Err: ErrEmptyRecord}
		}

		// Deterministic error reporting regardless of map order
		names := make([]string, 0, len(rec.Services))
		for name := range rec.Services {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if prev, ok := origin[name]; ok {
				return nil, &LoadError{
					Source: rec.Source,
					Name:   name,
					Err:    fmt.Errorf("%w (also defined in %s)", ErrDuplicateService, prev),
				}
			}

			spec, err := parseSpec(name, rec.Services[name])
			if err != nil {
				return nil, &LoadError{Source: rec.Source, Name: name, Err: err}
			}

			desired[name] = spec
			origin[name] = rec.Source
		}
	}

	return desired, nil
}

// parseSpec converts one raw service mapping into a validated ServiceSpec
func parseSpec(name string, raw map[string]any) (ServiceSpec, error) {
	spec := ServiceSpec{Name: name}

	run, ok := stringSlice(raw["run"])
	if !ok || len(run) == 0 {
		return ServiceSpec{}, ErrRunMissing
	}
	spec.RunCommand = run

	if logVal, present := raw["log"]; present {
		logCmd, ok := stringSlice(logVal)
		if !ok {
			return ServiceSpec{}, ErrLogNotSequence
		}
		spec.LogCommand = logCmd
	}

	spec.StartDelay = delayValue(raw["sleep"])
	spec.LogStartDelay = delayValue(raw["logsleep"])
	spec.applyDefaults()

	return spec, nil
}

// stringSlice coerces a raw YAML value into a []string. Sequences with
// non-string elements are rejected.
func stringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return append([]string(nil), vv...), true
	case []any:
		out := make([]string, 0, len(vv))
		for _, elem := range vv {
			s, ok := elem.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// delayValue coerces a raw sleep/logsleep value into a non-negative number
// of seconds, falling back to DefaultStartDelay for anything absent,
// negative, or non-numeric.
func delayValue(v any) int {
	var n int
	switch vv := v.(type) {
	case int:
		n = vv
	case int64:
		n = int(vv)
	case uint64:
		n = int(vv)
	default:
		return DefaultStartDelay
	}
	if n < 0 {
		return DefaultStartDelay
	}
	return n
}

// LoadFile reads one YAML configuration file into a Record
func LoadFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, &LoadError{Source: path, Err: err}
	}

	var services map[string]map[string]any
	if err := yaml.Unmarshal(data, &services); err != nil {
		return Record{}, &LoadError{Source: path, Err: err}
	}

	return Record{Source: path, Services: services}, nil
}

// LoadDir reads every *.yml / *.yaml file directly under dir, in lexical
// order, into Records. Hidden files are skipped.
func LoadDir(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &LoadError{Source: dir, Err: err}
	}

	var records []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if ext := filepath.Ext(name); ext != ".yml" && ext != ".yaml" {
			continue
		}

		rec, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}
