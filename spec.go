package svsync

import "fmt"

// ServiceSpec is the desired state for one supervised service. Specs are
// built fresh on every reconciliation run and are never persisted; the
// on-disk service directory is the only durable state.
type ServiceSpec struct {
	// Name is the service name, unique across all configuration records
	Name string
	// RunCommand is the argument vector for the service process;
	// the first element is the executable
	RunCommand []string
	// LogCommand is the argument vector for the log forwarder
	LogCommand []string
	// StartDelay is the delay in seconds before the service execs
	StartDelay int
	// LogStartDelay is the delay in seconds before the log forwarder execs
	LogStartDelay int
}

// Clone creates a deep copy of the ServiceSpec
func (s ServiceSpec) Clone() ServiceSpec {
	clone := s
	if s.RunCommand != nil {
		clone.RunCommand = append([]string(nil), s.RunCommand...)
	}
	if s.LogCommand != nil {
		clone.LogCommand = append([]string(nil), s.LogCommand...)
	}
	return clone
}

// Validate checks that the spec can be materialized
func (s ServiceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("service name not specified")
	}
	if len(s.RunCommand) == 0 {
		return fmt.Errorf("service %q: command not specified", s.Name)
	}
	return nil
}

// applyDefaults fills in the built-in log forwarder and timing defaults
// for fields configuration left unset. Negative delays are normalized,
// not rejected.
func (s *ServiceSpec) applyDefaults() {
	if len(s.LogCommand) == 0 {
		s.LogCommand = append([]string(nil), DefaultLogCommand...)
	}
	if s.StartDelay < 0 {
		s.StartDelay = DefaultStartDelay
	}
	if s.LogStartDelay < 0 {
		s.LogStartDelay = DefaultStartDelay
	}
}
