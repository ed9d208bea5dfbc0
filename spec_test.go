package svsync

import (
	"reflect"
	"testing"
)

func TestServiceSpecClone(t *testing.T) {
	orig := ServiceSpec{
		Name:          "svc",
		RunCommand:    []string{"mysqld", "--skip-networking"},
		LogCommand:    []string{"svlogd", "./main"},
		StartDelay:    2,
		LogStartDelay: 1,
	}

	clone := orig.Clone()
	if !reflect.DeepEqual(clone, orig) {
		t.Fatalf("clone = %+v, want %+v", clone, orig)
	}

	clone.RunCommand[0] = "mutated"
	clone.LogCommand[0] = "mutated"
	if orig.RunCommand[0] != "mysqld" || orig.LogCommand[0] != "svlogd" {
		t.Error("clone shares slices with the original")
	}
}

func TestServiceSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    ServiceSpec
		wantErr bool
	}{
		{name: "valid", spec: ServiceSpec{Name: "x", RunCommand: []string{"true"}}},
		{name: "no name", spec: ServiceSpec{RunCommand: []string{"true"}}, wantErr: true},
		{name: "no command", spec: ServiceSpec{Name: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.spec.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	spec := ServiceSpec{
		Name:          "x",
		RunCommand:    []string{"true"},
		StartDelay:    -3,
		LogStartDelay: -1,
	}
	spec.applyDefaults()

	if !reflect.DeepEqual(spec.LogCommand, DefaultLogCommand) {
		t.Errorf("LogCommand = %q, want default", spec.LogCommand)
	}
	if spec.StartDelay != DefaultStartDelay || spec.LogStartDelay != DefaultStartDelay {
		t.Errorf("delays = %d/%d, want %d", spec.StartDelay, spec.LogStartDelay, DefaultStartDelay)
	}
}
