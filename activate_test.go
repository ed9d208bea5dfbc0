package svsync

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestActivate(t *testing.T) {
	tmpDir := t.TempDir()
	staging := filepath.Join(tmpDir, "sv", "svc")
	activation := filepath.Join(tmpDir, "service", "svc")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(activation), 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("creates link", func(t *testing.T) {
		if err := Activate(staging, activation); err != nil {
			t.Fatal(err)
		}

		target, err := os.Readlink(activation)
		if err != nil {
			t.Fatal(err)
		}
		if target != staging {
			t.Errorf("target = %q, want %q", target, staging)
		}
	})

	t.Run("existing correct link is a no-op", func(t *testing.T) {
		if err := Activate(staging, activation); err != nil {
			t.Fatal(err)
		}
	})
}

func TestActivateConflicts(t *testing.T) {
	tmpDir := t.TempDir()
	staging := filepath.Join(tmpDir, "sv", "svc")
	if err := os.MkdirAll(staging, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("plain file", func(t *testing.T) {
		activation := filepath.Join(tmpDir, "occupied")
		if err := os.WriteFile(activation, []byte("precious"), 0o644); err != nil {
			t.Fatal(err)
		}

		err := Activate(staging, activation)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want *ConflictError", err)
		}
		if conflict.Path != activation {
			t.Errorf("conflict path = %q, want %q", conflict.Path, activation)
		}

		// The occupant is untouched
		data, err := os.ReadFile(activation)
		if err != nil || string(data) != "precious" {
			t.Errorf("occupant modified: %q, %v", data, err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		activation := filepath.Join(tmpDir, "dir-occupied")
		if err := os.Mkdir(activation, 0o755); err != nil {
			t.Fatal(err)
		}

		var conflict *ConflictError
		if err := Activate(staging, activation); !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want *ConflictError", err)
		}
	})

	t.Run("symlink to different target", func(t *testing.T) {
		activation := filepath.Join(tmpDir, "wrong-link")
		other := filepath.Join(tmpDir, "sv", "other")
		if err := os.Symlink(other, activation); err != nil {
			t.Fatal(err)
		}

		err := Activate(staging, activation)
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("err = %v, want *ConflictError", err)
		}
		if conflict.Target != other {
			t.Errorf("conflict target = %q, want %q", conflict.Target, other)
		}

		// The wrong link survives
		if target, _ := os.Readlink(activation); target != other {
			t.Errorf("link rewritten to %q", target)
		}
	})
}

func TestDeactivate(t *testing.T) {
	tmpDir := t.TempDir()
	activation := filepath.Join(tmpDir, "svc")
	if err := os.Symlink(filepath.Join(tmpDir, "target"), activation); err != nil {
		t.Fatal(err)
	}

	if err := Deactivate(activation); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(activation); !os.IsNotExist(err) {
		t.Error("link still present")
	}

	// Already removed is fine
	if err := Deactivate(activation); err != nil {
		t.Errorf("second Deactivate: %v", err)
	}
}
