// Package testutil provides shared test helpers for setting up repositories
// and services.
package testutil

import (
	"testing"

	"github.com/arvidh/inkwell/internal/noteservice"
	"github.com/arvidh/inkwell/internal/registry"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// TestRegistry creates a registry over a temporary data directory that is
// automatically cleaned up.
func TestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

// TestService creates a note service over a fresh repository, with a live
// index session wired as its dispatcher.
func TestService(t *testing.T, repo string) (*noteservice.Service, *storagemap.Session) {
	t.Helper()
	reg := TestRegistry(t)
	if err := reg.EnsureDefault(repo); err != nil {
		t.Fatal(err)
	}

	session := storagemap.NewSession()
	docs, err := reg.LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	session.Dispatch(storagemap.Event{Type: storagemap.EventLoadAll, Docs: docs})

	return noteservice.New(reg, session), session
}
