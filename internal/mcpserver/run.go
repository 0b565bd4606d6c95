package mcpserver

import (
	"context"
	"fmt"
	"os"

	"github.com/arvidh/inkwell/internal/noteservice"
	"github.com/arvidh/inkwell/internal/registry"
	"github.com/arvidh/inkwell/internal/storagemap"
)

// Run wires a registry, index session, and note service over the given data
// directory and serves the MCP tools on stdio until the transport closes.
func Run(_ context.Context, dataDir, defaultRepo string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	reg, err := registry.New(dataDir)
	if err != nil {
		return fmt.Errorf("init registry: %w", err)
	}
	defer reg.Close()

	if err := reg.EnsureDefault(defaultRepo); err != nil {
		return fmt.Errorf("ensure default repository: %w", err)
	}

	session := storagemap.NewSession()
	docs, err := reg.LoadAll()
	if err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	session.Dispatch(storagemap.Event{Type: storagemap.EventLoadAll, Docs: docs})

	svc := noteservice.New(reg, session)
	return New(svc, session).ServeStdio()
}
