// Package logging provides the shared structured logger for the emulator.
//
// The core (cpu, ppu, bus) runs millions of operations a second; it never logs on its
// own. This logger is used only by the host in cmd/gones: at ROM load, when the GUI
// loop starts, and on ROM-load or GUI errors.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a text-handler logger writing to stderr.
func New() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// Discard returns a logger that drops everything, for tests that don't care about logs.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
