package adapter

import (
	"context"
	"log/slog"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/transport"
)

// Maintenance exposes administrative operations that are not part of
// Storage. It is meant for test harnesses and operator tooling.
type Maintenance struct {
	handle transport.Handle
	logger *slog.Logger
}

// NewMaintenance returns a maintenance entry point sending through handle.
func NewMaintenance(handle transport.Handle, logger *slog.Logger) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{handle: handle, logger: logger}
}

// ClearAll atomically removes every entry of the instance behind the handle.
func (m *Maintenance) ClearAll(ctx context.Context) error {
	if _, err := exchange(ctx, m.handle, &protocol.Request{Op: domain.OpClearAll}); err != nil {
		m.logger.Error("clear all failed", "error", err)
		return err
	}
	m.logger.Info("instance cleared")
	return nil
}
