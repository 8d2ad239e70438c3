package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/sse"
)

// EventsHandle runs the SSE broadcast loop for the life of the container.
type EventsHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventsHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideEvents provides the engagement event stream and starts broadcasting.
func ProvideEvents(i do.Injector) (*EventsHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	return &EventsHandle{Manager: manager, cancel: cancel}, nil
}
