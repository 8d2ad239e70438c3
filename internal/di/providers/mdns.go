package providers

import (
	"net"

	"github.com/samber/do/v2"

	"github.com/taleforge/taleforge/internal/config"
	"github.com/taleforge/taleforge/internal/logger"
	"github.com/taleforge/taleforge/internal/mdns"
)

// MDNSHandle wraps the mDNS advertiser with shutdown capability.
type MDNSHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *MDNSHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideMDNS announces the running HTTP server on the local network when enabled.
// A missing Avahi daemon is logged and otherwise ignored.
func ProvideMDNS(i do.Injector) (*MDNSHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	httpServer := do.MustInvoke[*HTTPServerHandle](i)

	svc := mdns.NewService(log.Logger)
	if !cfg.Server.Advertise {
		return &MDNSHandle{Service: svc}, nil
	}

	port := 0
	if addr, ok := httpServer.ListenAddr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	if err := svc.Start(cfg.Server.Name, port); err != nil {
		log.Warn("mDNS advertisement unavailable", "error", err)
	}
	return &MDNSHandle{Service: svc}, nil
}
