// Package mdns announces a TaleForge server on the local network through the
// Avahi daemon and lets clients browse for announced servers.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"

	"github.com/taleforge/taleforge/internal/logger"
)

const (
	// ServiceType is the mDNS service type for TaleForge servers.
	ServiceType = "_taleforge._tcp"

	// APIVersion is the current API version advertised in TXT records.
	APIVersion = "v1"

	// ServerVersion is the server version advertised in TXT records.
	ServerVersion = "1.0.0"

	domain = "local"
)

// Service manages mDNS advertisement for the server. Start fails where no Avahi
// daemon is reachable on the system bus (containers, macOS); callers treat that as
// non-fatal.
type Service struct {
	conn   *dbus.Conn
	server *avahi.Server
	group  *avahi.EntryGroup
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new mDNS service.
func NewService(log *slog.Logger) *Service {
	return &Service{logger: logger.OrDiscard(log)}
}

// txtRecords describes the server to browsing clients.
func txtRecords(name string) [][]byte {
	return [][]byte{
		[]byte("name=" + name),
		[]byte("version=" + ServerVersion),
		[]byte("api=" + APIVersion),
	}
}

// instanceName is the announced service name: the configured name, qualified by
// host so two servers on one network stay distinct.
func instanceName(name string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return name
	}
	return fmt.Sprintf("%s on %s", name, host)
}

// Start announces the server under name on port. Calling Start again replaces
// the previous announcement.
func (s *Service) Start(name string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("connect to system bus: %w", err)
	}
	server, err := avahi.ServerNew(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("connect to avahi: %w", err)
	}
	group, err := server.EntryGroupNew()
	if err != nil {
		server.Close()
		conn.Close()
		return fmt.Errorf("create entry group: %w", err)
	}

	err = group.AddService(avahi.InterfaceUnspec, avahi.ProtoUnspec, 0,
		instanceName(name), ServiceType, domain, "", uint16(port), txtRecords(name))
	if err == nil {
		err = group.Commit()
	}
	if err != nil {
		server.EntryGroupFree(group)
		server.Close()
		conn.Close()
		return fmt.Errorf("publish service: %w", err)
	}

	s.conn, s.server, s.group = conn, server, group
	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", name,
	)
	return nil
}

// Stop withdraws the announcement. Safe to call multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Service) stopLocked() {
	if s.server == nil {
		return
	}
	if err := s.group.Reset(); err != nil {
		s.logger.Debug("reset entry group", "error", err)
	}
	s.server.EntryGroupFree(s.group)
	s.server.Close()
	_ = s.conn.Close()
	s.conn, s.server, s.group = nil, nil, nil
	s.logger.Info("mDNS advertisement stopped")
}
