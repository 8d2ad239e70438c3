package mdns

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

// Server is one TaleForge server found on the local network.
type Server struct {
	Name    string
	Host    string
	Address string
	Port    int
	Version string
	API     string
}

// URL returns the server's API base URL.
func (s Server) URL() string {
	return "http://" + net.JoinHostPort(s.Address, strconv.Itoa(s.Port))
}

// parseTXT fills name, version and api from TXT records.
func (s *Server) parseTXT(records [][]byte) {
	for _, r := range records {
		k, v, ok := strings.Cut(string(r), "=")
		if !ok {
			continue
		}
		switch k {
		case "name":
			s.Name = v
		case "version":
			s.Version = v
		case "api":
			s.API = v
		}
	}
}

// Discover browses for servers until wait elapses or ctx is done, and returns
// the ones it could resolve, sorted by name.
func Discover(ctx context.Context, wait time.Duration) ([]Server, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	defer conn.Close()

	server, err := avahi.ServerNew(conn)
	if err != nil {
		return nil, fmt.Errorf("connect to avahi: %w", err)
	}
	defer server.Close()

	browser, err := server.ServiceBrowserNew(avahi.InterfaceUnspec, avahi.ProtoUnspec, ServiceType, domain, 0)
	if err != nil {
		return nil, fmt.Errorf("browse %s: %w", ServiceType, err)
	}
	defer server.ServiceBrowserFree(browser)

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	// keyed by instance name; the TXT name may be shared by several hosts
	found := make(map[string]Server)
	for {
		select {
		case entry := <-browser.AddChannel:
			resolved, err := server.ResolveService(entry.Interface, entry.Protocol,
				entry.Name, entry.Type, entry.Domain, avahi.ProtoUnspec, 0)
			if err != nil {
				continue
			}
			srv := Server{Name: resolved.Name, Host: resolved.Host, Address: resolved.Address, Port: int(resolved.Port)}
			srv.parseTXT(resolved.Txt)
			found[entry.Name] = srv

		case entry := <-browser.RemoveChannel:
			delete(found, entry.Name)

		case <-ctx.Done():
			out := make([]Server, 0, len(found))
			for _, srv := range found {
				out = append(out, srv)
			}
			slices.SortFunc(out, func(a, b Server) int {
				return strings.Compare(a.Name+a.URL(), b.Name+b.URL())
			})
			return out, nil
		}
	}
}
