// Package discovery finds servers announced over mDNS as _mpd._tcp.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"
	"github.com/tessro/cadence/internal/core"
)

const (
	service    = "_mpd._tcp"
	domain     = "local."
	defaultTTL = 5 * time.Minute
)

// Server is a discovered server.
type Server struct {
	Instance string    `json:"instance"`
	Host     string    `json:"host"`
	IP       string    `json:"ip"`
	Port     int       `json:"port"`
	LastSeen time.Time `json:"last_seen"`
}

// Profile converts s to a connection profile named after the instance.
func (s *Server) Profile() core.ServerProfile {
	return core.ServerProfile{Name: s.Instance, Host: s.IP, Port: s.Port}
}

// Discovery browses for servers and caches what it finds.
type Discovery struct {
	timeout time.Duration
	ttl     time.Duration
	browse  func(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error

	mu      sync.RWMutex
	servers map[string]*Server // keyed by instance name
}

// New creates a Discovery that browses for timeout per call.
func New(timeout time.Duration) *Discovery {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &Discovery{
		timeout: timeout,
		ttl:     defaultTTL,
		browse:  browseZeroconf,
		servers: make(map[string]*Server),
	}
}

func browseZeroconf(ctx context.Context, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("initialize resolver: %w", err)
	}
	return resolver.Browse(ctx, service, domain, entries)
}

// Discover browses the local network and returns the servers found, sorted
// by instance name.
func (d *Discovery) Discover(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := d.browse(ctx, entries); err != nil {
		return nil, err
	}

	var servers []*Server
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			sort.Slice(servers, func(i, j int) bool { return servers[i].Instance < servers[j].Instance })
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return servers, nil
			}
			return servers, ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			srv := fromEntry(entry)
			if srv == nil || seen[srv.Instance] {
				continue
			}
			seen[srv.Instance] = true
			srv.LastSeen = time.Now()
			servers = append(servers, srv)
			log.Debug().Str("instance", srv.Instance).Str("ip", srv.IP).Int("port", srv.Port).Msg("discovered server")

			d.mu.Lock()
			d.servers[srv.Instance] = srv
			d.mu.Unlock()
		}
	}
}

// fromEntry prefers an IPv4 address; entries without any address are
// skipped.
func fromEntry(e *zeroconf.ServiceEntry) *Server {
	if e == nil {
		return nil
	}
	srv := &Server{
		Instance: e.Instance,
		Host:     strings.TrimSuffix(e.HostName, "."),
		Port:     e.Port,
	}
	switch {
	case len(e.AddrIPv4) > 0:
		srv.IP = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		srv.IP = e.AddrIPv6[0].String()
	default:
		return nil
	}
	if srv.Port == 0 {
		srv.Port = core.DefaultPort
	}
	return srv
}

// Lookup returns a cached server by instance name, host name or IP.
func (d *Discovery) Lookup(identifier string) *Server {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if srv, ok := d.servers[identifier]; ok && time.Since(srv.LastSeen) < d.ttl {
		return srv
	}
	for _, srv := range d.servers {
		if time.Since(srv.LastSeen) >= d.ttl {
			continue
		}
		if strings.EqualFold(srv.Instance, identifier) || strings.EqualFold(srv.Host, identifier) || srv.IP == identifier {
			return srv
		}
	}
	return nil
}

// Cached returns every cached server that has not expired.
func (d *Discovery) Cached() []*Server {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Server
	now := time.Now()
	for _, srv := range d.servers {
		if now.Sub(srv.LastSeen) < d.ttl {
			out = append(out, srv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out
}
