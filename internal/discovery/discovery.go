// Package discovery advertises a relay on the local network over mDNS and
// lets clients find one without knowing its address.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/bethropolis/tandem/internal/logger"
)

const (
	// ServiceType is the mDNS service type relays register under.
	ServiceType = "_tandem._tcp"
	Domain      = "local."

	DefaultBrowseTimeout = 3 * time.Second
)

// ErrNoRelay is returned when browsing finds nothing before the timeout.
var ErrNoRelay = errors.New("no relay found on the local network")

// Service is one discovered relay.
type Service struct {
	Instance string
	Host     string
	Port     int
	Addrs    []net.IP
}

// URL is the HTTP base address of the relay.
func (s Service) URL() string {
	host := s.Host
	if len(s.Addrs) > 0 {
		host = s.Addrs[0].String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// Advertiser keeps a relay registered until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the relay listening on port.
func Advertise(name string, port int) (*Advertiser, error) {
	if name == "" {
		host, _ := os.Hostname()
		name = "tandem-" + host
	}
	server, err := zeroconf.Register(name, ServiceType, Domain, port, []string{"txtv=1", "path=/"}, nil)
	if err != nil {
		return nil, fmt.Errorf("register mdns service: %w", err)
	}
	logger.InfoTagf("discovery", "advertising %s as %s on port %d", ServiceType, name, port)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

func fromEntry(e *zeroconf.ServiceEntry) Service {
	s := Service{Instance: e.Instance, Host: e.HostName, Port: e.Port}
	s.Addrs = append(s.Addrs, e.AddrIPv4...)
	s.Addrs = append(s.Addrs, e.AddrIPv6...)
	return s
}

// Browse collects relays that answer within timeout.
func Browse(ctx context.Context, timeout time.Duration) ([]Service, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("init mdns resolver: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan []Service, 1)
	go func() {
		var out []Service
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					found <- out
					return
				}
				logger.DebugTagf("discovery", "found %s at %v:%d", e.Instance, e.AddrIPv4, e.Port)
				out = append(out, fromEntry(e))
			case <-ctx.Done():
				found <- out
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("browse mdns: %w", err)
	}
	<-ctx.Done()
	return <-found, nil
}

// First returns the first relay found, or ErrNoRelay.
func First(ctx context.Context, timeout time.Duration) (Service, error) {
	services, err := Browse(ctx, timeout)
	if err != nil {
		return Service{}, err
	}
	if len(services) == 0 {
		return Service{}, ErrNoRelay
	}
	return services[0], nil
}
