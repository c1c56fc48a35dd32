package mdns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service under which hackrf-transfer instances
// advertise their telemetry endpoint.
const ServiceType = "_hackrf._tcp"

const domain = "local."

// Host represents a discovered hackrf-transfer instance.
type Host struct {
	Instance  string // Advertised name: "hackrf 0000000000000000457863c82b3b2f4f"
	Hostname  string // DNS hostname: "sdr-bench.local."
	Addresses []net.IP
	Port      int
	TXT       map[string]string
}

// Advertisement is a running DNS-SD registration.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers instance on port with the given TXT records on all
// multicast-capable interfaces.
func Advertise(instance string, port int, txt []string) (*Advertisement, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("advertise %q: invalid port %d", instance, port)
	}
	server, err := zeroconf.Register(instance, ServiceType, domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register error: %w", err)
	}
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the registration.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// TXTRecords builds the key=value records describing a board. Empty values
// are skipped.
func TXTRecords(board, serial, firmware string) []string {
	var out []string
	for _, kv := range [][2]string{{"board", board}, {"serial", serial}, {"firmware", firmware}} {
		if kv[1] != "" {
			out = append(out, kv[0]+"="+kv[1])
		}
	}
	return out
}

// ParseTXT splits key=value records; a record without '=' maps to "".
func ParseTXT(txt []string) map[string]string {
	out := make(map[string]string, len(txt))
	for _, rec := range txt {
		k, v, _ := strings.Cut(rec, "=")
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Discover performs a blocking mDNS browse for ServiceType until timeout
// elapses or ctx is done. It returns cleaned and deduplicated host entries
// ordered by instance name.
func Discover(ctx context.Context, timeout time.Duration) ([]Host, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	resultMap := make(map[string]Host)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				h := hostFromEntry(e)
				resultMap[fmt.Sprintf("%s|%d", h.Hostname, h.Port)] = h
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, domain, entries); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("browse error: %w", err)
	}

	<-done

	out := make([]Host, 0, len(resultMap))
	for _, h := range resultMap {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out, nil
}

func hostFromEntry(e *zeroconf.ServiceEntry) Host {
	addrs := make([]net.IP, 0, len(e.AddrIPv4)+len(e.AddrIPv6))
	addrs = append(addrs, e.AddrIPv4...)
	addrs = append(addrs, e.AddrIPv6...)
	return Host{
		Instance:  cleanInstance(e.Instance),
		Hostname:  e.HostName,
		Addresses: addrs,
		Port:      e.Port,
		TXT:       ParseTXT(e.Text),
	}
}

// cleanInstance removes Zeroconf escape sequences: "\ " => " "
func cleanInstance(s string) string {
	return strings.ReplaceAll(s, `\ `, " ")
}
