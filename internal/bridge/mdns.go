// ABOUTME: mDNS advertisement of the bridge
// ABOUTME: Publishes _metronome._tcp and browses for other bridges
package bridge

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service the bridge advertises
const ServiceType = "_metronome._tcp"

// Advertiser publishes the bridge over mDNS
type Advertiser struct {
	name   string
	port   int
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAdvertiser creates an advertiser for name on port
func NewAdvertiser(name string, port int) *Advertiser {
	ctx, cancel := context.WithCancel(context.Background())
	return &Advertiser{name: name, port: port, ctx: ctx, cancel: cancel}
}

// Advertise starts answering mDNS queries until Stop
func (a *Advertiser) Advertise() error {
	service, err := a.service()
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", a.name, a.port, ServiceType)

	go func() {
		<-a.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

func (a *Advertiser) service() (*mdns.MDNSService, error) {
	ips, err := getLocalIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		a.name,
		ServiceType,
		"",
		"",
		a.port,
		ips,
		[]string{"path=" + Path},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return service, nil
}

// Stop withdraws the advertisement
func (a *Advertiser) Stop() {
	a.cancel()
}

// Found describes a bridge discovered over mDNS
type Found struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port for Dial
func (f Found) Addr() string {
	return net.JoinHostPort(f.Host, fmt.Sprint(f.Port))
}

// Discover browses for bridges for up to timeout
func Discover(ctx context.Context, timeout time.Duration) ([]Found, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	var found []Found

	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if entry.AddrV4 == nil {
				continue
			}
			f := Found{Name: entry.Name, Host: entry.AddrV4.String(), Port: entry.Port}
			log.Printf("Discovered bridge: %s at %s", f.Name, f.Addr())
			found = append(found, f)
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.QueryContext(ctx, params)
	close(entries)
	<-done

	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

// getLocalIPs returns the IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
