package net

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_localboard._tcp"

// Advertise announces a hub on port over mDNS until the returned server is
// shut down.
func Advertise(port int, boardName string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}
	info := []string{"LocalBoard", "board=" + boardName}

	service, err := mdns.NewMDNSService(host, serviceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	log.Infof("advertising %s on port %d", serviceType, port)
	return server, nil
}

// Browse listens for advertised hubs for timeout and returns their share
// links.
func Browse(timeout time.Duration) ([]string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	var links []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		seen := make(map[string]bool)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			link := ShareLink(e.AddrV4, e.Port)
			if !seen[link] {
				seen[link] = true
				links = append(links, link)
			}
		}
	}()
	err := mdns.Query(&mdns.QueryParam{
		Service:     serviceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	<-done
	if err != nil {
		return links, fmt.Errorf("mDNS query: %w", err)
	}
	return links, nil
}
