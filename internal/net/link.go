package net

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Scheme prefixes share links handed to joiners.
const Scheme = "localboard://"

var ErrInvalidLink = errors.New("invalid share link")

// OutgoingIP returns the address other machines on the LAN should use to
// reach this one. No packet is sent; the UDP dial only selects a route.
func OutgoingIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return firstIPv4()
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP
}

// firstIPv4 returns the first IPv4 address of an interface that is up and
// not loopback, or 127.0.0.1.
func firstIPv4() net.IP {
	ifaces, _ := net.Interfaces()
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				return ipnet.IP.To4()
			}
		}
	}
	return net.IPv4(127, 0, 0, 1)
}

// ShareLink builds the link a joiner passes on the command line.
func ShareLink(ip net.IP, port int) string {
	return Scheme + net.JoinHostPort(ip.String(), strconv.Itoa(port))
}

// ParseShareLink returns the host:port a share link points at.
func ParseShareLink(link string) (string, error) {
	addr, ok := strings.CutPrefix(link, Scheme)
	if !ok {
		return "", fmt.Errorf("%w: %q lacks %s", ErrInvalidLink, link, Scheme)
	}
	addr = strings.TrimSuffix(addr, "/")
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 || host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLink, addr)
	}
	return addr, nil
}

// WebSocketURL is the hub endpoint for host:port.
func WebSocketURL(addr string) string {
	return "ws://" + addr + Path
}
