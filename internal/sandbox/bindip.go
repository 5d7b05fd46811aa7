package sandbox

import (
	"net"
	"os"
	"time"

	"k8s.io/klog/v2"
)

// probeDialTimeout bounds the UDP "connect" probe used by ResolveBindIP;
// a UDP connect never touches the network, this only guards against a
// slow local resolver.
const probeDialTimeout = 2 * time.Second

// ResolveBindIP discovers the outward-facing IP a server bound to
// 0.0.0.0 should advertise to clients, following spec.md §4.E
// "Bind-IP resolution": probe IPv6 first, fall back to IPv4, then to
// hostname resolution, then to loopback.
func ResolveBindIP() string {
	if ip, ok := probeOutwardIP("udp6", "[2001:4860:4860::8888]:80"); ok && !isLinkLocal(ip) {
		return ip
	}
	if ip, ok := probeOutwardIP("udp4", "8.8.8.8:80"); ok {
		return ip
	}
	if ip, ok := resolveHostnameIP(); ok {
		return ip
	}
	return "127.0.0.1"
}

// probeOutwardIP opens a UDP socket and "connects" it (no packets sent)
// to a well-known public address, then reads back the local address the
// kernel would use to route there.
func probeOutwardIP(network, addr string) (string, bool) {
	conn, err := net.DialTimeout(network, addr, probeDialTimeout)
	if err != nil {
		klog.V(4).Infof("bind-ip probe %s %s failed: %v", network, addr, err)
		return "", false
	}
	defer conn.Close()

	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil || host == "" {
		return "", false
	}
	return host, true
}

func isLinkLocal(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLinkLocalUnicast()
}

func resolveHostnameIP() (string, bool) {
	name, err := os.Hostname()
	if err != nil {
		return "", false
	}
	addrs, err := net.LookupHost(name)
	if err != nil || len(addrs) == 0 {
		return "", false
	}
	return addrs[0], true
}
