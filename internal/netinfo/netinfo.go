// Package netinfo discovers the host addresses viewers can reach the server on.
package netinfo

import (
	"net"
	"os"
	"sort"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
)

// Address is a usable host address on a named interface.
type Address struct {
	Interface string
	IP        net.IP
}

// LANAddresses returns the non-loopback, non-link-local unicast addresses of
// interfaces that are up, IPv4 first. Container bridges are skipped.
func LANAddresses() ([]Address, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return nil, err
	}
	return filter(ifaces), nil
}

func filter(ifaces psnet.InterfaceStatList) []Address {
	var out []Address
	for _, iface := range ifaces {
		if skipInterface(iface) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				ip = net.ParseIP(addr.Addr)
			}
			if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
				continue
			}
			out = append(out, Address{Interface: iface.Name, IP: ip})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IP.To4() != nil && out[j].IP.To4() == nil
	})
	return out
}

func skipInterface(iface psnet.InterfaceStat) bool {
	if strings.HasPrefix(iface.Name, "veth") ||
		strings.HasPrefix(iface.Name, "docker") ||
		strings.HasPrefix(iface.Name, "br-") {
		return true
	}
	up := false
	for _, flag := range iface.Flags {
		switch flag {
		case "loopback":
			return true
		case "up":
			up = true
		}
	}
	return !up
}

// IPv4 returns only the IPv4 addresses, in discovery order.
func IPv4(addrs []Address) []net.IP {
	var out []net.IP
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			out = append(out, v4)
		}
	}
	return out
}

// Hostname returns the machine name, or "localhost" when it cannot be read.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}
