package netinfo

import (
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
)

func TestFilterSkipsLoopbackDownAndBridges(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: psnet.InterfaceAddrList{
			{Addr: "fe80::1/64"},
			{Addr: "2001:db8::10/64"},
			{Addr: "192.168.1.20/24"},
		}},
		{Name: "wlan0", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "10.0.0.9/24"}}},
		{Name: "docker0", Flags: []string{"up"}, Addrs: psnet.InterfaceAddrList{{Addr: "172.17.0.1/16"}}},
	}

	got := filter(ifaces)
	if len(got) != 2 {
		t.Fatalf("filter returned %d addresses, want 2: %v", len(got), got)
	}
	if got[0].IP.String() != "192.168.1.20" {
		t.Errorf("first address = %s, want IPv4 192.168.1.20", got[0].IP)
	}
	if got[1].IP.String() != "2001:db8::10" {
		t.Errorf("second address = %s, want 2001:db8::10", got[1].IP)
	}

	v4 := IPv4(got)
	if len(v4) != 1 || v4[0].String() != "192.168.1.20" {
		t.Errorf("IPv4() = %v, want [192.168.1.20]", v4)
	}
}

func TestHostnameNeverEmpty(t *testing.T) {
	if Hostname() == "" {
		t.Fatal("Hostname() returned empty string")
	}
}
