package main

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/breeze-rmm/deskcast/internal/capture"
	"github.com/breeze-rmm/deskcast/internal/netinfo"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	urlStyle = lipgloss.NewStyle().
			Underline(true).
			Foreground(lipgloss.Color("13"))

	onStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	offStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
)

type bannerInfo struct {
	Version  string
	Target   capture.Target
	Port     int
	TLSPort  int
	Audio    bool
	Password bool
}

// viewerURLs lists the addresses a phone on the LAN can open, HTTP first.
func viewerURLs(hosts []string, port, tlsPort int) []string {
	var urls []string
	for _, h := range hosts {
		urls = append(urls, "http://"+net.JoinHostPort(h, strconv.Itoa(port))+"/")
	}
	if tlsPort > 0 {
		for _, h := range hosts {
			urls = append(urls, "https://"+net.JoinHostPort(h, strconv.Itoa(tlsPort))+"/")
		}
	}
	return urls
}

func lanHosts() []string {
	addrs, err := netinfo.LANAddresses()
	if err != nil || len(addrs) == 0 {
		return []string{"localhost"}
	}
	var hosts []string
	for _, ip := range netinfo.IPv4(addrs) {
		hosts = append(hosts, ip.String())
	}
	if len(hosts) == 0 {
		return []string{"localhost"}
	}
	return hosts
}

func toggle(on bool) string {
	if on {
		return onStyle.Render("on")
	}
	return offStyle.Render("off")
}

func printBanner(w io.Writer, info bannerInfo) {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Deskcast v"+info.Version) + "\n\n")

	t := info.Target
	fmt.Fprintf(&b, "%s %s (%dx%d at %d,%d)\n", labelStyle.Render("Display: "), t.Name, t.Width, t.Height, t.X, t.Y)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Audio:   "), toggle(info.Audio))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("HTTPS:   "), toggle(info.TLSPort > 0))
	fmt.Fprintf(&b, "%s %s\n\n", labelStyle.Render("Password:"), toggle(info.Password))

	b.WriteString(labelStyle.Render("Open on your phone or tablet:") + "\n")
	for _, u := range viewerURLs(lanHosts(), info.Port, info.TLSPort) {
		b.WriteString("  " + urlStyle.Render(u) + "\n")
	}
	b.WriteString("\n" + labelStyle.Render("Press Ctrl+C to stop."))

	fmt.Fprintln(w, boxStyle.Render(b.String()))
}

func printDisplays(w io.Writer, targets []capture.Target) {
	for _, t := range targets {
		marker := " "
		if t.Primary {
			marker = onStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s %-10s %dx%d at %d,%d\n",
			marker, titleStyle.Render(strconv.Itoa(t.Index)), t.Name, t.Width, t.Height, t.X, t.Y)
	}
}
