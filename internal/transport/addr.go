// Package transport implements the datagram layer: the IPv4 address value
// type, the non-blocking UDP socket, per-peer connections with sequencing and
// reliability, and the driver that owns both.
package transport

import (
	"fmt"
	"net"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Mode says which side of the pipe this process is.
type Mode uint8

const (
	ModeStandalone Mode = iota
	ModeServer
	ModeClient
)

func (m Mode) String() string {
	switch m {
	case ModeStandalone:
		return "standalone"
	case ModeServer:
		return "server"
	case ModeClient:
		return "client"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Addr is an IPv4 (host, port) value. Equality is plain ==.
type Addr struct {
	IP   [4]byte
	Port uint16
}

// ResolveAddr resolves a hostname or dotted quad plus port into an Addr.
func ResolveAddr(host string, port uint16) (Addr, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return Addr{}, fmt.Errorf("could not resolve udp addr: %w", err)
	}
	return FromUDPAddr(udpAddr), nil
}

func FromUDPAddr(udpAddr *net.UDPAddr) Addr {
	addr := Addr{Port: uint16(udpAddr.Port)}
	if ip4 := udpAddr.IP.To4(); ip4 != nil {
		copy(addr.IP[:], ip4)
	}
	return addr
}

func (a Addr) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IP(a.IP[:]), Port: int(a.Port)}
}

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d", a.IP[0], a.IP[1], a.IP[2], a.IP[3], a.Port)
}

type addrKey uint64

func makeAddrKey(addr Addr) addrKey {
	return addrKey(xxhash.Sum64String(addr.String()))
}
