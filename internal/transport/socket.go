package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"
)

const socketBufferSize = 512 << 10

// Socket wraps a single UDP socket with non-blocking receive semantics. It is
// owned by one Driver and is not safe to share.
type Socket struct {
	conn *net.UDPConn
}

// ListenSocket binds a UDP socket on the given port (0 = ephemeral) with
// SO_REUSEADDR set and enlarged send/receive buffers.
func ListenSocket(port uint16) (*Socket, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var soErr error
			err := c.Control(func(fd uintptr) {
				soErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return soErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("could not listen udp: %w", err)
	}

	conn := pc.(*net.UDPConn)
	// best effort, the OS may clamp these
	_ = conn.SetReadBuffer(socketBufferSize)
	_ = conn.SetWriteBuffer(socketBufferSize)

	return &Socket{conn: conn}, nil
}

func (s *Socket) LocalAddr() Addr {
	return FromUDPAddr(s.conn.LocalAddr().(*net.UDPAddr))
}

func (s *Socket) SendTo(b []byte, addr Addr) (int, error) {
	return s.conn.WriteToUDP(b, addr.UDPAddr())
}

// RecvFrom reads one datagram. A drained socket reports (0, Addr{}, nil)
// rather than blocking: the read deadline is set a millisecond out, so the
// tick thread stalls for at most that long when there is nothing to read.
func (s *Socket) RecvFrom(buf []byte) (int, Addr, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return 0, Addr{}, err
	}

	n, from, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		if isTimeout(err) {
			return 0, Addr{}, nil
		}
		return 0, Addr{}, err
	}
	return n, FromUDPAddr(from), nil
}

func (s *Socket) Close() error {
	return s.conn.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
