// SPDX-License-Identifier: MIT
package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "kws/internal/log"
)

// MaxDatagram is the largest UDP payload over IPv4.
const MaxDatagram = 65507

var errSenderClosed = errors.New("udp: sender closed")

// UDPSender writes publisher packets to one connected peer.
type UDPSender struct {
	mu   sync.Mutex
	conn *net.UDPConn // nil once closed
	sent atomic.Uint64
}

// NewUDPSender connects to target, given as "host:port".
func NewUDPSender(target string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", addr, err)
	}
	applog.Infof("UDP: publishing results to %s", addr)
	return &UDPSender{conn: conn}, nil
}

// Send writes packet as one datagram.
func (s *UDPSender) Send(packet []byte) error {
	if len(packet) > MaxDatagram {
		return fmt.Errorf("udp: %d byte packet exceeds %d", len(packet), MaxDatagram)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errSenderClosed
	}
	// A peer that is not listening shows up as a refused write on some systems.
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("udp: send: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Sent reports how many datagrams were written.
func (s *UDPSender) Sent() uint64 {
	return s.sent.Load()
}

// Close releases the connection. Later sends fail.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	applog.Debugf("UDP: closed after %d packets", s.sent.Load())
	return err
}
