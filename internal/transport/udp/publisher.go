// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "kws/internal/log"
	"kws/internal/transport"
)

// UDPPublisher packs the latest Event into a fixed binary layout and sends
// it at a steady interval. Events arriving faster than the interval are
// coalesced; only the newest is sent. Nothing is sent between events.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	latestMu sync.Mutex
	latest   transport.Event
	fresh    bool

	sequenceNum  uint32
	scoreBuffer  []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher over sender. If the provided interval
// is invalid (<= 0), it defaults to 33ms.
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Subsequent calls are no-ops while
// running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publishing goroutine and waits for it to exit.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// Send records ev as the latest event. Values other than transport.Event
// are ignored.
func (p *UDPPublisher) Send(data any) error {
	ev, ok := data.(transport.Event)
	if !ok {
		return nil
	}
	p.latestMu.Lock()
	p.latest = ev
	p.fresh = true
	p.latestMu.Unlock()
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Event time, ns since epoch |
| Slice             | uint64         | 8            | Session slice index     |
| Anomaly           | float32        | 4            | NaN when not computed   |
| Score Count       | uint16         | 2            | Number of floats (N)    |
| Scores            | []float32      | N * 4        | Smoothed label scores   |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the fixed part of a packet.
const HeaderSize = 4 + 8 + 8 + 4 + 2

// Packet is a decoded publisher datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Slice     uint64
	Anomaly   float32
	Scores    []float32
}

// Encode appends the wire form of ev to buf.
func Encode(buf *bytes.Buffer, seq uint32, ev transport.Event, scores []float32) error {
	anomaly := float32(math.NaN())
	if ev.Anomaly != nil {
		anomaly = float32(*ev.Anomaly)
	}
	if len(scores) > math.MaxUint16 {
		return fmt.Errorf("%d scores do not fit a packet", len(scores))
	}
	for _, v := range []any{seq, ev.Time.UnixNano(), ev.Slice, anomaly, uint16(len(scores)), scores} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses one datagram.
func Decode(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("packet of %d bytes is shorter than the %d byte header", len(b), HeaderSize)
	}
	var p Packet
	p.Sequence = binary.BigEndian.Uint32(b[0:])
	p.Timestamp = int64(binary.BigEndian.Uint64(b[4:]))
	p.Slice = binary.BigEndian.Uint64(b[12:])
	p.Anomaly = math.Float32frombits(binary.BigEndian.Uint32(b[20:]))
	n := int(binary.BigEndian.Uint16(b[24:]))
	if len(b) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("packet announces %d scores but carries %d bytes", n, len(b)-HeaderSize)
	}
	p.Scores = make([]float32, n)
	for i := range p.Scores {
		p.Scores[i] = math.Float32frombits(binary.BigEndian.Uint32(b[HeaderSize+4*i:]))
	}
	return p, nil
}

func (p *UDPPublisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.fresh {
		p.latestMu.Unlock()
		return
	}
	ev := p.latest
	p.fresh = false
	p.latestMu.Unlock()

	if cap(p.scoreBuffer) < len(ev.Scores) {
		p.scoreBuffer = make([]float32, len(ev.Scores))
	}
	p.scoreBuffer = p.scoreBuffer[:len(ev.Scores)]
	for i, s := range ev.Scores {
		p.scoreBuffer[i] = float32(s.Value)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := Encode(p.packetBuffer, p.sequenceNum, ev, p.scoreBuffer); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		applog.Warnf("UDPPublisher: packet %d: %v", p.sequenceNum, err)
		return
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ transport.Transport = (*UDPPublisher)(nil)
