package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"speed-enforcement-api/config"
	"speed-enforcement-api/models"
	"speed-enforcement-api/radar"
)

const datagramBufSize = 2048

// Listener receives radar datagrams over UDP and drives them through
// decode, dedup, persistence and the correlation engine. The socket
// read loop only reads; decoded packets are handed to a processor
// goroutine so blocking storage I/O never backs up the kernel buffer.
type Listener struct {
	cfg       config.UDPConfig
	store     Store
	dedup     *DedupStore
	engine    *CorrelationEngine
	publisher EventPublisher
	stats     *Stats

	conn      *net.UDPConn
	listening atomic.Bool
}

type datagram struct {
	payload []byte
	addr    string
	at      time.Time
}

func NewListener(cfg config.UDPConfig, store Store, dedup *DedupStore, engine *CorrelationEngine, publisher EventPublisher, stats *Stats) *Listener {
	return &Listener{
		cfg:       cfg,
		store:     store,
		dedup:     dedup,
		engine:    engine,
		publisher: publisher,
		stats:     stats,
	}
}

// Listen binds the UDP socket. Called before the image feed starts so
// no violation is processed until the engine can receive both sides.
func (l *Listener) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Addr())
	if err != nil {
		return fmt.Errorf("resolve udp addr %s: %w", l.cfg.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("bind udp %s: %w", l.cfg.Addr(), err)
	}
	l.conn = conn
	l.listening.Store(true)
	log.Printf("listener: radar feed on udp %s (default limit %d km/h)", l.cfg.Addr(), l.cfg.DefaultSpeedLimit)
	return nil
}

// Listening reports feed liveness for health checks.
func (l *Listener) Listening() bool {
	return l.listening.Load()
}

// LocalAddr returns the bound socket address, nil before Listen.
func (l *Listener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run reads datagrams until the context is cancelled. No single
// malformed or duplicate datagram stops the loop; only a socket-level
// failure is fatal to the feed.
func (l *Listener) Run(ctx context.Context) error {
	if l.conn == nil {
		return errors.New("listener: Run called before Listen")
	}
	defer l.listening.Store(false)

	packets := make(chan datagram, 256)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range packets {
			l.process(ctx, d)
		}
	}()

	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, datagramBufSize)
	var readErr error
	for {
		n, remote, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				readErr = fmt.Errorf("udp read: %w", err)
			}
			break
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		packets <- datagram{payload: payload, addr: remote.String(), at: time.Now()}
	}

	close(packets)
	<-done
	return readErr
}

func (l *Listener) process(ctx context.Context, d datagram) {
	l.stats.MessagesReceived.Add(1)
	datagramsReceived.Inc()

	ev, err := radar.Decode(d.payload, d.at)
	if err != nil {
		var unknown *radar.UnknownPacketError
		if errors.As(err, &unknown) {
			l.stats.UnknownPackets.Add(1)
			unknownPackets.Inc()
			log.Printf("listener: unknown packet from %s: %s", d.addr, unknown.Reason)
			l.publisher.PublishEvent(ctx, EventUnknownPacket, map[string]interface{}{
				"source_addr": d.addr,
				"reason":      unknown.Reason,
				"bytes":       len(unknown.Raw),
			})
		}
		return
	}
	ev.SourceAddr = d.addr

	if l.dedup.CheckAndRemember(ev.Fingerprint()) {
		l.stats.Duplicates.Add(1)
		duplicateEvents.Inc()
		return
	}

	// Unknown units register themselves on first contact.
	unit, err := l.store.FindOrCreateRadar(ctx, ev.RadarID, models.Radar{
		RadarID:    ev.RadarID,
		Name:       fmt.Sprintf("Radar %d", ev.RadarID),
		Location:   fmt.Sprintf("Station %d", ev.RadarID),
		Status:     "active",
		SpeedLimit: l.cfg.DefaultSpeedLimit,
	})
	if err != nil {
		l.stats.Errors.Add(1)
		log.Printf("listener: radar lookup failed: %v", err)
	}

	if ev.SpeedLimit == 0 {
		if unit != nil && unit.SpeedLimit > 0 {
			ev.SpeedLimit = unit.SpeedLimit
		} else {
			ev.SpeedLimit = l.cfg.DefaultSpeedLimit
		}
	}

	reading := &models.RadarReading{
		RadarID:       ev.RadarID,
		Speed:         ev.Speed,
		SpeedLimit:    ev.SpeedLimit,
		DetectionTime: ev.Timestamp,
		IsViolation:   ev.IsViolation(),
		SourceFormat:  string(ev.SourceFormat),
		SourceAddr:    ev.SourceAddr,
		RawPayload:    ev.RawPayload,
	}
	err = withRetry(ctx, persistAttempts, persistBackoffBase, func() error {
		return l.store.SaveReading(ctx, reading)
	})
	if err != nil {
		l.stats.Errors.Add(1)
		persistenceFailures.Inc()
		log.Printf("listener: save reading failed: %v", err)
	} else {
		l.stats.ReadingsSaved.Add(1)
		readingsSaved.Inc()
		l.publisher.PublishEvent(ctx, EventRadarReading, reading)
	}

	if ev.IsViolation() {
		l.stats.ViolationsDetected.Add(1)
		violationsDetected.Inc()
		l.engine.OfferViolation(ev)
	}
}
