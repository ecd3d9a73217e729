package miditx

import (
	"context"
	"fmt"
	"log/slog"
)

// QueueCapacity is the number of messages one output tick may queue. It is
// well above the three a tick can actually produce.
const QueueCapacity = 16

// BufferLen is the size of the transmit buffer.
const BufferLen = QueueCapacity * MaxBytesPerMessage

// SerialWriter transmits a buffer of bytes.
type SerialWriter interface {
	WriteSerial(b []byte)
}

// Transmitter is a bounded message queue plus the buffer it is serialized
// into. Nothing is allocated after construction.
type Transmitter struct {
	queue [QueueCapacity]Message
	n     int

	buf [BufferLen]byte

	dropped uint64
	sent    uint64
	logger  *slog.Logger
}

// NewTransmitter is an empty Transmitter. A nil logger uses slog.Default.
func NewTransmitter(logger *slog.Logger) *Transmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transmitter{logger: logger}
}

// Push queues m. When the queue is full m is dropped and counted.
func (t *Transmitter) Push(m Message) {
	if t.n == QueueCapacity {
		t.dropped++
		t.logger.Warn("midi: queue full, message dropped", "msg", m.String(), "dropped", t.dropped)
		return
	}
	t.queue[t.n] = m
	t.n++
}

// Len is the number of queued messages.
func (t *Transmitter) Len() int { return t.n }

// Queued is the queued messages in FIFO order. The slice aliases the queue
// and is only valid until the next Push or SendQueue.
func (t *Transmitter) Queued() []Message { return t.queue[:t.n] }

// Dropped is the number of messages lost to a full queue.
func (t *Transmitter) Dropped() uint64 { return t.dropped }

// Sent is the number of messages handed to the serial writer.
func (t *Transmitter) Sent() uint64 { return t.sent }

// SendQueue encodes every queued message in order, transmits them in one
// write and empties the queue. An empty queue writes nothing.
func (t *Transmitter) SendQueue(w SerialWriter) {
	if t.n == 0 {
		return
	}
	i := 0
	for _, m := range t.queue[:t.n] {
		i += m.Render(t.buf[i:])
	}
	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.logWire(t.buf[:i])
	}
	w.WriteSerial(t.buf[:i])
	t.sent += uint64(t.n)
	t.n = 0
}

// logWire logs what the bytes on the wire decode to, one line per message.
func (t *Transmitter) logWire(wire []byte) {
	for j := 0; j+MaxBytesPerMessage <= len(wire); j += MaxBytesPerMessage {
		raw := wire[j : j+MaxBytesPerMessage]
		m, err := Decode(raw)
		if err != nil {
			t.logger.Warn("midi: undecodable bytes", "bytes", fmt.Sprintf("% X", raw), "err", err)
			continue
		}
		t.logger.Debug("midi: send", "msg", m.String(), "bytes", fmt.Sprintf("% X", raw))
	}
}
