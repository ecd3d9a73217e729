// Package miditx queues outgoing MIDI messages and frames them for the wire.
package miditx

import (
	"fmt"
	"math"

	"gitlab.com/gomidi/midi/v2"
)

// Kind is the type of a Message.
type Kind uint8

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindPitchBend
)

// Status bytes, without the channel nibble.
const (
	StatusNoteOff   byte = 0x80
	StatusNoteOn    byte = 0x90
	StatusPitchBend byte = 0xE0
)

const (
	MaxVelocity byte = 0x7F
	MinVelocity byte = 0x00

	// PitchBendCenter is the 14 bit value for no bend.
	PitchBendCenter uint16 = 1 << 13
	// PitchBendMax is the largest 14 bit bend value.
	PitchBendMax uint16 = 1<<14 - 1
)

// MaxBytesPerMessage is the encoded size of every message this package sends.
const MaxBytesPerMessage = 3

// Message is a channel voice message. Only the fields for its Kind are used.
type Message struct {
	Kind     Kind
	Channel  uint8 // 0-15
	Note     uint8 // 0-127
	Velocity uint8 // 0-127
	Bend     uint16
}

// NoteOn is a note-on message.
func NoteOn(channel, note, velocity uint8) Message {
	return Message{Kind: KindNoteOn, Channel: channel, Note: note, Velocity: velocity}
}

// NoteOff is a note-off message.
func NoteOff(channel, note, velocity uint8) Message {
	return Message{Kind: KindNoteOff, Channel: channel, Note: note, Velocity: velocity}
}

// PitchBend is a pitch-bend message carrying a 14 bit value.
func PitchBend(channel uint8, value uint16) Message {
	return Message{Kind: KindPitchBend, Channel: channel, Bend: value}
}

// Len is the encoded length of m.
func (m Message) Len() int { return MaxBytesPerMessage }

// Render writes the wire encoding of m into dst and returns the number of
// bytes written. dst must hold at least Len bytes.
func (m Message) Render(dst []byte) int {
	ch := m.Channel & 0x0F
	switch m.Kind {
	case KindNoteOn:
		dst[0], dst[1], dst[2] = StatusNoteOn|ch, m.Note&0x7F, m.Velocity&0x7F
	case KindNoteOff:
		dst[0], dst[1], dst[2] = StatusNoteOff|ch, m.Note&0x7F, m.Velocity&0x7F
	case KindPitchBend:
		dst[0], dst[1], dst[2] = StatusPitchBend|ch, byte(m.Bend&0x7F), byte((m.Bend>>7)&0x7F)
	default:
		return 0
	}
	return MaxBytesPerMessage
}

// Bytes is the wire encoding of m as a gomidi message.
func (m Message) Bytes() midi.Message {
	var b [MaxBytesPerMessage]byte
	n := m.Render(b[:])
	return midi.Message(b[:n])
}

func (m Message) String() string {
	return m.Bytes().String()
}

// Decode parses one message from the front of b.
func Decode(b []byte) (Message, error) {
	if len(b) < MaxBytesPerMessage {
		return Message{}, fmt.Errorf("miditx: short message (%d bytes)", len(b))
	}
	msg := midi.Message(b[:MaxBytesPerMessage])

	var ch, key, vel uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return NoteOn(ch, key, vel), nil
	case msg.GetNoteOff(&ch, &key, &vel):
		return NoteOff(ch, key, vel), nil
	case msg.GetPitchBend(&ch, &rel, &abs):
		return PitchBend(ch, abs), nil
	}
	return Message{}, fmt.Errorf("miditx: unsupported message % X", b[:MaxBytesPerMessage])
}

// BendValue converts a pitch offset in volts to a 14 bit bend value. The
// receiver is assumed to bend two semitones each way; the offset is halved on
// top of that so a full semitone of offset never hits the end stop.
func BendValue(offset, semitoneWidth float32) uint16 {
	if semitoneWidth <= 0 {
		return PitchBendCenter
	}
	bend := float64(offset) / float64(semitoneWidth*2)
	v := math.Round(float64(PitchBendCenter) + bend*float64(PitchBendCenter))
	if v < 0 {
		return 0
	}
	if v > float64(PitchBendMax) {
		return PitchBendMax
	}
	return uint16(v)
}
