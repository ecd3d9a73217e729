package board

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Bridge link framing:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and every payload byte.
const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdSensorReport = 0x20 // MCU -> host
	CmdDACWrite     = 0x30 // host -> MCU, one DAC8162 frame
	CmdGate         = 0x31 // host -> MCU, 0 or 1

	MaxPayload = 32

	sensorReportLen = NumAnalogChannels*2 + 2
)

var (
	ErrBadChecksum  = errors.New("frame checksum mismatch")
	ErrBadLength    = errors.New("frame length out of range")
	ErrShortFrame   = errors.New("frame payload too short")
)

// AppendFrame appends the framed cmd and payload to dst.
func AppendFrame(dst []byte, cmd byte, payload []byte) []byte {
	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ cmd
	for _, b := range payload {
		cks ^= b
	}
	dst = append(dst, SOF0, SOF1, length, cmd)
	dst = append(dst, payload...)
	return append(dst, cks)
}

// SensorReport is one scan of the MCU inputs.
type SensorReport struct {
	ADC         [NumAnalogChannels]uint16 // raw counts, indexed by AnalogChannel
	ModeBits    byte                      // bit0: switch pin A low, bit1: pin B low
	ChannelBits byte                      // bits 0-3: channel switch pin levels, 1s first
}

// Encode is the report payload.
func (r SensorReport) Encode() []byte {
	p := make([]byte, sensorReportLen)
	for i, v := range r.ADC {
		binary.BigEndian.PutUint16(p[2*i:], v)
	}
	p[NumAnalogChannels*2] = r.ModeBits
	p[NumAnalogChannels*2+1] = r.ChannelBits
	return p
}

// ParseSensorReport decodes a CmdSensorReport payload.
func ParseSensorReport(p []byte) (SensorReport, error) {
	var r SensorReport
	if len(p) < sensorReportLen {
		return r, fmt.Errorf("sensor report: %w (%d bytes)", ErrShortFrame, len(p))
	}
	for i := range r.ADC {
		r.ADC[i] = binary.BigEndian.Uint16(p[2*i:])
	}
	r.ModeBits = p[NumAnalogChannels*2]
	r.ChannelBits = p[NumAnalogChannels*2+1]
	return r, nil
}

// Mode is the decoded mode switch.
func (r SensorReport) Mode() Switch3Way {
	return DecodeModeSwitch(r.ModeBits&0b01 != 0, r.ModeBits&0b10 != 0)
}

// Channel is the decoded MIDI channel switch.
func (r SensorReport) Channel() uint8 {
	var levels [4]bool
	for i := range levels {
		levels[i] = r.ChannelBits&(1<<i) != 0
	}
	return DecodeChannelSwitch(levels)
}

type parseState int

const (
	waitSOF0 parseState = iota
	waitSOF1
	waitLen
	readBody
	waitCks
)

// FrameReader reassembles frames from a byte stream. It resynchronizes on
// the next start-of-frame after any error.
type FrameReader struct {
	state  parseState
	length int
	body   [MaxPayload + 1]byte
	n      int
	cks    byte
}

// Feed consumes one byte. When it completes a frame it returns done with the
// command and payload; the payload is only valid until the next Feed.
func (f *FrameReader) Feed(b byte) (cmd byte, payload []byte, done bool, err error) {
	switch f.state {
	case waitSOF0:
		if b == SOF0 {
			f.state = waitSOF1
		}
	case waitSOF1:
		switch b {
		case SOF1:
			f.state = waitLen
		case SOF0:
			// stay, this may be the real start
		default:
			f.state = waitSOF0
		}
	case waitLen:
		if b == 0 || int(b) > MaxPayload+1 {
			f.state = waitSOF0
			return 0, nil, false, fmt.Errorf("%w: %d", ErrBadLength, b)
		}
		f.length = int(b)
		f.n = 0
		f.cks = b
		f.state = readBody
	case readBody:
		f.body[f.n] = b
		f.n++
		f.cks ^= b
		if f.n == f.length {
			f.state = waitCks
		}
	case waitCks:
		f.state = waitSOF0
		if b != f.cks {
			return 0, nil, false, ErrBadChecksum
		}
		return f.body[0], f.body[1:f.length], true, nil
	}
	return 0, nil, false, nil
}
