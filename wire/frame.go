package wire

import (
	"bytes"
	"fmt"
	"hash/crc32"
)

// Direction distinguishes the two magic-byte handshakes a daisy-chained
// device speaks: one on its upstream port (towards the coordinator), one on
// its downstream port (towards the next device in the chain).
type Direction byte

const (
	DirectionUpstream Direction = iota
	DirectionDownstream
)

func (d Direction) String() string {
	switch d {
	case DirectionUpstream:
		return "upstream"
	case DirectionDownstream:
		return "downstream"
	default:
		return fmt.Sprintf("Direction(%d)", byte(d))
	}
}

// Magic is the 7-byte frame preamble, distinct per direction so a listener
// can tell which port a stream of bytes arrived on even out of context.
type Magic [7]byte

func (m Magic) String() string { return fmt.Sprintf("%x", [7]byte(m)) }

var (
	// MagicRecvUpstream prefixes frames a device reads from its upstream
	// port (coming from the coordinator or an intervening device).
	MagicRecvUpstream = Magic{0xf5, 0x3c, 0xa1, 0x72, 0x8e, 0x0d, 0x66}
	// MagicRecvDownstream prefixes frames a device reads from its
	// downstream port (coming from a device further from the coordinator).
	MagicRecvDownstream = Magic{0x9b, 0x04, 0xd7, 0x5e, 0x21, 0xaf, 0x3c}
)

func magicFor(dir Direction) Magic {
	if dir == DirectionUpstream {
		return MagicRecvUpstream
	}
	return MagicRecvDownstream
}

// Frame is one length-delimited, CRC-checked unit on the wire:
//
//	[magic 7][length u32 LE][conversation_id u16 LE][payload][crc32 u32 LE]
//
// length counts the payload only; the CRC covers magic, length,
// conversation_id, and payload.
type Frame struct {
	Magic          Magic
	ConversationID uint16
	Payload        []byte
}

// Encode serialises f to its on-wire byte representation.
func (f Frame) Encode() []byte {
	body := make([]byte, 0, 7+4+2+len(f.Payload))
	body = append(body, f.Magic[:]...)
	body = append(body, encodeUint32(uint32(len(f.Payload)))...)
	body = append(body, encodeUint16(f.ConversationID)...)
	body = append(body, f.Payload...)
	crc := crc32.ChecksumIEEE(body)
	return append(body, encodeUint32(crc)...)
}

// ErrCorrupt is returned by Decoder.Next when a CRC mismatch forced the
// decoder to resynchronise by scanning forward for the next magic
// occurrence. Skipped is the number of bytes discarded doing so.
type ErrCorrupt struct {
	Skipped int
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("wire: frame corrupt, skipped %d bytes resynchronising", e.Skipped)
}

// ErrIncomplete is returned by Decoder.Next when the buffered bytes don't
// yet contain a full frame; the caller should Feed more data and retry.
var ErrIncomplete = fmt.Errorf("wire: incomplete frame")

// Decoder is a streaming frame decoder fed bytes as they arrive from a
// serial port. It resynchronises on CRC mismatch rather than failing the
// whole stream, since a single corrupted frame shouldn't take down a
// daisy-chain link.
type Decoder struct {
	dir Direction
	buf bytes.Buffer
}

// NewDecoder returns a Decoder that expects frames prefixed with the magic
// for dir.
func NewDecoder(dir Direction) *Decoder {
	return &Decoder{dir: dir}
}

// Feed appends newly-read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(data []byte) {
	d.buf.Write(data)
}

// Next attempts to decode one frame from the buffered bytes. It returns
// (Frame{}, ErrIncomplete) when more data is needed, or (Frame{},
// *ErrCorrupt) after resynchronising past a bad frame header or failed CRC
// check — callers should call Next again immediately in that case, since
// a valid frame may already be available past the skipped bytes.
func (d *Decoder) Next() (Frame, error) {
	magic := magicFor(d.dir)
	raw := d.buf.Bytes()

	idx := bytes.Index(raw, magic[:])
	if idx < 0 {
		// Keep at most len(magic)-1 trailing bytes: they might be a
		// partial magic occurrence once more data arrives.
		keep := len(magic) - 1
		if len(raw) > keep {
			skipped := len(raw) - keep
			d.buf.Next(skipped)
			return Frame{}, &ErrCorrupt{Skipped: skipped}
		}
		return Frame{}, ErrIncomplete
	}
	if idx > 0 {
		d.buf.Next(idx)
		return Frame{}, &ErrCorrupt{Skipped: idx}
	}

	const headerLen = 7 + 4 + 2
	if len(raw) < headerLen {
		return Frame{}, ErrIncomplete
	}

	length, _, err := decodeUint32(raw[7:11])
	if err != nil {
		return Frame{}, ErrIncomplete
	}
	total := headerLen + int(length) + 4
	if len(raw) < total {
		return Frame{}, ErrIncomplete
	}

	convID, _, _ := decodeUint16(raw[11:13])
	payload := append([]byte(nil), raw[13:13+int(length)]...)
	gotCRC, _, _ := decodeUint32(raw[13+int(length) : total])
	wantCRC := crc32.ChecksumIEEE(raw[:13+int(length)])

	if gotCRC != wantCRC {
		d.buf.Next(len(magic))
		return Frame{}, &ErrCorrupt{Skipped: len(magic)}
	}

	d.buf.Next(total)
	return Frame{Magic: magic, ConversationID: convID, Payload: payload}, nil
}

// Drain repeatedly calls Next until it runs out of complete frames,
// returning every frame successfully decoded and the total number of bytes
// skipped resynchronising past corrupt data.
func (d *Decoder) Drain() (frames []Frame, skipped int) {
	for {
		f, err := d.Next()
		switch e := err.(type) {
		case nil:
			frames = append(frames, f)
		case *ErrCorrupt:
			skipped += e.Skipped
			continue
		default:
			return frames, skipped
		}
	}
}
