package firmware

import "fmt"

// SectorSize is the flash sector size ESP32 firmware images are laid out
// against.
const SectorSize = 4096

// ESPMagic is the first byte of a valid ESP32 image header.
const ESPMagic byte = 0xE9

// HeaderSize is the size in bytes of the fixed ImageHeader at the start of
// sector 0.
const HeaderSize = 24

// SegmentHeaderSize is the size in bytes of the header preceding each
// segment's data.
const SegmentHeaderSize = 8

// MaxSegments bounds the segment_count field of a well-formed image.
const MaxSegments uint8 = 16

// MaxSegmentSize bounds any single segment's declared length.
const MaxSegmentSize uint32 = 16 * 1024 * 1024

// SignatureBlockMagic is the 4-byte marker at the start of an ESP32 Secure
// Boot V2 signature block, appended to the image on a sector boundary.
var SignatureBlockMagic = [4]byte{0xe7, 0x00, 0x00, 0x00}

// SectorReader supplies firmware data one fixed-size sector at a time. A
// flash-backed implementation reads from a partition; an in-memory one
// slices a buffer, zero-padding the final short sector.
type SectorReader interface {
	ReadSector(sector uint32) ([SectorSize]byte, error)
	NSectors() uint32
}

// ErrIO wraps a failure to read a sector from the underlying SectorReader.
type ErrIO struct {
	Sector uint32
	Err    error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("I/O error reading sector %d: %v", e.Sector, e.Err)
}

func (e *ErrIO) Unwrap() error { return e.Err }

// ErrInvalidMagic is returned when sector 0 doesn't start with ESPMagic.
type ErrInvalidMagic struct{ Got byte }

func (e *ErrInvalidMagic) Error() string {
	return fmt.Sprintf("invalid firmware header magic: 0x%02X, expected 0x%02X", e.Got, ESPMagic)
}

// ErrInvalidHeaderSize is returned when the first sector is too small to
// contain an ImageHeader.
type ErrInvalidHeaderSize struct{}

func (e *ErrInvalidHeaderSize) Error() string { return "firmware header too small" }

// ErrInvalidSegmentCount is returned when segment_count is zero or exceeds
// MaxSegments.
type ErrInvalidSegmentCount struct{ Count byte }

func (e *ErrInvalidSegmentCount) Error() string {
	return fmt.Sprintf("invalid segment count: %d", e.Count)
}

// ErrSegmentTooLarge is returned when a segment's declared length exceeds
// MaxSegmentSize.
type ErrSegmentTooLarge struct{ Size uint32 }

func (e *ErrSegmentTooLarge) Error() string {
	return fmt.Sprintf("segment size too large: %d bytes", e.Size)
}

// ErrSectorOutOfBounds is returned when walking the segment table runs past
// the end of the reader.
type ErrSectorOutOfBounds struct{ Sector uint32 }

func (e *ErrSectorOutOfBounds) Error() string {
	return fmt.Sprintf("sector %d is out of bounds", e.Sector)
}

// ErrCorruptedSegmentHeader is returned when a segment header's offsets
// overflow uint32 or can't be fully read.
type ErrCorruptedSegmentHeader struct{}

func (e *ErrCorruptedSegmentHeader) Error() string { return "corrupted segment header" }

// imageHeader is the 24-byte fixed header at the start of sector 0.
type imageHeader struct {
	magic           byte
	segmentCount    byte
	flashMode       byte
	flashConfig     byte
	entry           uint32
	wpPin           byte
	clkQDrv         byte
	dCsDrv          byte
	gdWpDrv         byte
	chipID          uint16
	minRev          byte
	minChipRevFull  uint16
	maxChipRevFull  uint16
	reserved        [4]byte
	appendDigest    byte
}

func parseImageHeader(b []byte) imageHeader {
	return imageHeader{
		magic:          b[0],
		segmentCount:   b[1],
		flashMode:      b[2],
		flashConfig:    b[3],
		entry:          le32(b[4:8]),
		wpPin:          b[8],
		clkQDrv:        b[9],
		dCsDrv:         b[10],
		gdWpDrv:        b[11],
		chipID:         le16(b[12:14]),
		minRev:         b[14],
		minChipRevFull: le16(b[15:17]),
		maxChipRevFull: le16(b[17:19]),
		reserved:       [4]byte{b[19], b[20], b[21], b[22]},
		appendDigest:   b[23],
	}
}

// segmentHeader precedes each segment's data within the image.
type segmentHeader struct {
	addr   uint32
	length uint32
}

func parseSegmentHeader(b []byte) segmentHeader {
	return segmentHeader{addr: le32(b[0:4]), length: le32(b[4:8])}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// FindSignatureSector scans sectors in reverse order for SignatureBlockMagic,
// returning the sector index and true if found.
func FindSignatureSector(r SectorReader) (uint32, bool) {
	n := r.NSectors()
	for i := n; i > 0; i-- {
		sector, err := r.ReadSector(i - 1)
		if err != nil {
			continue
		}
		if sector[0] == SignatureBlockMagic[0] && sector[1] == SignatureBlockMagic[1] &&
			sector[2] == SignatureBlockMagic[2] && sector[3] == SignatureBlockMagic[3] {
			return i - 1, true
		}
	}
	return 0, false
}

// Size computes the true size of an ESP32 firmware image: firmwareOnly is
// the header, segments, padding, and optional digest; total additionally
// includes any appended Secure Boot V2 signature blocks, or equals
// firmwareOnly if none are present.
func Size(r SectorReader) (firmwareOnly uint32, total uint32, err error) {
	firstSector, err := r.ReadSector(0)
	if err != nil {
		return 0, 0, &ErrIO{Sector: 0, Err: err}
	}
	if len(firstSector) < HeaderSize {
		return 0, 0, &ErrInvalidHeaderSize{}
	}
	header := parseImageHeader(firstSector[:])

	if header.magic != ESPMagic {
		return 0, 0, &ErrInvalidMagic{Got: header.magic}
	}
	if header.segmentCount == 0 || header.segmentCount > MaxSegments {
		return 0, 0, &ErrInvalidSegmentCount{Count: header.segmentCount}
	}

	currentPos := uint32(HeaderSize)
	maxDataEnd := currentPos

	for i := byte(0); i < header.segmentCount; i++ {
		seg, err := readSegmentHeaderSafe(r, currentPos)
		if err != nil {
			return 0, 0, err
		}
		if seg.length > MaxSegmentSize {
			return 0, 0, &ErrSegmentTooLarge{Size: seg.length}
		}

		segDataEnd, ok := checkedAdd(currentPos, uint32(SegmentHeaderSize), seg.length)
		if !ok {
			return 0, 0, &ErrCorruptedSegmentHeader{}
		}

		if segDataEnd > maxDataEnd {
			maxDataEnd = segDataEnd
		}
		currentPos = segDataEnd
	}

	unpaddedLength := maxDataEnd
	lengthWithChecksum := unpaddedLength + 1
	paddedLength := (lengthWithChecksum + 15) &^ 15

	firmwareEnd := paddedLength
	if header.appendDigest == 1 {
		if firmwareEnd > ^uint32(0)-32 {
			return 0, 0, &ErrCorruptedSegmentHeader{}
		}
		firmwareEnd += 32
	}

	if sigSector, ok := FindSignatureSector(r); ok {
		totalSize := (sigSector + 1) * SectorSize
		return firmwareEnd, totalSize, nil
	}
	return firmwareEnd, firmwareEnd, nil
}

func checkedAdd(a, b, c uint32) (uint32, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	sum2 := sum + c
	if sum2 < sum {
		return 0, false
	}
	return sum2, true
}

// readSegmentHeaderSafe reads the 8-byte segment header starting at byte
// offset pos within the image, transparently stitching together two
// sectors when the header straddles a sector boundary.
func readSegmentHeaderSafe(r SectorReader, pos uint32) (segmentHeader, error) {
	sectorNum := pos / SectorSize
	sectorOffset := pos % SectorSize

	if sectorNum >= r.NSectors() {
		return segmentHeader{}, &ErrSectorOutOfBounds{Sector: sectorNum}
	}
	sector, err := r.ReadSector(sectorNum)
	if err != nil {
		return segmentHeader{}, &ErrIO{Sector: sectorNum, Err: err}
	}

	if sectorOffset+SegmentHeaderSize <= SectorSize {
		end := sectorOffset + SegmentHeaderSize
		return parseSegmentHeader(sector[sectorOffset:end]), nil
	}

	var headerBytes [SegmentHeaderSize]byte
	firstPart := SectorSize - sectorOffset
	if firstPart > SegmentHeaderSize {
		firstPart = SegmentHeaderSize
	}
	copy(headerBytes[:firstPart], sector[sectorOffset:])

	if firstPart < SegmentHeaderSize {
		nextSectorNum := sectorNum + 1
		if nextSectorNum >= r.NSectors() {
			return segmentHeader{}, &ErrSectorOutOfBounds{Sector: nextSectorNum}
		}
		nextSector, err := r.ReadSector(nextSectorNum)
		if err != nil {
			return segmentHeader{}, &ErrIO{Sector: nextSectorNum, Err: err}
		}
		remaining := SegmentHeaderSize - firstPart
		copy(headerBytes[firstPart:], nextSector[:remaining])
	}

	return parseSegmentHeader(headerBytes[:]), nil
}
