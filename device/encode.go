package device

import (
	"encoding/binary"
	"errors"

	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
)

// ErrTruncated is returned by the decode helpers below when a buffer ends
// before a length-prefixed field it promised.
var ErrTruncated = errors.New("device: truncated transcript buffer")

func putLP(out []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	out = append(out, lenBuf[:]...)
	return append(out, b...)
}

func takeLP(data []byte) (value, rest []byte, err error) {
	if len(data) < 4 {
		return nil, nil, ErrTruncated
	}
	n := binary.LittleEndian.Uint32(data[:4])
	data = data[4:]
	if uint64(len(data)) < uint64(n) {
		return nil, nil, ErrTruncated
	}
	return data[:n], data[n:], nil
}

func putUint32(out []byte, n uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], n)
	return append(out, buf[:]...)
}

func takeUint32(data []byte) (uint32, []byte, error) {
	if len(data) < 4 {
		return 0, nil, ErrTruncated
	}
	return binary.LittleEndian.Uint32(data[:4]), data[4:], nil
}

// encodeRound1Data renders a participant's broadcast commitments as
// [id][count][commitment]*.
func encodeRound1Data(d *frost.Round1Data) []byte {
	out := putLP(nil, d.ID.Bytes())
	out = putUint32(out, uint32(len(d.Commitments)))
	for _, c := range d.Commitments {
		out = putLP(out, c.Bytes())
	}
	return out
}

func decodeRound1Data(g group.Group, data []byte) (*frost.Round1Data, []byte, error) {
	idBytes, rest, err := takeLP(data)
	if err != nil {
		return nil, nil, err
	}
	id, err := g.NewScalar().SetBytes(idBytes)
	if err != nil {
		return nil, nil, err
	}
	count, rest, err := takeUint32(rest)
	if err != nil {
		return nil, nil, err
	}
	commitments := make([]group.Point, count)
	for i := range commitments {
		var cBytes []byte
		cBytes, rest, err = takeLP(rest)
		if err != nil {
			return nil, nil, err
		}
		commitments[i], err = g.NewPoint().SetBytes(cBytes)
		if err != nil {
			return nil, nil, err
		}
	}
	return &frost.Round1Data{ID: id, Commitments: commitments}, rest, nil
}

// encodePrivateData renders a single private share as [from][to][share].
func encodePrivateData(d *frost.Round1PrivateData) []byte {
	out := putLP(nil, d.FromID.Bytes())
	out = putLP(out, d.ToID.Bytes())
	out = putLP(out, d.Share.Bytes())
	return out
}

func decodePrivateData(g group.Group, data []byte) (*frost.Round1PrivateData, []byte, error) {
	fromBytes, rest, err := takeLP(data)
	if err != nil {
		return nil, nil, err
	}
	fromID, err := g.NewScalar().SetBytes(fromBytes)
	if err != nil {
		return nil, nil, err
	}
	toBytes, rest, err := takeLP(rest)
	if err != nil {
		return nil, nil, err
	}
	toID, err := g.NewScalar().SetBytes(toBytes)
	if err != nil {
		return nil, nil, err
	}
	shareBytes, rest, err := takeLP(rest)
	if err != nil {
		return nil, nil, err
	}
	share, err := g.NewScalar().SetBytes(shareBytes)
	if err != nil {
		return nil, nil, err
	}
	return &frost.Round1PrivateData{FromID: fromID, ToID: toID, Share: share}, rest, nil
}

// EncodeKeyGenResponse packs one device's DKG round-1 contribution into the
// opaque blob carried by wire.KeygenResponse: its own broadcast followed by
// the private shares it computed for every other participant. The
// coordinator splits these back apart per recipient when it builds each
// device's wire.KeygenAggInput.
func EncodeKeyGenResponse(broadcast *frost.Round1Data, sends []*frost.Round1PrivateData) []byte {
	out := putLP(nil, encodeRound1Data(broadcast))
	out = putUint32(out, uint32(len(sends)))
	for _, s := range sends {
		out = putLP(out, encodePrivateData(s))
	}
	return out
}

// DecodeKeyGenResponse reverses EncodeKeyGenResponse.
func DecodeKeyGenResponse(g group.Group, data []byte) (*frost.Round1Data, []*frost.Round1PrivateData, error) {
	broadcastBytes, rest, err := takeLP(data)
	if err != nil {
		return nil, nil, err
	}
	broadcast, _, err := decodeRound1Data(g, broadcastBytes)
	if err != nil {
		return nil, nil, err
	}
	count, rest, err := takeUint32(rest)
	if err != nil {
		return nil, nil, err
	}
	sends := make([]*frost.Round1PrivateData, count)
	for i := range sends {
		var pdBytes []byte
		pdBytes, rest, err = takeLP(rest)
		if err != nil {
			return nil, nil, err
		}
		sends[i], _, err = decodePrivateData(g, pdBytes)
		if err != nil {
			return nil, nil, err
		}
	}
	return broadcast, sends, nil
}

// EncodeKeyGenAggInput packs the coordinator's per-recipient aggregation:
// every participant's public broadcast, plus only the private shares
// addressed to the recipient this blob is being sent to.
func EncodeKeyGenAggInput(broadcasts []*frost.Round1Data, myShares []*frost.Round1PrivateData) []byte {
	out := putUint32(nil, uint32(len(broadcasts)))
	for _, b := range broadcasts {
		out = putLP(out, encodeRound1Data(b))
	}
	out = putUint32(out, uint32(len(myShares)))
	for _, s := range myShares {
		out = putLP(out, encodePrivateData(s))
	}
	return out
}

// DecodeKeyGenAggInput reverses EncodeKeyGenAggInput.
func DecodeKeyGenAggInput(g group.Group, data []byte) (broadcasts []*frost.Round1Data, myShares []*frost.Round1PrivateData, err error) {
	count, rest, err := takeUint32(data)
	if err != nil {
		return nil, nil, err
	}
	broadcasts = make([]*frost.Round1Data, count)
	for i := range broadcasts {
		var bBytes []byte
		bBytes, rest, err = takeLP(rest)
		if err != nil {
			return nil, nil, err
		}
		broadcasts[i], _, err = decodeRound1Data(g, bBytes)
		if err != nil {
			return nil, nil, err
		}
	}
	shareCount, rest, err := takeUint32(rest)
	if err != nil {
		return nil, nil, err
	}
	myShares = make([]*frost.Round1PrivateData, shareCount)
	for i := range myShares {
		var pdBytes []byte
		pdBytes, rest, err = takeLP(rest)
		if err != nil {
			return nil, nil, err
		}
		myShares[i], _, err = decodePrivateData(g, pdBytes)
		if err != nil {
			return nil, nil, err
		}
	}
	return broadcasts, myShares, nil
}
