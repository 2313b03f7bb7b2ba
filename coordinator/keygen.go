package coordinator

import (
	"errors"
	"sort"

	"github.com/frostsnap/core/device"
	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/wire"
	"github.com/google/uuid"
)

// scalarFromInt builds the group.Scalar a sequential participant number
// maps to, matching frost's internal low-byte packing for the participant
// counts this module supports (under 256): the coordinator never runs
// frost directly, but still needs to recognize which decoded
// Round1PrivateData.ToID belongs to which device.
func scalarFromInt(g group.Group, n int) group.Scalar {
	var buf [32]byte
	buf[31] = byte(n)
	s, _ := g.NewScalar().SetBytes(buf[:])
	return s
}

// evalCombinedPolynomial evaluates the sum of every broadcaster's
// committed polynomial at id, the same Feldman evaluation
// frost.Round2ReceiveShare performs to verify one private share — applied
// here to every broadcast at once to recover a participant's full public
// key share rather than verify a single one.
func evalCombinedPolynomial(g group.Group, broadcasts []*frost.Round1Data, id group.Scalar) group.Point {
	total := g.NewPoint()
	for _, b := range broadcasts {
		xPower := scalarFromInt(g, 1)
		for _, commit := range b.Commitments {
			term := g.NewPoint().ScalarMult(xPower, commit)
			total = g.NewPoint().Add(total, term)
			xPower = g.NewScalar().Mul(xPower, id)
		}
	}
	return total
}

// KeyGen drives a distributed key generation round across a fixed set of
// devices to completion: broadcasting DoKeyGen, collecting every device's
// Round1 response, redistributing the aggregated transcript, and
// confirming every device acknowledges the same session hash before
// reporting the finished FrostKey.
type KeyGen struct {
	ID                 wire.KeygenId
	group              group.Group
	devices            []wire.DeviceId
	deviceToShareIndex map[wire.DeviceId]wire.ShareIndex
	threshold          int
	keyName            wire.KeyName

	responses map[wire.DeviceId]*wire.KeygenResponse
	acks      map[wire.DeviceId]wire.SessionHash

	sessionHash wire.SessionHash
	keyID       wire.KeyId
	groupKey    []byte
	publicKeys  map[wire.DeviceId]wire.GroupPoint

	pending    []wire.CoordinatorSend
	failed     bool
	finalizing bool
	done       bool

	onComplete func(FrostKey)
}

// NewKeyGen assigns sequential share indices to devices and returns a
// KeyGen ready to Poll for its initial broadcast.
func NewKeyGen(g group.Group, devices []wire.DeviceId, threshold int, keyName wire.KeyName, onComplete func(FrostKey)) (*KeyGen, error) {
	if threshold < 1 || threshold > len(devices) {
		return nil, errors.New("coordinator: threshold must be between 1 and the number of devices")
	}
	ordered := append([]wire.DeviceId(nil), devices...)
	sort.Slice(ordered, func(i, j int) bool { return string(ordered[i][:]) < string(ordered[j][:]) })

	assignment := make(map[wire.DeviceId]wire.ShareIndex, len(ordered))
	for i, id := range ordered {
		assignment[id] = wire.ShareIndexFromUint(uint32(i + 1))
	}

	var id wire.KeygenId
	copy(id[:], uuid.New()[:])

	kg := &KeyGen{
		ID:                 id,
		group:              g,
		devices:            ordered,
		deviceToShareIndex: assignment,
		threshold:          threshold,
		keyName:            keyName,
		responses:          make(map[wire.DeviceId]*wire.KeygenResponse),
		acks:               make(map[wire.DeviceId]wire.SessionHash),
		onComplete:         onComplete,
	}
	kg.pending = append(kg.pending, wire.CoordinatorSendToDevice{
		Message:      wire.DoKeyGen{DeviceToShareIndex: assignment, Threshold: threshold, KeyName: keyName},
		Destinations: ordered,
	})
	return kg, nil
}

func (k *KeyGen) Poll() []wire.CoordinatorSend {
	out := k.pending
	k.pending = nil
	return out
}

func (k *KeyGen) IsComplete() Completion {
	switch {
	case k.failed:
		return CompletedFailed
	case k.done:
		return CompletedOK
	default:
		return NotComplete
	}
}

func (k *KeyGen) Cancel() []wire.CoordinatorSend {
	k.failed = true
	return nil
}

func (k *KeyGen) ProcessDeviceMessage(from wire.DeviceId, msg wire.DeviceToCoordinatorMessage) ([]wire.CoordinatorSend, error) {
	if _, inSession := k.deviceToShareIndex[from]; !inSession {
		return nil, nil
	}
	switch m := msg.(type) {
	case wire.KeyGenResponseMsg:
		return k.handleResponse(from, m)
	case wire.KeyGenAck:
		return k.handleAck(from, m)
	default:
		return nil, nil
	}
}

func (k *KeyGen) handleResponse(from wire.DeviceId, m wire.KeyGenResponseMsg) ([]wire.CoordinatorSend, error) {
	if k.finalizing {
		return nil, nil
	}
	resp := m.Response
	k.responses[from] = &resp

	if len(k.responses) < len(k.devices) {
		return []wire.CoordinatorSend{wire.CoordinatorSendToUser{
			Message: wire.CoordinatorKeyGenReport{Message: wire.ReceivedShares{From: from}},
		}}, nil
	}
	return k.finalize()
}

// finalize decodes every collected response, reassembles each recipient's
// private aggregation input, computes the shared group key and session
// hash locally (so it can be compared against every device's eventual
// KeyGenAck without waiting on one to report it first), and dispatches
// FinishKeyGen to every device.
func (k *KeyGen) finalize() ([]wire.CoordinatorSend, error) {
	k.finalizing = true

	broadcasts := make(map[wire.DeviceId]*frost.Round1Data, len(k.devices))
	sends := make(map[wire.DeviceId][]*frost.Round1PrivateData, len(k.devices))
	for _, id := range k.devices {
		resp := k.responses[id]
		broadcast, privateSends, err := device.DecodeKeyGenResponse(k.group, resp.Raw)
		if err != nil {
			k.failed = true
			return nil, err
		}
		broadcasts[id] = broadcast
		sends[id] = privateSends
	}

	orderedBroadcasts := make([]*frost.Round1Data, 0, len(k.devices))
	for _, id := range k.devices {
		orderedBroadcasts = append(orderedBroadcasts, broadcasts[id])
	}
	k.sessionHash = device.SessionHash(orderedBroadcasts)

	groupKeyPoint := k.group.NewPoint()
	for _, b := range orderedBroadcasts {
		groupKeyPoint = k.group.NewPoint().Add(groupKeyPoint, b.Commitments[0])
	}
	k.groupKey = groupKeyPoint.Bytes()
	k.keyID = device.KeyIDFromGroupKey(k.groupKey)

	k.publicKeys = make(map[wire.DeviceId]wire.GroupPoint, len(k.devices))
	for _, id := range k.devices {
		n, _ := wire.ShareIndexToUint(k.deviceToShareIndex[id])
		k.publicKeys[id] = evalCombinedPolynomial(k.group, orderedBroadcasts, scalarFromInt(k.group, int(n))).Bytes()
	}

	var out []wire.CoordinatorSend
	for _, recipient := range k.devices {
		recipientN, _ := wire.ShareIndexToUint(k.deviceToShareIndex[recipient])
		recipientID := scalarFromInt(k.group, int(recipientN))

		var myShares []*frost.Round1PrivateData
		for _, sender := range k.devices {
			if sender == recipient {
				continue
			}
			for _, s := range sends[sender] {
				if s.ToID.Equal(recipientID) {
					myShares = append(myShares, s)
				}
			}
		}
		agg := wire.KeygenAggInput{Raw: device.EncodeKeyGenAggInput(orderedBroadcasts, myShares)}
		out = append(out, wire.CoordinatorSendToDevice{
			Message:      wire.FinishKeyGen{AggInput: agg},
			Destinations: []wire.DeviceId{recipient},
		})
	}
	out = append(out, wire.CoordinatorSendToUser{
		Message: wire.CoordinatorKeyGenReport{Message: wire.CheckKeyGen{SessionHash: k.sessionHash}},
	})
	return out, nil
}

func (k *KeyGen) handleAck(from wire.DeviceId, m wire.KeyGenAck) ([]wire.CoordinatorSend, error) {
	if !k.finalizing {
		return nil, nil
	}
	if m.SessionHash != k.sessionHash {
		k.failed = true
		return nil, errors.New("coordinator: device acknowledged a different keygen session hash than the one assembled")
	}
	k.acks[from] = m.SessionHash

	allAcked := len(k.acks) == len(k.devices)
	out := []wire.CoordinatorSend{wire.CoordinatorSendToUser{
		Message: wire.CoordinatorKeyGenReport{Message: wire.KeyGenAckReport{From: from, AllAcksReceived: allAcked}},
	}}
	if allAcked {
		k.done = true
		if k.onComplete != nil {
			k.onComplete(FrostKey{
				KeyID:              k.keyID,
				KeyName:            k.keyName,
				Threshold:          k.threshold,
				GroupKey:           k.groupKey,
				DeviceToPublicKey:  k.publicKeys,
				DeviceToShareIndex: k.deviceToShareIndex,
			})
		}
	}
	return out, nil
}
