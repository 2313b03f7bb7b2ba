package device

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"sort"

	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/nonce"
	"github.com/frostsnap/core/wire"
	"github.com/frostsnap/core/workflow"
)

// ErrNotInKeyGen is returned when a FinishKeyGen or keygen confirmation
// arrives while the device isn't running the matching round.
var ErrNotInKeyGen = errors.New("device: not running a key generation round")

func (d *Device) handleDoKeyGen(msg wire.DoKeyGen) ([]wire.DeviceSend, error) {
	myShareIndex, inKeyGen := msg.DeviceToShareIndex[d.ID]
	if !inKeyGen {
		// Not a participant in this run; silently ignore per the
		// out-of-state message policy.
		return nil, nil
	}

	myID, err := shareIndexToInt(myShareIndex)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(msg.DeviceToShareIndex))
	for _, idx := range msg.DeviceToShareIndex {
		id, err := shareIndexToInt(idx)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	f, err := frost.New(d.Group, msg.Threshold, len(ids))
	if err != nil {
		return nil, err
	}
	participant, err := f.NewParticipant(rand.Reader, myID)
	if err != nil {
		return nil, err
	}
	broadcast := participant.Round1Broadcast()

	sends := make([]*frost.Round1PrivateData, 0, len(ids)-1)
	for _, otherID := range ids {
		if otherID == myID {
			continue
		}
		sends = append(sends, f.Round1PrivateSend(participant, otherID))
	}

	d.Protocol = &KeyGenRunning{
		KeyName:      msg.KeyName,
		Threshold:    msg.Threshold,
		MyID:         myID,
		MyShareIndex: myShareIndex,
		IDs:          ids,
		Participant:  participant,
		Broadcast:    broadcast,
	}

	response := wire.KeygenResponse{Raw: EncodeKeyGenResponse(broadcast, sends)}
	return []wire.DeviceSend{
		wire.DeviceSendToCoordinator{Message: wire.KeyGenResponseMsg{Response: response}},
	}, nil
}

func (d *Device) handleFinishKeyGen(msg wire.FinishKeyGen) ([]wire.DeviceSend, error) {
	running, ok := d.Protocol.(*KeyGenRunning)
	if !ok {
		return nil, nil
	}

	broadcasts, myShares, err := DecodeKeyGenAggInput(d.Group, msg.AggInput.Raw)
	if err != nil {
		return nil, err
	}
	if len(myShares) != len(running.IDs)-1 {
		return nil, errors.New("device: aggregated keygen input has the wrong number of shares")
	}

	broadcastByID := make(map[string]*frost.Round1Data, len(broadcasts))
	for _, b := range broadcasts {
		broadcastByID[string(b.ID.Bytes())] = b
	}

	f, err := frost.New(d.Group, running.Threshold, len(running.IDs))
	if err != nil {
		return nil, err
	}

	for _, share := range myShares {
		sender, ok := broadcastByID[string(share.FromID.Bytes())]
		if !ok {
			return nil, errors.New("device: keygen share from an unknown participant")
		}
		if err := f.Round2ReceiveShare(running.Participant, share, sender.Commitments); err != nil {
			return nil, err
		}
	}

	keyShare, err := f.Finalize(running.Participant, broadcasts)
	if err != nil {
		return nil, err
	}

	sessionHash := keygenSessionHash(broadcasts)
	keyID := keyIDFromGroupKey(keyShare.GroupKey.Bytes())

	paired := wire.PairedSecretShare{
		KeyID:      keyID,
		ShareIndex: running.MyShareIndex,
		Secret:     wire.GroupScalar(toFixed32(keyShare.SecretKey.Bytes())),
		PublicKey:  append([]byte(nil), keyShare.PublicKey.Bytes()...),
		GroupKey:   append([]byte(nil), keyShare.GroupKey.Bytes()...),
		Threshold:  running.Threshold,
	}

	d.Protocol = &KeyGenAwaitingConfirm{
		Share:       paired,
		KeyName:     running.KeyName,
		SessionHash: sessionHash,
	}
	d.Workflow = workflow.NewUserPrompt(workflow.KeyGenConfirm{Digest: [32]byte(sessionHash)})

	return []wire.DeviceSend{
		wire.DeviceSendToUser{Message: wire.DeviceCheckKeyGen{
			KeyID:       keyID,
			SessionHash: sessionHash,
			KeyName:     running.KeyName,
		}},
	}, nil
}

// confirmKeyGen is called when the user holds to confirm a
// KeyGenAwaitingConfirm prompt: it commits the share to storage and
// acknowledges the session to the coordinator.
func (d *Device) confirmKeyGen() ([]wire.DeviceSend, error) {
	awaiting, ok := d.Protocol.(*KeyGenAwaitingConfirm)
	if !ok {
		return nil, ErrNotInKeyGen
	}

	streamID, err := nonce.RandomStreamId(rand.Reader)
	if err != nil {
		return nil, err
	}

	d.Keys[awaiting.Share.KeyID] = awaiting.Share
	d.keyNames[awaiting.Share.KeyID] = awaiting.KeyName
	d.Streams[awaiting.Share.KeyID] = &streamState{ID: streamID}
	d.Protocol = Idle{}
	d.Workflow = workflow.Cancel(d.Workflow)

	return []wire.DeviceSend{
		wire.DeviceSendToStorage{Message: wire.SaveKey{Share: awaiting.Share}},
		wire.DeviceSendToCoordinator{Message: wire.KeyGenAck{SessionHash: awaiting.SessionHash}},
	}, nil
}

// SessionHash computes the DKG transcript digest a completed keygen round
// is acknowledged under. Exported so the coordinator can verify every
// device acknowledges the same transcript it assembled from their
// responses.
func SessionHash(broadcasts []*frost.Round1Data) wire.SessionHash {
	return keygenSessionHash(broadcasts)
}

// KeyIDFromGroupKey derives the KeyId a finalized group key is known by.
// Exported so the coordinator can compute the same id from the broadcasts
// it collects, without waiting on a device to report one.
func KeyIDFromGroupKey(groupKey []byte) wire.KeyId {
	return keyIDFromGroupKey(groupKey)
}

func keygenSessionHash(broadcasts []*frost.Round1Data) wire.SessionHash {
	ordered := append([]*frost.Round1Data(nil), broadcasts...)
	sort.Slice(ordered, func(i, j int) bool {
		return string(ordered[i].ID.Bytes()) < string(ordered[j].ID.Bytes())
	})
	h := sha256.New()
	for _, b := range ordered {
		h.Write(encodeRound1Data(b))
	}
	var out wire.SessionHash
	copy(out[:], h.Sum(nil))
	return out
}

func keyIDFromGroupKey(groupKey []byte) wire.KeyId {
	sum := sha256.Sum256(groupKey)
	var out wire.KeyId
	copy(out[:], sum[:])
	return out
}

func toFixed32(b []byte) [32]byte {
	var out [32]byte
	copy(out[32-len(b):], b)
	return out
}
