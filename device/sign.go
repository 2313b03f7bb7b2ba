package device

import (
	"bytes"
	"errors"
	"sort"

	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/nonce"
	"github.com/frostsnap/core/wire"
	"github.com/frostsnap/core/workflow"
)

// ErrUnknownKey is returned when a message names a KeyId this device
// doesn't hold a share of.
var ErrUnknownKey = errors.New("device: no share held for this key")

// ErrNonceRangeMismatch is returned when a SignRequest's nonces for this
// device don't line up with its nonce stream's next unreleased range — a
// coordinator replaying stale nonces or inventing indices it was never
// given.
var ErrNonceRangeMismatch = errors.New("device: signing request nonces don't match the device's next unreleased range")

// ErrNonceMismatch is returned when a SignRequest's published nonce points
// don't match what this device's stream would actually derive at that
// index, meaning the coordinator tampered with (or misrecorded) them.
var ErrNonceMismatch = errors.New("device: signing request nonce doesn't match the device's derived nonce")

func (d *Device) handleRequestNonces() ([]wire.DeviceSend, []wire.DeviceSend, error) {
	// RequestNonces isn't scoped to one key: the coordinator is asking for
	// a fresh batch from every stream this device maintains.
	var storageSends, coordSends []wire.DeviceSend
	for keyID, stream := range d.Streams {
		nonces := make([]wire.Binonce, nonceBatchSize)
		for i := uint32(0); i < nonceBatchSize; i++ {
			bn, err := nonce.DeriveBinonce(d.Group, d.LongTermSecret, stream.ID, stream.Released+i)
			if err != nil {
				return nil, nil, err
			}
			nonces[i] = bn
		}
		start := stream.Released
		stream.Released += nonceBatchSize
		storageSends = append(storageSends, wire.DeviceSendToStorage{
			Message: wire.ExpendNonce{NonceCounter: stream.Released},
		})
		coordSends = append(coordSends, wire.DeviceSendToCoordinator{
			Message: wire.NonceResponse{Nonces: wire.DeviceNonces{StartIndex: uint64(start), Nonces: nonces}},
		})
		_ = keyID
	}
	return storageSends, coordSends, nil
}

func (d *Device) handleRequestSign(msg wire.RequestSign) ([]wire.DeviceSend, error) {
	req := msg.Request
	share, ok := d.Keys[req.KeyID]
	if !ok {
		// Not a key this device holds: a stale or misrouted request,
		// ignored rather than treated as a protocol error.
		return nil, nil
	}
	if !req.ContainsSigner(share.ShareIndex) {
		return nil, nil
	}
	myID, err := shareIndexToInt(share.ShareIndex)
	if err != nil {
		return nil, err
	}
	stream, ok := d.Streams[req.KeyID]
	if !ok {
		return nil, nil
	}

	myNonces := req.Nonces[share.ShareIndex]
	start32 := uint32(myNonces.Start)
	if uint64(start32) != myNonces.Start || len(myNonces.Nonces) != 1 {
		return nil, ErrNonceRangeMismatch
	}
	if start32 != stream.Expended || start32+1 > stream.Released {
		return nil, ErrNonceRangeMismatch
	}

	hiding, binding, err := nonce.DeriveNonce(d.Group, d.LongTermSecret, stream.ID, start32)
	if err != nil {
		return nil, err
	}
	derived, err := nonce.DeriveBinonce(d.Group, d.LongTermSecret, stream.ID, start32)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(derived.Hiding, myNonces.Nonces[0].Hiding) || !bytes.Equal(derived.Binding, myNonces.Nonces[0].Binding) {
		return nil, ErrNonceMismatch
	}

	if _, err := frost.New(d.Group, share.Threshold, len(req.Parties())); err != nil {
		return nil, err
	}

	parties := req.Parties()
	sort.Slice(parties, func(i, j int) bool { return string(parties[i][:]) < string(parties[j][:]) })
	commitments := make([]*frost.SigningCommitment, 0, len(parties))
	for _, idx := range parties {
		partyID, err := shareIndexToInt(idx)
		if err != nil {
			return nil, err
		}
		n := req.Nonces[idx]
		if len(n.Nonces) != 1 {
			return nil, ErrNonceRangeMismatch
		}
		hidingPoint, err := d.Group.NewPoint().SetBytes(n.Nonces[0].Hiding)
		if err != nil {
			return nil, err
		}
		bindingPoint, err := d.Group.NewPoint().SetBytes(n.Nonces[0].Binding)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, &frost.SigningCommitment{
			ID:           scalarFromInt(d.Group, partyID),
			HidingPoint:  hidingPoint,
			BindingPoint: bindingPoint,
		})
	}

	groupKey, err := d.Group.NewPoint().SetBytes(share.GroupKey)
	if err != nil {
		return nil, err
	}
	publicKey, err := d.Group.NewPoint().SetBytes(share.PublicKey)
	if err != nil {
		return nil, err
	}
	secret, err := d.Group.NewScalar().SetBytes(share.Secret[:])
	if err != nil {
		return nil, err
	}
	keyShare := &frost.KeyShare{
		ID:        scalarFromInt(d.Group, myID),
		SecretKey: secret,
		PublicKey: publicKey,
		GroupKey:  groupKey,
	}
	signingNonce := &frost.SigningNonce{ID: scalarFromInt(d.Group, myID), D: hiding, E: binding}

	d.Protocol = &SignAwaitingConfirm{
		Request:     req,
		MyShare:     share,
		MyID:        myID,
		NonceStart:  start32,
		NonceCount:  1,
		Commitments: commitments,
		Nonce:       signingNonce,
		KeyShare:    keyShare,
	}
	d.Workflow = workflow.NewUserPrompt(workflow.SigningConfirm{Digest: req.SignTask.Digest()})

	checked := wire.CheckedSignTask{SignTask: req.SignTask, Digest: req.SignTask.Digest()}
	return []wire.DeviceSend{
		wire.DeviceSendToUser{Message: wire.SignatureRequest{SignTask: checked, KeyID: req.KeyID}},
	}, nil
}

// confirmSign is called when the user confirms a SignAwaitingConfirm
// prompt: it produces this device's signature share, advances the nonce
// stream's expended counter past the consumed range before reporting
// anything upstream, and replenishes a fresh batch of nonces in the same
// reply.
func (d *Device) confirmSign() ([]wire.DeviceSend, error) {
	awaiting, ok := d.Protocol.(*SignAwaitingConfirm)
	if !ok {
		return nil, errors.New("device: not awaiting a signing confirmation")
	}

	f, err := frost.New(d.Group, awaiting.MyShare.Threshold, len(awaiting.Commitments))
	if err != nil {
		return nil, err
	}
	digest := awaiting.Request.SignTask.Digest()
	shareOut, err := f.SignRound2(awaiting.KeyShare, awaiting.Nonce, digest[:], awaiting.Commitments)
	if err != nil {
		return nil, err
	}

	stream := d.Streams[awaiting.Request.KeyID]
	stream.Expended = awaiting.NonceStart + awaiting.NonceCount

	freshStart := stream.Released
	freshNonces := make([]wire.Binonce, nonceBatchSize)
	for i := uint32(0); i < nonceBatchSize; i++ {
		bn, err := nonce.DeriveBinonce(d.Group, d.LongTermSecret, stream.ID, freshStart+i)
		if err != nil {
			return nil, err
		}
		freshNonces[i] = bn
	}
	stream.Released += nonceBatchSize

	var zBytes [32]byte
	copy(zBytes[:], shareOut.Z.Bytes())

	d.Protocol = Idle{}
	d.Workflow = workflow.Cancel(d.Workflow)

	return []wire.DeviceSend{
		wire.DeviceSendToStorage{Message: wire.ExpendNonce{NonceCounter: stream.Released}},
		wire.DeviceSendToCoordinator{Message: wire.SignatureShareMsg{
			Shares: map[wire.ShareIndex]wire.SignatureShare{
				awaiting.MyShare.ShareIndex: wire.SignatureShare(zBytes),
			},
			NewNonces: wire.DeviceNonces{StartIndex: uint64(freshStart), Nonces: freshNonces},
		}},
	}, nil
}

// scalarFromInt builds the group.Scalar frost.Participant would assign a
// small sequential participant number, matching FROST's internal
// big-endian packing so IDs compare equal across packages.
func scalarFromInt(g group.Group, n int) group.Scalar {
	var buf [32]byte
	buf[31] = byte(n)
	buf[30] = byte(n >> 8)
	buf[29] = byte(n >> 16)
	buf[28] = byte(n >> 24)
	s, _ := g.NewScalar().SetBytes(buf[:])
	return s
}
