package coordinator

import (
	"errors"

	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/nonce"
	"github.com/frostsnap/core/wire"
)

// Sign drives a single-message signing session to completion: reserving
// one fresh nonce per signer from the shared cache, requesting signature
// shares, and aggregating them into a verified Signature once every signer
// has replied. A disconnect partway through leaves the reserved nonces
// marked used but doesn't release them automatically — Cancel does that,
// matching spec's "sign sessions survive partial disconnect and resume"
// semantics: a caller can retry ProcessDeviceMessage for the remaining
// signers without burning a second nonce.
type Sign struct {
	group     group.Group
	key       *FrostKey
	cache     *nonce.Cache
	signers   []wire.DeviceId
	streamFor map[wire.DeviceId]nonce.StreamId

	request wire.SignRequest
	shares  map[wire.ShareIndex]wire.SignatureShare

	pending []wire.CoordinatorSend
	failed  bool
	done    bool
	sig     *frost.Signature

	onComplete func(*frost.Signature)

	// OnNonceExtend/OnNonceConsume let the owning Coordinator stage a
	// durable mutation synchronously whenever this session touches the
	// shared nonce cache, instead of Sign depending on persist directly.
	OnNonceExtend  func(device wire.DeviceId, seg nonce.Segment)
	OnNonceConsume func(device wire.DeviceId, stream nonce.StreamId, upTo uint32)
	// OnShareReceived lets the owning Coordinator persist each signature
	// share the instant it arrives, so the signing session's durable
	// record stays current even if the coordinator crashes before the
	// last share comes in.
	OnShareReceived func(idx wire.ShareIndex, share wire.SignatureShare)
	// OnSessionDone lets the owning Coordinator drop the signing session's
	// durable record once it can never be touched again, whether that's
	// because it finished successfully or was cancelled.
	OnSessionDone func()
}

// NewSign reserves nonces for signers from cache and prepares the
// RequestSign broadcast. Fails if any signer doesn't have a spare,
// unused nonce stream.
func NewSign(g group.Group, key *FrostKey, cache *nonce.Cache, signers []wire.DeviceId, task wire.SignTask, onComplete func(*frost.Signature)) (*Sign, error) {
	if len(signers) < key.Threshold {
		return nil, errors.New("coordinator: not enough signers to meet the key's threshold")
	}
	reserved, err := cache.NewSigningSession(signers, 1)
	if err != nil {
		return nil, err
	}

	nonces := make(map[wire.ShareIndex]wire.SignRequestNonces, len(signers))
	streamFor := make(map[wire.DeviceId]nonce.StreamId, len(signers))
	for _, device := range signers {
		idx, ok := key.DeviceToShareIndex[device]
		if !ok {
			return nil, errors.New("coordinator: signer isn't a participant in this key")
		}
		sub := reserved[device]
		nonces[idx] = wire.SignRequestNonces{
			Nonces:          sub.Segment.Nonces,
			Start:           uint64(sub.Segment.Index),
			NoncesRemaining: uint64(sub.Remaining),
		}
		streamFor[device] = sub.Segment.StreamID
	}

	req := wire.SignRequest{Nonces: nonces, SignTask: task, KeyID: key.KeyID}

	return &Sign{
		group:      g,
		key:        key,
		cache:      cache,
		signers:    signers,
		streamFor:  streamFor,
		request:    req,
		shares:     make(map[wire.ShareIndex]wire.SignatureShare),
		onComplete: onComplete,
		pending: []wire.CoordinatorSend{wire.CoordinatorSendToDevice{
			Message:      wire.RequestSign{Request: req},
			Destinations: signers,
		}},
	}, nil
}

// State returns the durable record of this session as of right now: which
// signers, nonce streams, and shares it's tracking. Coordinator.StartSign
// stages this before the RequestSign it came with ever leaves the host.
func (s *Sign) State() wire.SigningSessionState {
	streamFor := make(map[wire.DeviceId]wire.NonceStreamId, len(s.streamFor))
	for device, stream := range s.streamFor {
		streamFor[device] = stream
	}
	shares := make(map[wire.ShareIndex]wire.SignatureShare, len(s.shares))
	for idx, share := range s.shares {
		shares[idx] = share
	}
	return wire.SigningSessionState{
		SignSessionID: s.request.SessionID(),
		KeyID:         s.key.KeyID,
		Request:       s.request,
		StreamFor:     streamFor,
		Shares:        shares,
	}
}

func (s *Sign) Poll() []wire.CoordinatorSend {
	out := s.pending
	s.pending = nil
	return out
}

func (s *Sign) IsComplete() Completion {
	switch {
	case s.failed:
		return CompletedFailed
	case s.done:
		return CompletedOK
	default:
		return NotComplete
	}
}

// Cancel marks every signer's reserved nonce consumed (reporting it through
// OnNonceConsume) and then releases the signer's stream back to the cache,
// so a later session draws from the stream's next nonce rather than
// the one this session reserved.
func (s *Sign) Cancel() []wire.CoordinatorSend {
	s.failed = true
	for device, stream := range s.streamFor {
		idx := s.key.DeviceToShareIndex[device]
		consumeUpTo := uint32(s.request.Nonces[idx].Start) + 1
		s.cache.Consume(device, stream, consumeUpTo)
		if s.OnNonceConsume != nil {
			s.OnNonceConsume(device, stream, consumeUpTo)
		}
		s.cache.Release(device, stream)
	}
	if s.OnSessionDone != nil {
		s.OnSessionDone()
	}
	return nil
}

func (s *Sign) ProcessDeviceMessage(from wire.DeviceId, msg wire.DeviceToCoordinatorMessage) ([]wire.CoordinatorSend, error) {
	shareMsg, ok := msg.(wire.SignatureShareMsg)
	if !ok {
		return nil, nil
	}
	idx, ok := s.key.DeviceToShareIndex[from]
	if !ok || !s.request.ContainsSigner(idx) {
		return nil, nil
	}
	share, ok := shareMsg.Shares[idx]
	if !ok {
		return nil, nil
	}
	s.shares[idx] = share
	if s.OnShareReceived != nil {
		s.OnShareReceived(idx, share)
	}

	if len(shareMsg.NewNonces.Nonces) > 0 {
		seg := nonce.Segment{
			StreamID: s.streamFor[from],
			Nonces:   shareMsg.NewNonces.Nonces,
			Index:    uint32(shareMsg.NewNonces.StartIndex),
		}
		if _, err := s.cache.ExtendSegment(from, seg); err != nil {
			return nil, err
		}
		if s.OnNonceExtend != nil {
			s.OnNonceExtend(from, seg)
		}
	}

	if len(s.shares) < len(s.signers) {
		return []wire.CoordinatorSend{wire.CoordinatorSendToUser{
			Message: wire.CoordinatorSigningReport{Message: wire.GotShare{From: from}},
		}}, nil
	}
	return s.finalize()
}

func (s *Sign) finalize() ([]wire.CoordinatorSend, error) {
	fail := func(err error) ([]wire.CoordinatorSend, error) {
		s.failed = true
		if s.OnSessionDone != nil {
			s.OnSessionDone()
		}
		return nil, err
	}

	parties := s.request.Parties()
	commitments := make([]*frost.SigningCommitment, 0, len(parties))
	shares := make([]*frost.SignatureShare, 0, len(parties))
	for _, idx := range parties {
		n, ok := wire.ShareIndexToUint(idx)
		if !ok {
			return fail(errors.New("coordinator: signer share index isn't a sequential participant number"))
		}
		id := scalarFromInt(s.group, int(n))

		reqNonces := s.request.Nonces[idx]
		hidingPoint, err := s.group.NewPoint().SetBytes(reqNonces.Nonces[0].Hiding)
		if err != nil {
			return fail(err)
		}
		bindingPoint, err := s.group.NewPoint().SetBytes(reqNonces.Nonces[0].Binding)
		if err != nil {
			return fail(err)
		}
		commitments = append(commitments, &frost.SigningCommitment{ID: id, HidingPoint: hidingPoint, BindingPoint: bindingPoint})

		zBytes := s.shares[idx]
		z, err := s.group.NewScalar().SetBytes(zBytes[:])
		if err != nil {
			return fail(err)
		}
		shares = append(shares, &frost.SignatureShare{ID: id, Z: z})
	}

	f, err := frost.New(s.group, s.key.Threshold, len(s.key.DeviceToShareIndex))
	if err != nil {
		return fail(err)
	}
	digest := s.request.SignTask.Digest()
	sig, err := f.Aggregate(digest[:], commitments, shares)
	if err != nil {
		return fail(err)
	}
	groupKey, err := s.group.NewPoint().SetBytes(s.key.GroupKey)
	if err != nil {
		return fail(err)
	}
	if !f.Verify(digest[:], sig, groupKey) {
		return fail(errors.New("coordinator: aggregated signature failed verification"))
	}

	for device, stream := range s.streamFor {
		idx := s.key.DeviceToShareIndex[device]
		consumeUpTo := uint32(s.request.Nonces[idx].Start) + 1
		s.cache.Consume(device, stream, consumeUpTo)
		if s.OnNonceConsume != nil {
			s.OnNonceConsume(device, stream, consumeUpTo)
		}
	}

	s.sig = sig
	s.done = true
	if s.onComplete != nil {
		s.onComplete(sig)
	}
	if s.OnSessionDone != nil {
		s.OnSessionDone()
	}

	// EncodedSignature is the 64-byte BIP340 R||s encoding: R's compressed
	// point encoding is [parity byte][32-byte x], so only the x coordinate
	// is carried here. Only meaningful for the secp256k1 production curve.
	var encoded wire.EncodedSignature
	rBytes := sig.R.Bytes()
	copy(encoded[:32], rBytes[len(rBytes)-32:])
	copy(encoded[32:], sig.Z.Bytes())
	return []wire.CoordinatorSend{wire.CoordinatorSendToUser{
		Message: wire.CoordinatorSigningReport{Message: wire.Signed{Signatures: []wire.EncodedSignature{encoded}}},
	}}, nil
}
