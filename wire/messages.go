package wire

import (
	"crypto/sha256"
	"errors"
)

// SignTaskKind distinguishes what a SignRequest is actually asking devices
// to sign.
type SignTaskKind byte

const (
	SignTaskPlainMessage SignTaskKind = iota
	SignTaskTransaction
)

// SignTask is the thing a signing session produces signature shares over.
// Bitcoin transaction parsing itself is out of scope here; a transaction
// task carries its already-serialized form and is signed over its own
// digest the same way a plain message is.
type SignTask struct {
	Kind SignTaskKind
	Data []byte
}

func (t SignTask) MarshalBinary() ([]byte, error) {
	out := []byte{byte(t.Kind)}
	out = append(out, encodeBytesLP(t.Data)...)
	return out, nil
}

func (t *SignTask) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return ErrShortBuffer
	}
	t.Kind = SignTaskKind(data[0])
	payload, _, err := decodeBytesLP(data[1:])
	if err != nil {
		return err
	}
	t.Data = append([]byte(nil), payload...)
	return nil
}

// Digest is the value actually signed: SHA-256 of the tagged task bytes.
func (t SignTask) Digest() [32]byte {
	h := sha256.New()
	h.Write([]byte{byte(t.Kind)})
	h.Write(t.Data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CheckedSignTask is a SignTask a device has already validated (e.g.
// deserialized and sanity-checked a transaction) and is ready to display to
// the user and sign.
type CheckedSignTask struct {
	SignTask
	Digest [32]byte
}

// PairedSecretShare is a device's share bound to the access structure it
// belongs to: enough to produce signature shares without needing the whole
// AccessStructure replayed.
type PairedSecretShare struct {
	KeyID      KeyId
	ShareIndex ShareIndex
	Secret     GroupScalar
	PublicKey  GroupPoint
	GroupKey   GroupPoint
	Threshold  int
}

// KeygenAggInput is the coordinator-aggregated DKG input devices finalize
// keygen from. Its contents are produced and consumed by the device
// package's EncodeKeyGenAggInput/DecodeKeyGenAggInput;
// wire only carries it as an opaque, length-prefixed blob so the frame
// codec doesn't need to know curve-specific encoding details.
type KeygenAggInput struct {
	Raw []byte
}

func (a KeygenAggInput) MarshalBinary() ([]byte, error) { return encodeBytesLP(a.Raw), nil }

func (a *KeygenAggInput) UnmarshalBinary(data []byte) error {
	raw, _, err := decodeBytesLP(data)
	if err != nil {
		return err
	}
	a.Raw = append([]byte(nil), raw...)
	return nil
}

// KeygenResponse is a single device's DKG round contribution, opaque to
// wire for the same reason as KeygenAggInput.
type KeygenResponse struct {
	Raw []byte
}

func (r KeygenResponse) MarshalBinary() ([]byte, error) { return encodeBytesLP(r.Raw), nil }

func (r *KeygenResponse) UnmarshalBinary(data []byte) error {
	raw, _, err := decodeBytesLP(data)
	if err != nil {
		return err
	}
	r.Raw = append([]byte(nil), raw...)
	return nil
}

// DeviceNonces is a batch of a device's published nonces, starting at
// StartIndex in its deterministic nonce stream.
type DeviceNonces struct {
	StartIndex uint64
	Nonces     []Binonce
}

// ReplenishStart is the index the coordinator should request the device's
// next batch of nonces from.
func (d DeviceNonces) ReplenishStart() uint64 {
	return d.StartIndex + uint64(len(d.Nonces))
}

func (d DeviceNonces) MarshalBinary() ([]byte, error) {
	out := encodeUint64(d.StartIndex)
	out = append(out, encodeUint32(uint32(len(d.Nonces)))...)
	for _, n := range d.Nonces {
		b, _ := n.MarshalBinary()
		out = append(out, encodeBytesLP(b)...)
	}
	return out, nil
}

func (d *DeviceNonces) UnmarshalBinary(data []byte) error {
	start, rest, err := decodeUint64(data)
	if err != nil {
		return err
	}
	count, rest, err := decodeUint32(rest)
	if err != nil {
		return err
	}
	nonces := make([]Binonce, count)
	for i := range nonces {
		raw, next, err := decodeBytesLP(rest)
		if err != nil {
			return err
		}
		if err := nonces[i].UnmarshalBinary(raw); err != nil {
			return err
		}
		rest = next
	}
	d.StartIndex = start
	d.Nonces = nonces
	return nil
}

// SignRequestNonces is the slice of a signer's nonce stream the coordinator
// has committed to using for one signing session.
type SignRequestNonces struct {
	Nonces          []Binonce
	Start           uint64
	NoncesRemaining uint64
}

func (n SignRequestNonces) MarshalBinary() ([]byte, error) {
	out := encodeUint32(uint32(len(n.Nonces)))
	for _, bn := range n.Nonces {
		b, _ := bn.MarshalBinary()
		out = append(out, encodeBytesLP(b)...)
	}
	out = append(out, encodeUint64(n.Start)...)
	out = append(out, encodeUint64(n.NoncesRemaining)...)
	return out, nil
}

func (n *SignRequestNonces) UnmarshalBinary(data []byte) error {
	count, rest, err := decodeUint32(data)
	if err != nil {
		return err
	}
	nonces := make([]Binonce, count)
	for i := range nonces {
		raw, next, err := decodeBytesLP(rest)
		if err != nil {
			return err
		}
		if err := nonces[i].UnmarshalBinary(raw); err != nil {
			return err
		}
		rest = next
	}
	start, rest, err := decodeUint64(rest)
	if err != nil {
		return err
	}
	remaining, _, err := decodeUint64(rest)
	if err != nil {
		return err
	}
	n.Nonces = nonces
	n.Start = start
	n.NoncesRemaining = remaining
	return nil
}

// SignRequest is the coordinator's outgoing ask for signature shares: which
// nonces each signer should use, what they're signing, and which key.
type SignRequest struct {
	Nonces   map[ShareIndex]SignRequestNonces
	SignTask SignTask
	KeyID    KeyId
}

// orderedShareIndices returns r's signer indices sorted lexicographically by
// their raw bytes, for a canonical (deterministic) encoding.
func (r SignRequest) orderedShareIndices() []ShareIndex {
	out := make([]ShareIndex, 0, len(r.Nonces))
	for idx := range r.Nonces {
		out = append(out, idx)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && lessShareIndex(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func lessShareIndex(a, b ShareIndex) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (r SignRequest) MarshalBinary() ([]byte, error) {
	indices := r.orderedShareIndices()
	out := encodeUint32(uint32(len(indices)))
	for _, idx := range indices {
		out = append(out, idx[:]...)
		b, _ := r.Nonces[idx].MarshalBinary()
		out = append(out, encodeBytesLP(b)...)
	}
	taskBytes, _ := r.SignTask.MarshalBinary()
	out = append(out, encodeBytesLP(taskBytes)...)
	out = append(out, r.KeyID[:]...)
	return out, nil
}

func (r *SignRequest) UnmarshalBinary(data []byte) error {
	count, rest, err := decodeUint32(data)
	if err != nil {
		return err
	}
	nonces := make(map[ShareIndex]SignRequestNonces, count)
	for i := uint32(0); i < count; i++ {
		idxBytes, next, err := decodeFixedBytes(rest, 32)
		if err != nil {
			return err
		}
		var idx ShareIndex
		copy(idx[:], idxBytes)
		raw, next2, err := decodeBytesLP(next)
		if err != nil {
			return err
		}
		var srn SignRequestNonces
		if err := srn.UnmarshalBinary(raw); err != nil {
			return err
		}
		nonces[idx] = srn
		rest = next2
	}
	taskBytes, rest, err := decodeBytesLP(rest)
	if err != nil {
		return err
	}
	var task SignTask
	if err := task.UnmarshalBinary(taskBytes); err != nil {
		return err
	}
	keyIDBytes, _, err := decodeFixedBytes(rest, 32)
	if err != nil {
		return err
	}
	var keyID KeyId
	copy(keyID[:], keyIDBytes)

	r.Nonces = nonces
	r.SignTask = task
	r.KeyID = keyID
	return nil
}

// SessionID is the canonical identifier of this signing session: SHA-256 of
// the request's own wire encoding, so all participants agree on it without
// further negotiation.
func (r SignRequest) SessionID() SignSessionId {
	b, _ := r.MarshalBinary()
	return SignSessionId(sha256.Sum256(b))
}

// AggNonce aggregates the nonce at position index across every signer's
// contribution, for use computing the binding factor.
func (r SignRequest) AggNonce(index int) (hiding, binding []byte, ok bool) {
	var hidingPts, bindingPts [][]byte
	for _, idx := range r.orderedShareIndices() {
		n := r.Nonces[idx]
		if index < len(n.Nonces) {
			hidingPts = append(hidingPts, n.Nonces[index].Hiding)
			bindingPts = append(bindingPts, n.Nonces[index].Binding)
		}
	}
	if len(hidingPts) == 0 {
		return nil, nil, false
	}
	return concatAll(hidingPts), concatAll(bindingPts), true
}

func concatAll(parts [][]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Parties returns the signer indices this request names, in canonical
// order.
func (r SignRequest) Parties() []ShareIndex { return r.orderedShareIndices() }

// ContainsSigner reports whether idx is one of this request's signers.
func (r SignRequest) ContainsSigner(idx ShareIndex) bool {
	_, ok := r.Nonces[idx]
	return ok
}

// ---- CoordinatorToDeviceMessage ----

// CoordinatorToDeviceMessage is the tagged union of messages the
// coordinator can send to a device.
type CoordinatorToDeviceMessage interface {
	Kind() MessageKind
	isCoordinatorToDeviceMessage()
}

var (
	KindDoKeyGen         = registerKindName(1, "DoKeyGen")
	KindFinishKeyGen     = registerKindName(2, "FinishKeyGen")
	KindRequestSign      = registerKindName(3, "RequestSign")
	KindRequestNonces    = registerKindName(4, "RequestNonces")
	KindDisplayBackup    = registerKindName(5, "DisplayBackup")
	KindCheckShareBackup = registerKindName(6, "CheckShareBackup")
)

type DoKeyGen struct {
	DeviceToShareIndex map[DeviceId]ShareIndex
	Threshold          int
	KeyName            KeyName
}

func (DoKeyGen) Kind() MessageKind               { return KindDoKeyGen }
func (DoKeyGen) isCoordinatorToDeviceMessage()    {}

type FinishKeyGen struct {
	AggInput KeygenAggInput
}

func (FinishKeyGen) Kind() MessageKind            { return KindFinishKeyGen }
func (FinishKeyGen) isCoordinatorToDeviceMessage() {}

type RequestSign struct {
	Request SignRequest
}

func (RequestSign) Kind() MessageKind            { return KindRequestSign }
func (RequestSign) isCoordinatorToDeviceMessage() {}

type RequestNonces struct{}

func (RequestNonces) Kind() MessageKind            { return KindRequestNonces }
func (RequestNonces) isCoordinatorToDeviceMessage() {}

type DisplayBackup struct {
	KeyID KeyId
}

func (DisplayBackup) Kind() MessageKind            { return KindDisplayBackup }
func (DisplayBackup) isCoordinatorToDeviceMessage() {}

type CheckShareBackup struct{}

func (CheckShareBackup) Kind() MessageKind            { return KindCheckShareBackup }
func (CheckShareBackup) isCoordinatorToDeviceMessage() {}

// EncodeCoordinatorToDeviceMessage renders msg as [kind byte][payload].
func EncodeCoordinatorToDeviceMessage(msg CoordinatorToDeviceMessage) ([]byte, error) {
	var payload []byte
	switch m := msg.(type) {
	case DoKeyGen:
		payload = append(payload, encodeUint32(uint32(len(m.DeviceToShareIndex)))...)
		for _, id := range sortedDeviceIDs(m.DeviceToShareIndex) {
			payload = append(payload, id[:]...)
			idx := m.DeviceToShareIndex[id]
			payload = append(payload, idx[:]...)
		}
		payload = append(payload, encodeUint16(uint16(m.Threshold))...)
		nameBytes, _ := m.KeyName.MarshalBinary()
		payload = append(payload, nameBytes...)
	case FinishKeyGen:
		b, _ := m.AggInput.MarshalBinary()
		payload = b
	case RequestSign:
		b, _ := m.Request.MarshalBinary()
		payload = b
	case RequestNonces:
	case DisplayBackup:
		payload = append(payload, m.KeyID[:]...)
	case CheckShareBackup:
	default:
		return nil, errors.New("wire: unknown CoordinatorToDeviceMessage variant")
	}
	return append([]byte{byte(msg.Kind())}, payload...), nil
}

func sortedDeviceIDs(m map[DeviceId]ShareIndex) []DeviceId {
	out := make([]DeviceId, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && bytesLess(out[j][:], out[j-1][:]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// DecodeCoordinatorToDeviceMessage parses the output of
// EncodeCoordinatorToDeviceMessage.
func DecodeCoordinatorToDeviceMessage(data []byte) (CoordinatorToDeviceMessage, error) {
	if len(data) < 1 {
		return nil, ErrShortBuffer
	}
	kind, payload := MessageKind(data[0]), data[1:]
	switch kind {
	case KindDoKeyGen:
		count, rest, err := decodeUint32(payload)
		if err != nil {
			return nil, err
		}
		m := DoKeyGen{DeviceToShareIndex: make(map[DeviceId]ShareIndex, count)}
		for i := uint32(0); i < count; i++ {
			idBytes, next, err := decodeFixedBytes(rest, 33)
			if err != nil {
				return nil, err
			}
			var id DeviceId
			copy(id[:], idBytes)
			idxBytes, next2, err := decodeFixedBytes(next, 32)
			if err != nil {
				return nil, err
			}
			var idx ShareIndex
			copy(idx[:], idxBytes)
			m.DeviceToShareIndex[id] = idx
			rest = next2
		}
		threshold, rest, err := decodeUint16(rest)
		if err != nil {
			return nil, err
		}
		m.Threshold = int(threshold)
		var name KeyName
		if err := name.UnmarshalBinary(rest); err != nil {
			return nil, err
		}
		m.KeyName = name
		return m, nil
	case KindFinishKeyGen:
		var agg KeygenAggInput
		if err := agg.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return FinishKeyGen{AggInput: agg}, nil
	case KindRequestSign:
		var req SignRequest
		if err := req.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return RequestSign{Request: req}, nil
	case KindRequestNonces:
		return RequestNonces{}, nil
	case KindDisplayBackup:
		idBytes, _, err := decodeFixedBytes(payload, 32)
		if err != nil {
			return nil, err
		}
		var keyID KeyId
		copy(keyID[:], idBytes)
		return DisplayBackup{KeyID: keyID}, nil
	case KindCheckShareBackup:
		return CheckShareBackup{}, nil
	default:
		return nil, errors.New("wire: unknown CoordinatorToDeviceMessage kind")
	}
}

// ---- DeviceToCoordinatorMessage ----

type DeviceToCoordinatorMessage interface {
	Kind() MessageKind
	isDeviceToCoordinatorMessage()
}

var (
	KindNonceResponse         = registerKindName(10, "NonceResponse")
	KindKeyGenResponse        = registerKindName(11, "KeyGenResponse")
	KindKeyGenAck             = registerKindName(12, "KeyGenAck")
	KindSignatureShare        = registerKindName(13, "SignatureShare")
	KindDisplayBackupConfirmed = registerKindName(14, "DisplayBackupConfirmed")
	KindCheckShareBackupReply = registerKindName(15, "CheckShareBackup")
)

type NonceResponse struct{ Nonces DeviceNonces }

func (NonceResponse) Kind() MessageKind             { return KindNonceResponse }
func (NonceResponse) isDeviceToCoordinatorMessage() {}

type KeyGenResponseMsg struct{ Response KeygenResponse }

func (KeyGenResponseMsg) Kind() MessageKind             { return KindKeyGenResponse }
func (KeyGenResponseMsg) isDeviceToCoordinatorMessage() {}

type KeyGenAck struct{ SessionHash SessionHash }

func (KeyGenAck) Kind() MessageKind             { return KindKeyGenAck }
func (KeyGenAck) isDeviceToCoordinatorMessage() {}

type SignatureShareMsg struct {
	Shares    map[ShareIndex]SignatureShare
	NewNonces DeviceNonces
}

func (SignatureShareMsg) Kind() MessageKind             { return KindSignatureShare }
func (SignatureShareMsg) isDeviceToCoordinatorMessage() {}

type DisplayBackupConfirmedMsg struct{}

func (DisplayBackupConfirmedMsg) Kind() MessageKind             { return KindDisplayBackupConfirmed }
func (DisplayBackupConfirmedMsg) isDeviceToCoordinatorMessage() {}

type CheckShareBackupReply struct {
	ShareIndex  ShareIndex
	ShareImage  GroupPoint
}

func (CheckShareBackupReply) Kind() MessageKind             { return KindCheckShareBackupReply }
func (CheckShareBackupReply) isDeviceToCoordinatorMessage() {}

func EncodeDeviceToCoordinatorMessage(msg DeviceToCoordinatorMessage) ([]byte, error) {
	var payload []byte
	switch m := msg.(type) {
	case NonceResponse:
		b, _ := m.Nonces.MarshalBinary()
		payload = b
	case KeyGenResponseMsg:
		b, _ := m.Response.MarshalBinary()
		payload = b
	case KeyGenAck:
		payload = append(payload, m.SessionHash[:]...)
	case SignatureShareMsg:
		indices := make([]ShareIndex, 0, len(m.Shares))
		for idx := range m.Shares {
			indices = append(indices, idx)
		}
		for i := 1; i < len(indices); i++ {
			for j := i; j > 0 && lessShareIndex(indices[j], indices[j-1]); j-- {
				indices[j], indices[j-1] = indices[j-1], indices[j]
			}
		}
		payload = append(payload, encodeUint32(uint32(len(indices)))...)
		for _, idx := range indices {
			payload = append(payload, idx[:]...)
			share := m.Shares[idx]
			payload = append(payload, share[:]...)
		}
		nonceBytes, _ := m.NewNonces.MarshalBinary()
		payload = append(payload, nonceBytes...)
	case DisplayBackupConfirmedMsg:
	case CheckShareBackupReply:
		payload = append(payload, m.ShareIndex[:]...)
		payload = append(payload, encodeBytesLP(m.ShareImage)...)
	default:
		return nil, errors.New("wire: unknown DeviceToCoordinatorMessage variant")
	}
	return append([]byte{byte(msg.Kind())}, payload...), nil
}

func DecodeDeviceToCoordinatorMessage(data []byte) (DeviceToCoordinatorMessage, error) {
	if len(data) < 1 {
		return nil, ErrShortBuffer
	}
	kind, payload := MessageKind(data[0]), data[1:]
	switch kind {
	case KindNonceResponse:
		var dn DeviceNonces
		if err := dn.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return NonceResponse{Nonces: dn}, nil
	case KindKeyGenResponse:
		var r KeygenResponse
		if err := r.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return KeyGenResponseMsg{Response: r}, nil
	case KindKeyGenAck:
		b, _, err := decodeFixedBytes(payload, 32)
		if err != nil {
			return nil, err
		}
		var sh SessionHash
		copy(sh[:], b)
		return KeyGenAck{SessionHash: sh}, nil
	case KindSignatureShare:
		count, rest, err := decodeUint32(payload)
		if err != nil {
			return nil, err
		}
		shares := make(map[ShareIndex]SignatureShare, count)
		for i := uint32(0); i < count; i++ {
			idxBytes, next, err := decodeFixedBytes(rest, 32)
			if err != nil {
				return nil, err
			}
			var idx ShareIndex
			copy(idx[:], idxBytes)
			shareBytes, next2, err := decodeFixedBytes(next, 32)
			if err != nil {
				return nil, err
			}
			var share SignatureShare
			copy(share[:], shareBytes)
			shares[idx] = share
			rest = next2
		}
		var nn DeviceNonces
		if err := nn.UnmarshalBinary(rest); err != nil {
			return nil, err
		}
		return SignatureShareMsg{Shares: shares, NewNonces: nn}, nil
	case KindDisplayBackupConfirmed:
		return DisplayBackupConfirmedMsg{}, nil
	case KindCheckShareBackupReply:
		idxBytes, rest, err := decodeFixedBytes(payload, 32)
		if err != nil {
			return nil, err
		}
		var idx ShareIndex
		copy(idx[:], idxBytes)
		image, _, err := decodeBytesLP(rest)
		if err != nil {
			return nil, err
		}
		return CheckShareBackupReply{ShareIndex: idx, ShareImage: append([]byte(nil), image...)}, nil
	default:
		return nil, errors.New("wire: unknown DeviceToCoordinatorMessage kind")
	}
}

// ---- User-facing and storage messages ----

// TaskKind names the category of a user-visible task, for Canceled
// notifications.
type TaskKind byte

const (
	TaskKeyGen TaskKind = iota
	TaskSign
	TaskDisplayBackup
	TaskLoadBackup
)

func (k TaskKind) String() string {
	switch k {
	case TaskKeyGen:
		return "KeyGen"
	case TaskSign:
		return "Sign"
	case TaskDisplayBackup:
		return "DisplayBackup"
	case TaskLoadBackup:
		return "LoadBackup"
	default:
		return "Unknown"
	}
}

// CoordinatorToUserKeyGenMessage reports keygen progress to whatever is
// driving the coordinator (a CLI, a UI).
type CoordinatorToUserKeyGenMessage interface {
	isCoordinatorToUserKeyGenMessage()
}

type ReceivedShares struct{ From DeviceId }
type CheckKeyGen struct{ SessionHash SessionHash }
type KeyGenAckReport struct {
	From            DeviceId
	AllAcksReceived bool
}

func (ReceivedShares) isCoordinatorToUserKeyGenMessage()  {}
func (CheckKeyGen) isCoordinatorToUserKeyGenMessage()     {}
func (KeyGenAckReport) isCoordinatorToUserKeyGenMessage() {}

// CoordinatorToUserSigningMessage reports signing progress.
type CoordinatorToUserSigningMessage interface {
	isCoordinatorToUserSigningMessage()
}

type GotShare struct{ From DeviceId }
type Signed struct{ Signatures []EncodedSignature }

func (GotShare) isCoordinatorToUserSigningMessage() {}
func (Signed) isCoordinatorToUserSigningMessage()   {}

// CoordinatorToUserMessage is the tagged union of progress reports the
// coordinator surfaces to the user-facing layer.
type CoordinatorToUserMessage interface {
	isCoordinatorToUserMessage()
}

type CoordinatorKeyGenReport struct{ Message CoordinatorToUserKeyGenMessage }
type CoordinatorSigningReport struct{ Message CoordinatorToUserSigningMessage }
type CoordinatorDisplayBackupConfirmed struct{ DeviceID DeviceId }
type CoordinatorEnteredBackup struct {
	DeviceID DeviceId
	Valid    bool
}

func (CoordinatorKeyGenReport) isCoordinatorToUserMessage()          {}
func (CoordinatorSigningReport) isCoordinatorToUserMessage()         {}
func (CoordinatorDisplayBackupConfirmed) isCoordinatorToUserMessage() {}
func (CoordinatorEnteredBackup) isCoordinatorToUserMessage()         {}

// DeviceToUserMessage is the tagged union of prompts/reports a device
// surfaces on its own screen.
type DeviceToUserMessage interface {
	isDeviceToUserMessage()
}

type DeviceCheckKeyGen struct {
	KeyID       KeyId
	SessionHash SessionHash
	KeyName     KeyName
}
type SignatureRequest struct {
	SignTask CheckedSignTask
	KeyID    KeyId
}
type Canceled struct{ Task TaskKind }
type DisplayBackupRequest struct{ KeyID KeyId }
type DisplayBackupMsg struct {
	KeyID  KeyId
	Backup string
}
type EnterBackup struct{}
type EnteredBackupMsg struct {
	ShareIndex  ShareIndex
	SecretValue GroupScalar
	Fingerprint byte
}

func (DeviceCheckKeyGen) isDeviceToUserMessage()     {}
func (SignatureRequest) isDeviceToUserMessage()      {}
func (Canceled) isDeviceToUserMessage()              {}
func (DisplayBackupRequest) isDeviceToUserMessage()  {}
func (DisplayBackupMsg) isDeviceToUserMessage()      {}
func (EnterBackup) isDeviceToUserMessage()           {}
func (EnteredBackupMsg) isDeviceToUserMessage()      {}

// DeviceToStorageMessage is the tagged union of device-local persistence
// commands, consumed by the device's own flash-backed storage layer.
type DeviceToStorageMessage interface {
	isDeviceToStorageMessage()
}

type SaveKey struct{ Share PairedSecretShare }
type ExpendNonce struct{ NonceCounter uint32 }

func (SaveKey) isDeviceToStorageMessage()     {}
func (ExpendNonce) isDeviceToStorageMessage() {}

// DeviceSend is one item a device's message-handling step emits, addressed
// to one recipient category (user, coordinator or storage); a single step
// can return several, of different categories.
type DeviceSend interface {
	isDeviceSend()
}

type DeviceSendToUser struct{ Message DeviceToUserMessage }
type DeviceSendToCoordinator struct{ Message DeviceToCoordinatorMessage }
type DeviceSendToStorage struct{ Message DeviceToStorageMessage }

func (DeviceSendToUser) isDeviceSend()        {}
func (DeviceSendToCoordinator) isDeviceSend() {}
func (DeviceSendToStorage) isDeviceSend()     {}

// CoordinatorSend is everything a coordinator step can emit in one pass.
type CoordinatorSend interface {
	isCoordinatorSend()
}

type CoordinatorSendToDevice struct {
	Message      CoordinatorToDeviceMessage
	Destinations []DeviceId
}
type CoordinatorSendToUser struct{ Message CoordinatorToUserMessage }

// SigningSessionState is the durable record of one in-progress signing
// session: which signers were asked to participate, the exact nonce
// sub-segment reserved for each (via Request.Nonces), and whichever
// signature shares have arrived so far. The coordinator stages this before
// RequestSign leaves the host, so a crash between request and finalize
// still leaves the reserved nonce range excluded from future allocation —
// the nonce non-reuse invariant doesn't depend on the session ever
// finishing.
type SigningSessionState struct {
	SignSessionID SignSessionId
	KeyID         KeyId
	Request       SignRequest
	StreamFor     map[DeviceId]NonceStreamId
	Shares        map[ShareIndex]SignatureShare
}

// CoordinatorSendSigningSessionStore asks the host's persistence layer to
// durably record (or update) a signing session's state, the coordinator
// analogue of DeviceSendToStorage.
type CoordinatorSendSigningSessionStore struct{ Session SigningSessionState }

func (CoordinatorSendToDevice) isCoordinatorSend()           {}
func (CoordinatorSendToUser) isCoordinatorSend()             {}
func (CoordinatorSendSigningSessionStore) isCoordinatorSend() {}

// ---- Link-layer control messages (daisy-chain discovery/registration) ----

// LinkControlMessage is the tagged union of out-of-band control frames
// exchanged during device discovery, distinct from the protocol messages
// above since they're handled by the link layer before a device is even
// routable.
type LinkControlMessage interface {
	Kind() MessageKind
	isLinkControlMessage()
}

var (
	KindAnnounceUpstream = registerKindName(20, "AnnounceUpstream")
	KindAnnounceAck      = registerKindName(21, "AnnounceAck")
	KindRequestName      = registerKindName(22, "RequestName")
	KindNameResponse     = registerKindName(23, "NameResponse")
)

type AnnounceUpstream struct {
	DeviceID       DeviceId
	FirmwareDigest [32]byte
}

func (AnnounceUpstream) Kind() MessageKind       { return KindAnnounceUpstream }
func (AnnounceUpstream) isLinkControlMessage()   {}

type AnnounceAck struct{ Name DeviceName }

func (AnnounceAck) Kind() MessageKind     { return KindAnnounceAck }
func (AnnounceAck) isLinkControlMessage() {}

type RequestName struct{}

func (RequestName) Kind() MessageKind     { return KindRequestName }
func (RequestName) isLinkControlMessage() {}

type NameResponse struct{ Name DeviceName }

func (NameResponse) Kind() MessageKind     { return KindNameResponse }
func (NameResponse) isLinkControlMessage() {}

func EncodeLinkControlMessage(msg LinkControlMessage) ([]byte, error) {
	var payload []byte
	switch m := msg.(type) {
	case AnnounceUpstream:
		payload = append(payload, m.DeviceID[:]...)
		payload = append(payload, m.FirmwareDigest[:]...)
	case AnnounceAck:
		b, _ := m.Name.MarshalBinary()
		payload = b
	case RequestName:
	case NameResponse:
		b, _ := m.Name.MarshalBinary()
		payload = b
	default:
		return nil, errors.New("wire: unknown LinkControlMessage variant")
	}
	return append([]byte{byte(msg.Kind())}, payload...), nil
}

func DecodeLinkControlMessage(data []byte) (LinkControlMessage, error) {
	if len(data) < 1 {
		return nil, ErrShortBuffer
	}
	kind, payload := MessageKind(data[0]), data[1:]
	switch kind {
	case KindAnnounceUpstream:
		idBytes, rest, err := decodeFixedBytes(payload, 33)
		if err != nil {
			return nil, err
		}
		var id DeviceId
		copy(id[:], idBytes)
		digestBytes, _, err := decodeFixedBytes(rest, 32)
		if err != nil {
			return nil, err
		}
		var digest [32]byte
		copy(digest[:], digestBytes)
		return AnnounceUpstream{DeviceID: id, FirmwareDigest: digest}, nil
	case KindAnnounceAck:
		var name DeviceName
		if err := name.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return AnnounceAck{Name: name}, nil
	case KindRequestName:
		return RequestName{}, nil
	case KindNameResponse:
		var name DeviceName
		if err := name.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		return NameResponse{Name: name}, nil
	default:
		return nil, errors.New("wire: unknown LinkControlMessage kind")
	}
}
