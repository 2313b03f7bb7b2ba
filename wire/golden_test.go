package wire

import (
	"bytes"
	"testing"
)

func mkDeviceID(b byte) DeviceId {
	var id DeviceId
	id[0] = 0x02 // a plausible compressed-point prefix
	for i := 1; i < len(id); i++ {
		id[i] = b
	}
	return id
}

func mkPoint(b byte) GroupPoint {
	p := make(GroupPoint, 33)
	p[0] = 0x03
	for i := 1; i < len(p); i++ {
		p[i] = b
	}
	return p
}

func TestCoordinatorToDeviceDoKeyGenRoundtrip(t *testing.T) {
	name, err := NewKeyName("savings")
	if err != nil {
		t.Fatal(err)
	}
	msg := DoKeyGen{
		DeviceToShareIndex: map[DeviceId]ShareIndex{
			mkDeviceID(0x01): ShareIndexFromUint(1),
			mkDeviceID(0x02): ShareIndexFromUint(2),
		},
		Threshold: 2,
		KeyName:   name,
	}

	encoded, err := EncodeCoordinatorToDeviceMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded[0] != byte(KindDoKeyGen) {
		t.Fatalf("wrong kind byte: %d", encoded[0])
	}

	decoded, err := DecodeCoordinatorToDeviceMessage(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(DoKeyGen)
	if !ok {
		t.Fatalf("wrong type decoded: %T", decoded)
	}
	if got.Threshold != 2 || got.KeyName.String() != "savings" {
		t.Errorf("threshold/name mismatch: %+v", got)
	}
	if len(got.DeviceToShareIndex) != 2 {
		t.Errorf("expected 2 devices, got %d", len(got.DeviceToShareIndex))
	}
}

func TestCoordinatorToDeviceRequestNoncesRoundtrip(t *testing.T) {
	encoded, err := EncodeCoordinatorToDeviceMessage(RequestNonces{})
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) != 1 || encoded[0] != byte(KindRequestNonces) {
		t.Fatalf("expected a single kind byte, got %x", encoded)
	}
	decoded, err := DecodeCoordinatorToDeviceMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded.(RequestNonces); !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
}

func TestCoordinatorToDeviceRequestSignRoundtrip(t *testing.T) {
	idxA := ShareIndexFromUint(1)
	idxB := ShareIndexFromUint(2)
	req := SignRequest{
		Nonces: map[ShareIndex]SignRequestNonces{
			idxA: {
				Nonces:          []Binonce{{Hiding: mkPoint(0x11), Binding: mkPoint(0x12)}},
				Start:           0,
				NoncesRemaining: 99,
			},
			idxB: {
				Nonces:          []Binonce{{Hiding: mkPoint(0x21), Binding: mkPoint(0x22)}},
				Start:           5,
				NoncesRemaining: 50,
			},
		},
		SignTask: SignTask{Kind: SignTaskPlainMessage, Data: []byte("pay alice 1 BTC")},
		KeyID:    KeyId{0xaa},
	}

	encoded, err := EncodeCoordinatorToDeviceMessage(RequestSign{Request: req})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeCoordinatorToDeviceMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(RequestSign)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if len(got.Request.Nonces) != 2 {
		t.Fatalf("expected 2 signers, got %d", len(got.Request.Nonces))
	}
	if !bytes.Equal(got.Request.SignTask.Data, req.SignTask.Data) {
		t.Errorf("sign task data mismatch")
	}
	if got.Request.KeyID != req.KeyID {
		t.Errorf("key id mismatch")
	}
	if got.Request.SessionID() != req.SessionID() {
		t.Errorf("session id should be stable across roundtrip")
	}
	parties := got.Request.Parties()
	if len(parties) != 2 {
		t.Errorf("expected 2 parties, got %d", len(parties))
	}
	if !got.Request.ContainsSigner(idxA) {
		t.Errorf("expected idxA to be a signer")
	}
}

func TestDeviceToCoordinatorSignatureShareRoundtrip(t *testing.T) {
	idx := ShareIndexFromUint(1)
	var share SignatureShare
	share[31] = 0x42

	msg := SignatureShareMsg{
		Shares: map[ShareIndex]SignatureShare{idx: share},
		NewNonces: DeviceNonces{
			StartIndex: 10,
			Nonces:     []Binonce{{Hiding: mkPoint(0x01), Binding: mkPoint(0x02)}},
		},
	}
	encoded, err := EncodeDeviceToCoordinatorMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeDeviceToCoordinatorMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(SignatureShareMsg)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if got.Shares[idx] != share {
		t.Errorf("share mismatch: got %x want %x", got.Shares[idx], share)
	}
	if got.NewNonces.ReplenishStart() != 11 {
		t.Errorf("replenish start: got %d want 11", got.NewNonces.ReplenishStart())
	}
}

func TestDeviceToCoordinatorKeyGenAckRoundtrip(t *testing.T) {
	msg := KeyGenAck{SessionHash: SessionHash{0xde, 0xad, 0xbe, 0xef}}
	encoded, err := EncodeDeviceToCoordinatorMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeDeviceToCoordinatorMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(KeyGenAck)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if got.SessionHash != msg.SessionHash {
		t.Errorf("session hash mismatch")
	}
}

func TestLinkControlAnnounceUpstreamRoundtrip(t *testing.T) {
	msg := AnnounceUpstream{DeviceID: mkDeviceID(0x33), FirmwareDigest: [32]byte{1, 2, 3}}
	encoded, err := EncodeLinkControlMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeLinkControlMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(AnnounceUpstream)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if got.DeviceID != msg.DeviceID || got.FirmwareDigest != msg.FirmwareDigest {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestLinkControlAnnounceAckRoundtrip(t *testing.T) {
	name, _ := NewDeviceName("wallet-1")
	encoded, err := EncodeLinkControlMessage(AnnounceAck{Name: name})
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeLinkControlMessage(encoded)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(AnnounceAck)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if got.Name.String() != "wallet-1" {
		t.Errorf("name mismatch: %q", got.Name.String())
	}
}

func TestFrameWithEncodedMessagePayloadRoundtrip(t *testing.T) {
	encoded, err := EncodeCoordinatorToDeviceMessage(DisplayBackup{KeyID: KeyId{0x01, 0x02}})
	if err != nil {
		t.Fatal(err)
	}
	f := Frame{Magic: MagicRecvUpstream, ConversationID: 0xabcd, Payload: encoded}
	raw := f.Encode()

	d := NewDecoder(DirectionUpstream)
	d.Feed(raw)
	got, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	decoded, err := DecodeCoordinatorToDeviceMessage(got.Payload)
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	db, ok := decoded.(DisplayBackup)
	if !ok {
		t.Fatalf("wrong type: %T", decoded)
	}
	if db.KeyID != (KeyId{0x01, 0x02}) {
		t.Errorf("key id mismatch: %x", db.KeyID)
	}
}
