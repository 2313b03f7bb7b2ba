package device

import (
	"testing"

	"github.com/frostsnap/core/frost"
	"github.com/frostsnap/core/group"
	"github.com/frostsnap/core/secp"
	"github.com/frostsnap/core/wire"
	"github.com/frostsnap/core/workflow"
)

func testDeviceID(n byte) wire.DeviceId {
	var id wire.DeviceId
	id[0] = n
	return id
}

func mustUserPromptSent(t *testing.T, sends []wire.DeviceSend) {
	t.Helper()
	for _, s := range sends {
		if _, ok := s.(wire.DeviceSendToUser); ok {
			return
		}
	}
	t.Fatalf("expected a DeviceSendToUser among %+v", sends)
}

// runKeyGen drives three devices through DKG end to end and returns them
// with their shares committed.
func runKeyGen(t *testing.T) (devices []*Device, keyID wire.KeyId) {
	t.Helper()
	g := &secp.Secp256k1{}
	ids := []wire.DeviceId{testDeviceID(1), testDeviceID(2), testDeviceID(3)}
	shareIdx := map[wire.DeviceId]wire.ShareIndex{
		ids[0]: wire.ShareIndexFromUint(1),
		ids[1]: wire.ShareIndexFromUint(2),
		ids[2]: wire.ShareIndexFromUint(3),
	}
	keyName := wire.TruncateKeyName("vault")

	devs := make([]*Device, 3)
	for i, id := range ids {
		secret := make([]byte, 32)
		secret[0] = byte(i + 1)
		devs[i] = New(g, id, secret)
	}

	responses := make([]*wire.KeygenResponse, 3)
	for i, d := range devs {
		sends, err := d.HandleCoordinatorMessage(wire.DoKeyGen{
			DeviceToShareIndex: shareIdx,
			Threshold:          2,
			KeyName:            keyName,
		})
		if err != nil {
			t.Fatalf("device %d DoKeyGen: %v", i, err)
		}
		if len(sends) != 1 {
			t.Fatalf("device %d: expected 1 send, got %d", i, len(sends))
		}
		toCoord, ok := sends[0].(wire.DeviceSendToCoordinator)
		if !ok {
			t.Fatalf("device %d: expected DeviceSendToCoordinator", i)
		}
		resp, ok := toCoord.Message.(wire.KeyGenResponseMsg)
		if !ok {
			t.Fatalf("device %d: expected KeyGenResponseMsg", i)
		}
		responses[i] = &resp.Response
	}

	broadcasts := make([]*frost.Round1Data, 3)
	allSends := make([][]*frost.Round1PrivateData, 3)
	for i, r := range responses {
		b, sends, err := DecodeKeyGenResponse(g, r.Raw)
		if err != nil {
			t.Fatalf("decode response %d: %v", i, err)
		}
		broadcasts[i] = b
		allSends[i] = sends
	}

	for i, d := range devs {
		myID, err := shareIndexToInt(shareIdx[ids[i]])
		if err != nil {
			t.Fatal(err)
		}
		var myShares []*frost.Round1PrivateData
		for j := range devs {
			if j == i {
				continue
			}
			for _, s := range allSends[j] {
				if scalarEqualInt(s.ToID, myID) {
					myShares = append(myShares, s)
				}
			}
		}
		agg := wire.KeygenAggInput{Raw: EncodeKeyGenAggInput(broadcasts, myShares)}
		sends, err := d.HandleCoordinatorMessage(wire.FinishKeyGen{AggInput: agg})
		if err != nil {
			t.Fatalf("device %d FinishKeyGen: %v", i, err)
		}
		mustUserPromptSent(t, sends)

		if _, ok := d.Workflow.(workflow.UserPrompt); !ok {
			t.Fatalf("device %d: expected a UserPrompt after FinishKeyGen", i)
		}

		confirmSends, err := d.ConfirmPrompt()
		if err != nil {
			t.Fatalf("device %d confirm keygen: %v", i, err)
		}
		sawSave, sawAck := false, false
		for _, s := range confirmSends {
			switch s.(type) {
			case wire.DeviceSendToStorage:
				sawSave = true
			case wire.DeviceSendToCoordinator:
				sawAck = true
			}
		}
		if !sawSave || !sawAck {
			t.Fatalf("device %d: expected both a storage save and a coordinator ack, got %+v", i, confirmSends)
		}
	}

	firstKeyID := func() wire.KeyId {
		for id := range devs[0].Keys {
			return id
		}
		t.Fatal("device 0 has no keys after keygen")
		return wire.KeyId{}
	}()
	for i, d := range devs {
		if len(d.Keys) != 1 {
			t.Fatalf("device %d: expected exactly one key, got %d", i, len(d.Keys))
		}
		share := d.Keys[firstKeyID]
		if share.Threshold != 2 {
			t.Fatalf("device %d: threshold = %d, want 2", i, share.Threshold)
		}
	}
	return devs, firstKeyID
}

func scalarEqualInt(s group.Scalar, n int) bool {
	g := &secp.Secp256k1{}
	return scalarFromInt(g, n).Equal(s)
}

func TestKeyGenProducesConsistentGroupKey(t *testing.T) {
	devs, keyID := runKeyGen(t)
	groupKey := devs[0].Keys[keyID].GroupKey
	for i, d := range devs {
		got := d.Keys[keyID].GroupKey
		if string(got) != string(groupKey) {
			t.Fatalf("device %d computed a different group key", i)
		}
		if d.Keys[keyID].KeyID != keyID {
			t.Fatalf("device %d: key id mismatch", i)
		}
	}
}

func TestSigningProducesVerifiableSignature(t *testing.T) {
	devs, keyID := runKeyGen(t)
	g := &secp.Secp256k1{}
	signers := devs[:2]

	nonceBatches := make([]wire.DeviceNonces, len(signers))
	for i, d := range signers {
		sends, err := d.HandleCoordinatorMessage(wire.RequestNonces{})
		if err != nil {
			t.Fatalf("signer %d RequestNonces: %v", i, err)
		}
		for _, s := range sends {
			if toCoord, ok := s.(wire.DeviceSendToCoordinator); ok {
				if nr, ok := toCoord.Message.(wire.NonceResponse); ok {
					nonceBatches[i] = nr.Nonces
				}
			}
		}
		if len(nonceBatches[i].Nonces) == 0 {
			t.Fatalf("signer %d: no nonces published", i)
		}
	}

	task := wire.SignTask{Kind: wire.SignTaskPlainMessage, Data: []byte("send 1 btc")}
	nonces := make(map[wire.ShareIndex]wire.SignRequestNonces)
	for i, d := range signers {
		idx := d.Keys[keyID].ShareIndex
		nonces[idx] = wire.SignRequestNonces{
			Nonces:          nonceBatches[i].Nonces[:1],
			Start:           0,
			NoncesRemaining: uint64(len(nonceBatches[i].Nonces) - 1),
		}
	}
	req := wire.SignRequest{Nonces: nonces, SignTask: task, KeyID: keyID}

	var frostShares []*frost.SignatureShare
	for i, d := range signers {
		sends, err := d.HandleCoordinatorMessage(wire.RequestSign{Request: req})
		if err != nil {
			t.Fatalf("signer %d RequestSign: %v", i, err)
		}
		mustUserPromptSent(t, sends)

		confirmSends, err := d.ConfirmPrompt()
		if err != nil {
			t.Fatalf("signer %d confirm sign: %v", i, err)
		}
		var shareMsg *wire.SignatureShareMsg
		for _, s := range confirmSends {
			if toCoord, ok := s.(wire.DeviceSendToCoordinator); ok {
				if sm, ok := toCoord.Message.(wire.SignatureShareMsg); ok {
					shareMsg = &sm
				}
			}
		}
		if shareMsg == nil {
			t.Fatalf("signer %d: no signature share produced", i)
		}
		idx := d.Keys[keyID].ShareIndex
		zBytes := shareMsg.Shares[idx]
		id, err := shareIndexToInt(idx)
		if err != nil {
			t.Fatal(err)
		}
		z, err := g.NewScalar().SetBytes(zBytes[:])
		if err != nil {
			t.Fatal(err)
		}
		frostShares = append(frostShares, &frost.SignatureShare{ID: scalarFromInt(g, id), Z: z})
	}

	f, err := frost.New(g, 2, len(signers))
	if err != nil {
		t.Fatal(err)
	}
	commitments := make([]*frost.SigningCommitment, 0, len(signers))
	for _, idx := range req.Parties() {
		id, err := shareIndexToInt(idx)
		if err != nil {
			t.Fatal(err)
		}
		n := req.Nonces[idx]
		hidingPoint, err := g.NewPoint().SetBytes(n.Nonces[0].Hiding)
		if err != nil {
			t.Fatal(err)
		}
		bindingPoint, err := g.NewPoint().SetBytes(n.Nonces[0].Binding)
		if err != nil {
			t.Fatal(err)
		}
		commitments = append(commitments, &frost.SigningCommitment{
			ID:           scalarFromInt(g, id),
			HidingPoint:  hidingPoint,
			BindingPoint: bindingPoint,
		})
	}

	digest := task.Digest()
	sig, err := f.Aggregate(digest[:], commitments, frostShares)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	groupKeyBytes := signers[0].Keys[keyID].GroupKey
	groupKey, err := g.NewPoint().SetBytes(groupKeyBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Verify(digest[:], sig, groupKey) {
		t.Fatal("aggregated signature failed to verify")
	}
}

func TestCancelPromptReturnsToIdle(t *testing.T) {
	devs, keyID := runKeyGen(t)
	d := devs[0]
	sends, err := d.HandleCoordinatorMessage(wire.DisplayBackup{KeyID: keyID})
	if err != nil {
		t.Fatal(err)
	}
	mustUserPromptSent(t, sends)

	cancelSends := d.CancelPrompt()
	if len(cancelSends) != 1 {
		t.Fatalf("expected one Canceled message, got %d", len(cancelSends))
	}
	toUser, ok := cancelSends[0].(wire.DeviceSendToUser)
	if !ok {
		t.Fatal("expected DeviceSendToUser")
	}
	canceled, ok := toUser.Message.(wire.Canceled)
	if !ok {
		t.Fatalf("expected wire.Canceled, got %T", toUser.Message)
	}
	if canceled.Task != wire.TaskDisplayBackup {
		t.Errorf("canceled task = %v, want TaskDisplayBackup", canceled.Task)
	}
	if _, ok := d.Protocol.(Idle); !ok {
		t.Errorf("protocol state = %T, want Idle", d.Protocol)
	}
}

func TestDisplayBackupProducesWords(t *testing.T) {
	devs, keyID := runKeyGen(t)
	d := devs[0]
	if _, err := d.HandleCoordinatorMessage(wire.DisplayBackup{KeyID: keyID}); err != nil {
		t.Fatal(err)
	}
	sends, err := d.ConfirmPrompt()
	if err != nil {
		t.Fatal(err)
	}
	var msg *wire.DisplayBackupMsg
	for _, s := range sends {
		if toUser, ok := s.(wire.DeviceSendToUser); ok {
			if m, ok := toUser.Message.(wire.DisplayBackupMsg); ok {
				msg = &m
			}
		}
	}
	if msg == nil {
		t.Fatal("expected a DisplayBackupMsg")
	}
	if msg.Backup == "" {
		t.Error("expected a non-empty backup phrase")
	}
}

func TestOutOfStateMessageIgnored(t *testing.T) {
	g := &secp.Secp256k1{}
	d := New(g, testDeviceID(9), []byte("secret"))
	sends, err := d.HandleCoordinatorMessage(wire.RequestSign{Request: wire.SignRequest{KeyID: wire.KeyId{1}}})
	if err != nil {
		t.Fatalf("expected no error for a sign request on an unheld key, got %v", err)
	}
	if sends != nil {
		t.Errorf("expected no sends, got %+v", sends)
	}
}
