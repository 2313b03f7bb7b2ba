package coordinator_test

import (
	"testing"

	"github.com/frostsnap/core/coordinator"
	"github.com/frostsnap/core/device"
	"github.com/frostsnap/core/persist"
	"github.com/frostsnap/core/secp"
	"github.com/frostsnap/core/wire"
)

func testDeviceID(n byte) wire.DeviceId {
	var id wire.DeviceId
	id[0] = n
	return id
}

func findCoordSend(sends []wire.CoordinatorSend) (msg wire.CoordinatorToDeviceMessage, dests []wire.DeviceId, ok bool) {
	for _, s := range sends {
		if toDev, ok := s.(wire.CoordinatorSendToDevice); ok {
			return toDev.Message, toDev.Destinations, true
		}
	}
	return nil, nil, false
}

func findDeviceSendToCoordinator(sends []wire.DeviceSend) (wire.DeviceToCoordinatorMessage, bool) {
	for _, s := range sends {
		if toCoord, ok := s.(wire.DeviceSendToCoordinator); ok {
			return toCoord.Message, true
		}
	}
	return nil, false
}

// runKeygen drives three devices and a fresh Coordinator through a full DKG
// round trip, the same shape runKeyGen exercises on the device side alone,
// but routed entirely through Coordinator's dispatch.
func runKeygen(t *testing.T) (*coordinator.Coordinator, []*device.Device, wire.KeyId) {
	t.Helper()
	g := &secp.Secp256k1{}
	log := persist.NewMemoryLog()
	c, err := coordinator.New(g, log)
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}

	ids := []wire.DeviceId{testDeviceID(1), testDeviceID(2), testDeviceID(3)}
	devs := make(map[wire.DeviceId]*device.Device, 3)
	for i, id := range ids {
		secret := make([]byte, 32)
		secret[0] = byte(i + 1)
		devs[id] = device.New(g, id, secret)
	}

	sends, err := c.BeginKeygen(ids, 2, wire.TruncateKeyName("vault"))
	if err != nil {
		t.Fatalf("BeginKeygen: %v", err)
	}
	msg, dests, ok := findCoordSend(sends)
	if !ok {
		t.Fatal("expected a CoordinatorSendToDevice after BeginKeygen")
	}

	for _, id := range dests {
		devSends, err := devs[id].HandleCoordinatorMessage(msg)
		if err != nil {
			t.Fatalf("device %x DoKeyGen: %v", id, err)
		}
		resp, ok := findDeviceSendToCoordinator(devSends)
		if !ok {
			t.Fatalf("device %x: expected a DeviceSendToCoordinator", id)
		}
		out, err := c.ProcessDeviceMessage(id, resp)
		if err != nil {
			t.Fatalf("coordinator processing KeyGenResponseMsg from %x: %v", id, err)
		}
		sends = out
	}

	finishMsgs := make(map[wire.DeviceId]wire.CoordinatorToDeviceMessage)
	for _, s := range sends {
		if toDev, ok := s.(wire.CoordinatorSendToDevice); ok {
			for _, d := range toDev.Destinations {
				finishMsgs[d] = toDev.Message
			}
		}
	}
	if len(finishMsgs) != len(ids) {
		t.Fatalf("expected a FinishKeyGen for every device, got %d", len(finishMsgs))
	}

	for _, id := range ids {
		devSends, err := devs[id].HandleCoordinatorMessage(finishMsgs[id])
		if err != nil {
			t.Fatalf("device %x FinishKeyGen: %v", id, err)
		}
		_ = devSends
		confirmSends, err := devs[id].ConfirmPrompt()
		if err != nil {
			t.Fatalf("device %x confirm keygen: %v", id, err)
		}
		ack, ok := findDeviceSendToCoordinator(confirmSends)
		if !ok {
			t.Fatalf("device %x: expected a KeyGenAck", id)
		}
		if _, err := c.ProcessDeviceMessage(id, ack); err != nil {
			t.Fatalf("coordinator processing KeyGenAck from %x: %v", id, err)
		}
	}

	if c.ActiveCompletion() != coordinator.CompletedOK {
		t.Fatalf("expected keygen to complete, got %v", c.ActiveCompletion())
	}
	key := c.LastKeyGenerated()
	if key == nil {
		t.Fatal("expected a finalized key")
	}
	return c, []*device.Device{devs[ids[0]], devs[ids[1]], devs[ids[2]]}, key.KeyID
}

func TestCoordinatorKeygenProducesConsistentKey(t *testing.T) {
	c, devs, keyID := runKeygen(t)
	key := c.Keys()[keyID]
	if key == nil {
		t.Fatal("coordinator has no record of the finalized key")
	}
	for _, d := range devs {
		share, ok := d.Keys[keyID]
		if !ok {
			t.Fatalf("device %x missing its share", d.ID)
		}
		if string(share.GroupKey) != string(key.GroupKey) {
			t.Fatalf("device %x group key disagrees with coordinator's", d.ID)
		}
		if key.DeviceToPublicKey[d.ID] == nil {
			t.Fatalf("coordinator has no recorded public key share for device %x", d.ID)
		}
	}
}

func TestCoordinatorSigningProducesVerifiedSignature(t *testing.T) {
	c, devs, keyID := runKeygen(t)
	signers := devs[:2]

	for _, d := range signers {
		devSends, err := d.HandleCoordinatorMessage(wire.RequestNonces{})
		if err != nil {
			t.Fatalf("device %x RequestNonces: %v", d.ID, err)
		}
		nr, ok := findDeviceSendToCoordinator(devSends)
		if !ok {
			t.Fatalf("device %x: expected a NonceResponse", d.ID)
		}
		resp, ok := nr.(wire.NonceResponse)
		if !ok {
			t.Fatalf("device %x: expected wire.NonceResponse, got %T", d.ID, nr)
		}
		streamID := d.Streams[keyID].ID
		if err := c.RecordNonces(d.ID, streamID, resp.Nonces); err != nil {
			t.Fatalf("device %x RecordNonces: %v", d.ID, err)
		}
	}

	signerIDs := make([]wire.DeviceId, len(signers))
	for i, d := range signers {
		signerIDs[i] = d.ID
	}
	task := wire.SignTask{Kind: wire.SignTaskPlainMessage, Data: []byte("send 1 btc")}

	sends, err := c.StartSign(task, keyID, signerIDs)
	if err != nil {
		t.Fatalf("StartSign: %v", err)
	}
	msg, dests, ok := findCoordSend(sends)
	if !ok {
		t.Fatal("expected a CoordinatorSendToDevice after StartSign")
	}

	var out []wire.CoordinatorSend
	for _, id := range dests {
		var d *device.Device
		for _, s := range signers {
			if s.ID == id {
				d = s
			}
		}
		devSends, err := d.HandleCoordinatorMessage(msg)
		if err != nil {
			t.Fatalf("device %x RequestSign: %v", id, err)
		}
		_ = devSends
		confirmSends, err := d.ConfirmPrompt()
		if err != nil {
			t.Fatalf("device %x confirm sign: %v", id, err)
		}
		share, ok := findDeviceSendToCoordinator(confirmSends)
		if !ok {
			t.Fatalf("device %x: expected a SignatureShareMsg", id)
		}
		out, err = c.ProcessDeviceMessage(id, share)
		if err != nil {
			t.Fatalf("coordinator processing SignatureShareMsg from %x: %v", id, err)
		}
	}

	if c.ActiveCompletion() != coordinator.CompletedOK {
		t.Fatalf("expected sign session to complete, got %v", c.ActiveCompletion())
	}
	sig := c.LastSignature()
	if sig == nil {
		t.Fatal("expected a completed signature")
	}

	var sawSigned bool
	for _, s := range out {
		if toUser, ok := s.(wire.CoordinatorSendToUser); ok {
			if report, ok := toUser.Message.(wire.CoordinatorSigningReport); ok {
				if _, ok := report.Message.(wire.Signed); ok {
					sawSigned = true
				}
			}
		}
	}
	if !sawSigned {
		t.Fatal("expected a CoordinatorSigningReport carrying Signed")
	}
}

func TestStartSignFailsForUnknownKey(t *testing.T) {
	_, devs, keyID := runKeygen(t)
	signerIDs := []wire.DeviceId{devs[0].ID, devs[1].ID}
	g := &secp.Secp256k1{}
	log := persist.NewMemoryLog()
	c, err := coordinator.New(g, log)
	if err != nil {
		t.Fatal(err)
	}
	task := wire.SignTask{Kind: wire.SignTaskPlainMessage, Data: []byte("x")}
	if _, err := c.StartSign(task, keyID, signerIDs); err == nil {
		t.Fatal("expected StartSign to fail against a coordinator with no record of the key")
	}
}
