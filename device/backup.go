package device

import (
	"crypto/sha256"

	"github.com/frostsnap/core/backup"
	"github.com/frostsnap/core/wire"
	"github.com/frostsnap/core/workflow"
)

// keyFingerprint derives the domain-separation byte backup.ShareBackup
// carries for a given key: every device holding a share of the same key
// computes the same value from its (public) group key, so backups from two
// different keys never collide purely by appearance.
func keyFingerprint(groupKey []byte) byte {
	sum := sha256.Sum256(groupKey)
	return sum[0]
}

func (d *Device) handleDisplayBackup(msg wire.DisplayBackup) ([]wire.DeviceSend, error) {
	if _, ok := d.Keys[msg.KeyID]; !ok {
		return nil, nil
	}
	keyID := msg.KeyID
	d.lastBackupKey = &keyID
	d.Protocol = &DisplayBackupRunning{KeyID: msg.KeyID, KeyName: d.keyName(msg.KeyID)}
	d.Workflow = workflow.NewUserPrompt(workflow.DisplayBackupRequest{KeyName: d.keyName(msg.KeyID)})
	return []wire.DeviceSend{
		wire.DeviceSendToUser{Message: wire.DisplayBackupRequest{KeyID: msg.KeyID}},
	}, nil
}

// confirmDisplayBackup is called on the user's hold-to-confirm; it renders
// the held share as its 25-word transcription and shows it.
func (d *Device) confirmDisplayBackup() ([]wire.DeviceSend, error) {
	running, ok := d.Protocol.(*DisplayBackupRunning)
	if !ok {
		return nil, ErrUnknownKey
	}
	share, ok := d.Keys[running.KeyID]
	if !ok {
		return nil, ErrUnknownKey
	}
	index, err := shareIndexToInt(share.ShareIndex)
	if err != nil {
		return nil, err
	}
	secret, err := d.Group.NewScalar().SetBytes(share.Secret[:])
	if err != nil {
		return nil, err
	}
	sb := backup.ShareBackup{
		G:           d.Group,
		Index:       index,
		Value:       secret,
		Fingerprint: keyFingerprint(share.GroupKey),
	}

	d.Protocol = Idle{}
	d.Workflow = workflow.DisplayBackup{KeyName: d.keyName(running.KeyID), Backup: sb}

	return []wire.DeviceSend{
		wire.DeviceSendToUser{Message: wire.DisplayBackupMsg{KeyID: running.KeyID, Backup: sb.String()}},
		wire.DeviceSendToCoordinator{Message: wire.DisplayBackupConfirmedMsg{}},
	}, nil
}

func (d *Device) handleCheckShareBackup() ([]wire.DeviceSend, error) {
	if d.lastBackupKey == nil {
		return nil, nil
	}
	share, ok := d.Keys[*d.lastBackupKey]
	if !ok {
		return nil, nil
	}
	return []wire.DeviceSend{
		wire.DeviceSendToCoordinator{Message: wire.CheckShareBackupReply{
			ShareIndex: share.ShareIndex,
			ShareImage: share.PublicKey,
		}},
	}, nil
}

// BeginLoadBackup starts the local (not coordinator-initiated) restore
// flow: the user chose to enter a backup's words from this device's own
// keypad.
func (d *Device) BeginLoadBackup() []wire.DeviceSend {
	d.Workflow = workflow.EnteringBackupState{Stage: workflow.EnteringBackupInit{}}
	return []wire.DeviceSend{
		wire.DeviceSendToUser{Message: wire.EnterBackup{}},
	}
}

// HandleEnteredShareBackup processes the UiEvent reported once the user
// finishes keying in a backup's words: it reports what was parsed and asks
// for confirmation before holding onto it.
func (d *Device) HandleEnteredShareBackup(sb backup.ShareBackup) []wire.DeviceSend {
	var shareIndex wire.ShareIndex
	idxBytes := scalarFromInt(d.Group, sb.Index).Bytes()
	copy(shareIndex[32-len(idxBytes):], idxBytes)

	d.Protocol = &LoadBackupRunning{Share: wire.PairedSecretShare{
		ShareIndex: shareIndex,
		Secret:     wire.GroupScalar(toFixed32(sb.Value.Bytes())),
	}}
	d.Workflow = workflow.NewUserPrompt(workflow.ConfirmLoadBackup{ShareBackup: sb})

	return []wire.DeviceSend{
		wire.DeviceSendToUser{Message: wire.EnteredBackupMsg{
			ShareIndex:  shareIndex,
			SecretValue: wire.GroupScalar(toFixed32(sb.Value.Bytes())),
			Fingerprint: sb.Fingerprint,
		}},
	}
}

// confirmLoadBackup finishes the local verification flow. Adopting the
// recovered share into an access structure (assigning it a KeyId,
// threshold and group key) is a coordinator-driven pairing step beyond
// this confirmation; until that happens the share stays held only in
// Protocol state, not in Keys.
func (d *Device) confirmLoadBackup() []wire.DeviceSend {
	d.Protocol = Idle{}
	d.Workflow = workflow.Cancel(d.Workflow)
	return nil
}

func (d *Device) keyName(id wire.KeyId) wire.KeyName {
	return d.keyNames[id]
}
