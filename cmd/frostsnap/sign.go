package main

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/frostsnap/core/coordinator"
	"github.com/frostsnap/core/device"
	"github.com/frostsnap/core/persist"
	"github.com/frostsnap/core/secp"
	"github.com/frostsnap/core/wire"
	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	var (
		keyPath   string
		signerCSV string
		message   string
	)
	cmd := &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a plain message using a previously generated key's restored devices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message = args[0]
			if keyPath == "" {
				return usageErrorf("--key is required")
			}
			kf, err := readKeyFile(keyPath)
			if err != nil {
				return internalErrorf("%w", err)
			}
			signerIdx, err := parseSignerIndices(signerCSV, len(kf.Devices), kf.Threshold)
			if err != nil {
				return usageErrorf("%w", err)
			}
			sig, err := runSign(kf, signerIdx, message)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"key_id":    kf.KeyID.String(),
				"message":   message,
				"signature": hex.EncodeToString(sig[:]),
			})
		},
	}
	cmd.Flags().StringVar(&keyPath, "key", "", "path to a key file produced by keygen (required)")
	cmd.Flags().StringVar(&signerCSV, "signers", "", "comma separated device indices (0-based) to sign with; defaults to the first threshold devices")
	return cmd
}

func parseSignerIndices(csv string, total, threshold int) ([]int, error) {
	if csv == "" {
		idx := make([]int, threshold)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil
	}
	parts := strings.Split(csv, ",")
	idx := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n := 0
		for _, r := range p {
			if r < '0' || r > '9' {
				return nil, errSignerFormat(p)
			}
			n = n*10 + int(r-'0')
		}
		if n < 0 || n >= total {
			return nil, errSignerFormat(p)
		}
		idx = append(idx, n)
	}
	if len(idx) < threshold {
		return nil, errNotEnoughSigners(len(idx), threshold)
	}
	return idx, nil
}

func errSignerFormat(p string) error {
	return usageErrorf("invalid device index %q in --signers", p)
}

func errNotEnoughSigners(got, want int) error {
	return usageErrorf("need at least %d signers, got %d", want, got)
}

// runSign rebuilds the selected devices from persisted key-file state via
// device.RestoreKeyShare and drives a signing round with a fresh Coordinator,
// mirroring the link-layer round trip a production run makes over serial
// ports: RequestNonces, then RequestSign, then the signature shares.
func runSign(kf keyFile, signerIdx []int, message string) (wire.EncodedSignature, error) {
	var zero wire.EncodedSignature
	g := &secp.Secp256k1{}
	log := persist.NewMemoryLog()

	keyName := wire.TruncateKeyName(kf.KeyName)
	devs := make([]*device.Device, 0, len(kf.Devices))
	deviceToShareIndex := make(map[wire.DeviceId]wire.ShareIndex, len(kf.Devices))
	deviceToPublicKey := make(map[wire.DeviceId]wire.GroupPoint, len(kf.Devices))
	for _, rec := range kf.Devices {
		d := device.New(g, rec.DeviceID, rec.LongTermSecret)
		device.RestoreKeyShare(d, rec.Share, keyName, rec.StreamID, rec.Released)
		devs = append(devs, d)
		deviceToShareIndex[rec.DeviceID] = rec.Share.ShareIndex
		deviceToPublicKey[rec.DeviceID] = rec.Share.PublicKey
	}

	// Seed the fresh coordinator's key registry from the key file the
	// way a restarted process would: replaying the KeyMutation that
	// keygen's completion would have appended to a durable log.
	if err := log.Append(coordinator.FrostKeysTag(), coordinator.KeyMutation{
		Version: 1,
		Key: coordinator.FrostKey{
			KeyID:              kf.KeyID,
			KeyName:            keyName,
			Threshold:          kf.Threshold,
			GroupKey:           kf.GroupKey,
			DeviceToShareIndex: deviceToShareIndex,
			DeviceToPublicKey:  deviceToPublicKey,
		},
	}); err != nil {
		return zero, internalErrorf("seeding coordinator key registry: %w", err)
	}
	c, err := coordinator.New(g, log)
	if err != nil {
		return zero, internalErrorf("building coordinator from seeded key: %w", err)
	}

	signers := make([]*device.Device, len(signerIdx))
	for i, idx := range signerIdx {
		signers[i] = devs[idx]
	}

	for _, d := range signers {
		devSends, err := d.HandleCoordinatorMessage(wire.RequestNonces{})
		if err != nil {
			return zero, protocolErrorf("device %x RequestNonces: %w", d.ID, err)
		}
		resp, ok := findDeviceSendToCoordinator(devSends)
		if !ok {
			return zero, protocolErrorf("device %x produced no NonceResponse", d.ID)
		}
		nr, ok := resp.(wire.NonceResponse)
		if !ok {
			return zero, protocolErrorf("device %x: expected NonceResponse, got %T", d.ID, resp)
		}
		if err := c.RecordNonces(d.ID, d.Streams[kf.KeyID].ID, nr.Nonces); err != nil {
			return zero, protocolErrorf("recording nonces for %x: %w", d.ID, err)
		}
	}

	signerIDs := make([]wire.DeviceId, len(signers))
	for i, d := range signers {
		signerIDs[i] = d.ID
	}
	task := wire.SignTask{Kind: wire.SignTaskPlainMessage, Data: []byte(message)}
	sends, err := c.StartSign(task, kf.KeyID, signerIDs)
	if err != nil {
		return zero, protocolErrorf("starting sign: %w", err)
	}

	msg, dests, ok := findCoordinatorSendToDevice(sends)
	if !ok {
		return zero, protocolErrorf("coordinator produced no RequestSign message")
	}
	byID := make(map[wire.DeviceId]*device.Device, len(signers))
	for _, d := range signers {
		byID[d.ID] = d
	}
	for _, id := range dests {
		d := byID[id]
		if _, err := d.HandleCoordinatorMessage(msg); err != nil {
			return zero, protocolErrorf("device %x RequestSign: %w", id, err)
		}
		confirmSends, err := d.ConfirmPrompt()
		if err != nil {
			return zero, protocolErrorf("device %x confirming sign: %w", id, err)
		}
		share, ok := findDeviceSendToCoordinator(confirmSends)
		if !ok {
			return zero, protocolErrorf("device %x produced no SignatureShareMsg", id)
		}
		if sends, err = c.ProcessDeviceMessage(id, share); err != nil {
			return zero, protocolErrorf("coordinator processing SignatureShareMsg from %x: %w", id, err)
		}
	}

	if c.ActiveCompletion() != coordinator.CompletedOK {
		return zero, protocolErrorf("sign session did not complete, got %v", c.ActiveCompletion())
	}
	if c.LastSignature() == nil {
		return zero, protocolErrorf("sign session completed without a signature")
	}
	for _, s := range sends {
		toUser, ok := s.(wire.CoordinatorSendToUser)
		if !ok {
			continue
		}
		report, ok := toUser.Message.(wire.CoordinatorSigningReport)
		if !ok {
			continue
		}
		signed, ok := report.Message.(wire.Signed)
		if !ok || len(signed.Signatures) == 0 {
			continue
		}
		return signed.Signatures[0], nil
	}
	return zero, protocolErrorf("sign session completed without a CoordinatorSigningReport")
}
