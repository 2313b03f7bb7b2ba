package main

import (
	"crypto/rand"
	"encoding/json"
	"os"

	"github.com/frostsnap/core/coordinator"
	"github.com/frostsnap/core/device"
	"github.com/frostsnap/core/persist"
	"github.com/frostsnap/core/secp"
	"github.com/frostsnap/core/wire"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		threshold int
		total     int
		keyName   string
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Run a distributed key generation session against simulated devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if total < 1 {
				return usageErrorf("--total must be at least 1, got %d", total)
			}
			if threshold < 1 || threshold > total {
				return usageErrorf("--threshold must be between 1 and --total (%d), got %d", total, threshold)
			}
			if outPath == "" {
				return usageErrorf("--out is required")
			}
			kf, err := runKeygen(threshold, total, keyName)
			if err != nil {
				return err
			}
			if err := writeKeyFile(outPath, kf); err != nil {
				return internalErrorf("%w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"key_id":    kf.KeyID.String(),
				"threshold": kf.Threshold,
				"devices":   len(kf.Devices),
				"out":       outPath,
			})
		},
	}
	cmd.Flags().IntVar(&threshold, "threshold", 2, "minimum number of signers required")
	cmd.Flags().IntVar(&total, "total", 3, "number of simulated devices to generate shares for")
	cmd.Flags().StringVar(&keyName, "name", "frostsnap", "name recorded for the resulting key")
	cmd.Flags().StringVar(&outPath, "out", "", "path to write the resulting key file to (required)")
	return cmd
}

func randomDeviceID() (wire.DeviceId, error) {
	var id wire.DeviceId
	_, err := rand.Read(id[:])
	return id, err
}

// runKeygen simulates total devices and drives them through a full DKG
// round with a fresh in-memory Coordinator, standing in for the real
// link-layer round trip a production run would make over serial ports.
func runKeygen(threshold, total int, keyName string) (keyFile, error) {
	g := &secp.Secp256k1{}
	log := persist.NewMemoryLog()
	c, err := coordinator.New(g, log)
	if err != nil {
		return keyFile{}, internalErrorf("building coordinator: %w", err)
	}

	ids := make([]wire.DeviceId, total)
	devs := make(map[wire.DeviceId]*device.Device, total)
	secrets := make(map[wire.DeviceId][]byte, total)
	for i := 0; i < total; i++ {
		id, err := randomDeviceID()
		if err != nil {
			return keyFile{}, internalErrorf("generating simulated device id: %w", err)
		}
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return keyFile{}, internalErrorf("generating simulated device secret: %w", err)
		}
		ids[i] = id
		secrets[id] = secret
		devs[id] = device.New(g, id, secret)
	}

	name := wire.TruncateKeyName(keyName)
	sends, err := c.BeginKeygen(ids, threshold, name)
	if err != nil {
		return keyFile{}, protocolErrorf("starting keygen: %w", err)
	}

	msg, dests, ok := findCoordinatorSendToDevice(sends)
	if !ok {
		return keyFile{}, protocolErrorf("coordinator produced no DoKeyGen message")
	}
	for _, id := range dests {
		devSends, err := devs[id].HandleCoordinatorMessage(msg)
		if err != nil {
			return keyFile{}, protocolErrorf("device %x DoKeyGen: %w", id, err)
		}
		resp, ok := findDeviceSendToCoordinator(devSends)
		if !ok {
			return keyFile{}, protocolErrorf("device %x produced no KeyGenResponse", id)
		}
		sends, err = c.ProcessDeviceMessage(id, resp)
		if err != nil {
			return keyFile{}, protocolErrorf("coordinator processing KeyGenResponse from %x: %w", id, err)
		}
	}

	finishMsgs := make(map[wire.DeviceId]wire.CoordinatorToDeviceMessage, total)
	for _, s := range sends {
		if toDev, ok := s.(wire.CoordinatorSendToDevice); ok {
			for _, id := range toDev.Destinations {
				finishMsgs[id] = toDev.Message
			}
		}
	}
	if len(finishMsgs) != total {
		return keyFile{}, protocolErrorf("expected a FinishKeyGen for every device, got %d of %d", len(finishMsgs), total)
	}

	for _, id := range ids {
		if _, err := devs[id].HandleCoordinatorMessage(finishMsgs[id]); err != nil {
			return keyFile{}, protocolErrorf("device %x FinishKeyGen: %w", id, err)
		}
		confirmSends, err := devs[id].ConfirmPrompt()
		if err != nil {
			return keyFile{}, protocolErrorf("device %x confirming keygen: %w", id, err)
		}
		ack, ok := findDeviceSendToCoordinator(confirmSends)
		if !ok {
			return keyFile{}, protocolErrorf("device %x produced no KeyGenAck", id)
		}
		if _, err := c.ProcessDeviceMessage(id, ack); err != nil {
			return keyFile{}, protocolErrorf("coordinator processing KeyGenAck from %x: %w", id, err)
		}
	}

	switch c.ActiveCompletion() {
	case coordinator.CompletedFailed:
		return keyFile{}, protocolErrorf("keygen session failed")
	case coordinator.NotComplete:
		return keyFile{}, protocolErrorf("keygen session stalled without completing")
	}

	key := c.LastKeyGenerated()
	if key == nil {
		return keyFile{}, protocolErrorf("keygen completed without producing a key")
	}

	kf := keyFile{KeyID: key.KeyID, KeyName: keyName, Threshold: key.Threshold, GroupKey: key.GroupKey}
	for _, id := range ids {
		d := devs[id]
		share, ok := d.Keys[key.KeyID]
		if !ok {
			return keyFile{}, internalErrorf("device %x has no share after keygen completed", id)
		}
		stream := d.Streams[key.KeyID]
		kf.Devices = append(kf.Devices, deviceRecord{
			DeviceID:       id,
			LongTermSecret: secrets[id],
			Share:          share,
			StreamID:       stream.ID,
			Released:       stream.Released,
		})
	}
	return kf, nil
}

func findCoordinatorSendToDevice(sends []wire.CoordinatorSend) (msg wire.CoordinatorToDeviceMessage, dests []wire.DeviceId, ok bool) {
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
