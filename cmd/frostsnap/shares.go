package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/frostsnap/core/wire"
)

// deviceRecord is one device's durable key material as keygen writes it
// and sign reads it back, standing in for the DATABASE_URL-backed storage
// layer a real deployment would use: enough to rebuild a Device via
// device.RestoreKeyShare without needing the DKG replayed.
type deviceRecord struct {
	DeviceID       wire.DeviceId      `json:"device_id"`
	LongTermSecret []byte             `json:"long_term_secret"`
	Share          wire.PairedSecretShare `json:"share"`
	StreamID       wire.NonceStreamId `json:"stream_id"`
	Released       uint32             `json:"released"`
}

// keyFile is the on-disk shape keygen produces: one finalized key plus
// every participating device's restorable state.
type keyFile struct {
	KeyID     wire.KeyId     `json:"key_id"`
	KeyName   string         `json:"key_name"`
	Threshold int            `json:"threshold"`
	GroupKey  wire.GroupPoint `json:"group_key"`
	Devices   []deviceRecord `json:"devices"`
}

func writeKeyFile(path string, kf keyFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(kf); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func readKeyFile(path string) (keyFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return keyFile{}, fmt.Errorf("opening key file: %w", err)
	}
	defer f.Close()
	var kf keyFile
	if err := json.NewDecoder(f).Decode(&kf); err != nil {
		return keyFile{}, fmt.Errorf("reading key file: %w", err)
	}
	return kf, nil
}
