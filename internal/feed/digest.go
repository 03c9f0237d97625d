package feed

import (
	"encoding/json"
	"fmt"
)

// Digest is a cheap fingerprint of a payload. Only compare digests for equality.
type Digest uint32

const djb2Seed Digest = 5381

// ComputeDigest serializes payload and reduces it with the xor variant of djb2.
func ComputeDigest(payload any) (d Digest, err error) {
	defer func() {
		// json.Marshal panics on some self-referencing values
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to digest payload: %v", r)
		}
	}()

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return djb2(data), nil
}

func djb2(data []byte) Digest {
	h := djb2Seed
	for _, b := range data {
		h = (h<<5 + h) ^ Digest(b)
	}
	return h
}
