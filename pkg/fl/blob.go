package fl

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DefaultMaxBlobSize bounds blobs accepted from drones.
const DefaultMaxBlobSize = 64 << 20

// Blob is an immutable parameter payload. The zero value is the empty blob.
type Blob struct {
	data []byte
}

func NewBlob(data []byte) Blob {
	if len(data) == 0 {
		return Blob{}
	}

	return Blob{data: bytes.Clone(data)}
}

// Bytes returns a copy of the payload so callers can never mutate a shared blob.
func (b Blob) Bytes() []byte {
	return bytes.Clone(b.data)
}

func (b Blob) Len() int {
	return len(b.data)
}

func (b Blob) IsEmpty() bool {
	return len(b.data) == 0
}

func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b.data, other.data)
}

// Digest is a short content hash used in logs and reports.
func (b Blob) Digest() string {
	if b.IsEmpty() {
		return ""
	}
	sum := sha256.Sum256(b.data)

	return hex.EncodeToString(sum[:8])
}

func (b Blob) Validate(limit int) error {
	if limit > 0 && len(b.data) > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrBlobTooLarge, len(b.data), limit)
	}

	return nil
}

func (b Blob) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.data)
}

func (b *Blob) UnmarshalJSON(data []byte) error {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = NewBlob(raw)

	return nil
}
