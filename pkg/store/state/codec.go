// Package state persists update logs: the ordered sequences of opaque CRDT
// fragments that make up a document's durable state.
//
// A log is stored as a single blob framed as:
//
//	int32 fragmentCount
//	repeated: int32 fragmentLength, byte[fragmentLength]
//
// Integers are little-endian. The framing round-trips exactly: decoding an
// encoded log yields byte-identical fragments in the same order. This format
// is shared with existing state files, so it must not change.
package state

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EmptyDocument returns the update log of a freshly created, empty document:
// a single canonical fragment the editor clients recognize as "no content".
func EmptyDocument() [][]byte {
	return [][]byte{{0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0}}
}

// EncodeLog serializes an update log into the framed blob format.
func EncodeLog(updates [][]byte) []byte {
	size := 4
	for _, u := range updates {
		size += 4 + len(u)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))

	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(len(updates)))
	buf.Write(scratch[:])

	for _, u := range updates {
		binary.LittleEndian.PutUint32(scratch[:], uint32(len(u)))
		buf.Write(scratch[:])
		buf.Write(u)
	}
	return buf.Bytes()
}

// DecodeLog parses a framed blob back into its fragment sequence.
func DecodeLog(blob []byte) ([][]byte, error) {
	r := bytes.NewReader(blob)

	var scratch [4]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, fmt.Errorf("failed to read fragment count: %w", err)
	}
	count := int32(binary.LittleEndian.Uint32(scratch[:]))
	if count < 0 {
		return nil, fmt.Errorf("invalid fragment count %d", count)
	}

	updates := make([][]byte, 0, count)
	for i := int32(0); i < count; i++ {
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, fmt.Errorf("failed to read length of fragment %d: %w", i, err)
		}
		length := int32(binary.LittleEndian.Uint32(scratch[:]))
		if length < 0 {
			return nil, fmt.Errorf("invalid length %d for fragment %d", length, i)
		}
		fragment := make([]byte, length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("failed to read fragment %d: %w", i, err)
		}
		updates = append(updates, fragment)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after %d fragments", r.Len(), count)
	}
	return updates, nil
}
