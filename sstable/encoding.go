package sstable

import (
	"encoding/binary"
	"fmt"
	"io"
)

// encodeEntry writes one on-disk record: keyLen:u32-BE, key,
// valueLen:u32-BE, value. A tombstone and a true empty value both
// encode as valueLen == 0 with no value bytes — the reference wire
// format conflates the two, and decodeEntry reads valueLen == 0 back
// as a tombstone.
func encodeEntry(w io.Writer, key, value []byte, tombstone bool) (int, error) {
	if len(key) == 0 {
		return 0, fmt.Errorf("sstable: %w: empty key", ErrCorrupt)
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(len(key)))

	valLen := uint32(len(value))
	if tombstone {
		valLen = 0
	}
	binary.BigEndian.PutUint32(header[4:8], valLen)

	n := 0
	if _, err := w.Write(header[:4]); err != nil {
		return n, err
	}
	n += 4
	if _, err := w.Write(key); err != nil {
		return n, err
	}
	n += len(key)
	if _, err := w.Write(header[4:8]); err != nil {
		return n, err
	}
	n += 4
	if valLen > 0 {
		if _, err := w.Write(value); err != nil {
			return n, err
		}
		n += len(value)
	}
	return n, nil
}

// entrySize returns the encoded byte size of (key, value) without
// writing it, used for block-boundary accounting.
func entrySize(key, value []byte, tombstone bool) int {
	if tombstone {
		return 4 + len(key) + 4
	}
	return 4 + len(key) + 4 + len(value)
}

// EntrySize is entrySize exported for callers outside this package
// that need to replicate the same size-bounding arithmetic, namely
// the compaction sorted-run builder's output-splitting logic.
func EntrySize(key, value []byte, tombstone bool) int {
	return entrySize(key, value, tombstone)
}

// decodeEntry reads one on-disk record from r. io.EOF is returned
// (unwrapped) when r is exhausted at a record boundary; any other
// truncation is reported as ErrCorrupt.
func decodeEntry(r io.Reader) (key, value []byte, tombstone bool, err error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, nil, false, fmt.Errorf("sstable: %w: truncated key length", ErrCorrupt)
		}
		return nil, nil, false, err
	}
	keyLen := binary.BigEndian.Uint32(lenBuf[:])
	if keyLen == 0 || keyLen > maxReasonableFieldLen {
		return nil, nil, false, fmt.Errorf("sstable: %w: invalid key length %d", ErrCorrupt, keyLen)
	}

	key = make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, nil, false, fmt.Errorf("sstable: %w: truncated key: %v", ErrCorrupt, err)
	}

	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, false, fmt.Errorf("sstable: %w: truncated value length: %v", ErrCorrupt, err)
	}
	valLen := binary.BigEndian.Uint32(lenBuf[:])
	if valLen > maxReasonableFieldLen {
		return nil, nil, false, fmt.Errorf("sstable: %w: invalid value length %d", ErrCorrupt, valLen)
	}

	if valLen == 0 {
		return key, nil, true, nil
	}

	value = make([]byte, valLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, nil, false, fmt.Errorf("sstable: %w: truncated value: %v", ErrCorrupt, err)
	}
	return key, value, false, nil
}

// maxReasonableFieldLen bounds a single decoded field so a corrupt
// length prefix cannot trigger an unbounded allocation.
const maxReasonableFieldLen = 1 << 30
