package model

import (
	"encoding/binary"
	"fmt"
)

const (
	// TimestampLen is the size of the big-endian timestamp prefix of a row key.
	TimestampLen = 8
	// SaltLen is the size of the salt suffix of a row key.
	SaltLen = 2
	// RowKeyLen is the total size of a row key.
	RowKeyLen = TimestampLen + SaltLen
)

// RowKey identifies a stored point. The big-endian timestamp prefix keeps
// byte order equal to time order; the salt separates points of the same nanosecond.
type RowKey []byte

// NewRowKey builds a row key from a timestamp and a salt.
func NewRowKey(ts uint64, salt uint16) RowKey {
	k := make(RowKey, RowKeyLen)
	binary.BigEndian.PutUint64(k[:TimestampLen], ts)
	binary.BigEndian.PutUint16(k[TimestampLen:], salt)
	return k
}

// ParseRowKey validates raw bytes as a row key.
func ParseRowKey(b []byte) (RowKey, error) {
	if len(b) != RowKeyLen {
		return nil, fmt.Errorf("row key must be %d bytes, got %d", RowKeyLen, len(b))
	}
	k := make(RowKey, RowKeyLen)
	copy(k, b)
	return k, nil
}

// Timestamp returns the timestamp encoded in the key.
func (k RowKey) Timestamp() uint64 {
	return binary.BigEndian.Uint64(k[:TimestampLen])
}

// Salt returns the salt encoded in the key.
func (k RowKey) Salt() uint16 {
	return binary.BigEndian.Uint16(k[TimestampLen:])
}

// TimeBound returns the smallest row key with the given timestamp.
// Scanning [TimeBound(start), TimeBound(end)) covers every key with start <= ts < end.
func TimeBound(ts uint64) RowKey {
	return NewRowKey(ts, 0)
}
