package util

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor packs two integers as 16 little-endian bytes, in standard base64.
func EncodeCursor(a, b int64) string {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(a))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(b))
	return base64.StdEncoding.EncodeToString(buf[:])
}

func DecodeCursor(s string) (int64, int64, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrInvalidCursor, err)
	}
	if len(raw) != 16 {
		return 0, 0, fmt.Errorf("%w: expected 16 bytes, got %d", ErrInvalidCursor, len(raw))
	}
	a := int64(binary.LittleEndian.Uint64(raw[0:8]))
	b := int64(binary.LittleEndian.Uint64(raw[8:16]))
	return a, b, nil
}
