package codec

import (
	"encoding/binary"
	"errors"
)

const (
	// HeaderSize is the width of the length prefix.
	HeaderSize = 4
	// MaxBodySize bounds a single frame body.
	MaxBodySize = 16 << 20
)

// ErrBodyTooLarge is returned by Pack for bodies above MaxBodySize.
var ErrBodyTooLarge = errors.New("vps frame body too large")

// Pack prefixes body with its little-endian 32-bit length.
func Pack(body []byte) ([]byte, error) {
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}
	frame := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(frame[:HeaderSize], uint32(len(body)))
	copy(frame[HeaderSize:], body)
	return frame, nil
}

// Split extracts every complete frame body from data, in order. Bodies alias
// data. leftover counts the trailing bytes that do not form a complete frame;
// they are not retained for a later call.
func Split(data []byte) (bodies [][]byte, leftover int) {
	cursor := 0
	for len(data)-cursor >= HeaderSize {
		size := binary.LittleEndian.Uint32(data[cursor : cursor+HeaderSize])
		if size > MaxBodySize || int(size) > len(data)-cursor-HeaderSize {
			break
		}
		start := cursor + HeaderSize
		end := start + int(size)
		bodies = append(bodies, data[start:end:end])
		cursor = end
	}
	return bodies, len(data) - cursor
}
