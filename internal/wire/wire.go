package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindValue byte = 1
	kindNone  byte = 2

	hdrLen = 4 + 1 + 1 + 4
)

var (
	ErrCorrupt = errors.New("bouncer: corrupt entry")
	magic4     = [...]byte{'B', 'N', 'C', 'R'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1=value, 2=none) | vlen(u32 be) | payload(vlen)
//
// A none entry always has vlen=0. It records that the source had nothing for
// the key, which is different from the backend having no entry at all.
func Encode(valid bool, payload []byte) []byte {
	if !valid {
		payload = nil
	}
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	if valid {
		buf.WriteByte(kindValue)
	} else {
		buf.WriteByte(kindNone)
	}

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode validates the frame and returns the payload as a sub-slice of b.
func Decode(b []byte) (valid bool, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return false, nil, ErrCorrupt
	}
	kind := b[5]
	if kind != kindValue && kind != kindNone {
		return false, nil, ErrCorrupt
	}

	off := 6
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact: no truncation, no trailing bytes
		return false, nil, ErrCorrupt
	}
	if kind == kindNone {
		if vlen != 0 {
			return false, nil, ErrCorrupt
		}
		return false, nil, nil
	}
	return true, b[off : off+vlen], nil
}
