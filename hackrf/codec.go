package hackrf

import "encoding/binary"

// The firmware expects every multi-byte field in little-endian order. Multi-field
// payloads are built by appending fields in their declared order.

// AppendInt32 appends v to dst as 4 little-endian bytes.
func AppendInt32(dst []byte, v int32) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(v))
}

// AppendInt64 appends v to dst as 8 little-endian bytes.
func AppendInt64(dst []byte, v int64) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(v))
}

// EncodeInt32 returns the 4-byte little-endian form of v.
func EncodeInt32(v int32) []byte { return AppendInt32(make([]byte, 0, 4), v) }

// EncodeInt64 returns the 8-byte little-endian form of v.
func EncodeInt64(v int64) []byte { return AppendInt64(make([]byte, 0, 8), v) }

// DecodeInt32 reads a little-endian int32 at offset. Missing trailing bytes
// read as zero.
func DecodeInt32(b []byte, offset int) int32 {
	var tmp [4]byte
	copyFrom(tmp[:], b, offset)
	return int32(binary.LittleEndian.Uint32(tmp[:]))
}

// DecodeInt64 reads a little-endian int64 at offset. Missing trailing bytes
// read as zero.
func DecodeInt64(b []byte, offset int) int64 {
	var tmp [8]byte
	copyFrom(tmp[:], b, offset)
	return int64(binary.LittleEndian.Uint64(tmp[:]))
}

func copyFrom(dst, src []byte, offset int) {
	if offset < 0 || offset >= len(src) {
		return
	}
	copy(dst, src[offset:])
}
