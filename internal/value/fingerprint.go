package value

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a deterministic 64-bit hash of s. Equal structs always
// hash equally regardless of map iteration order; it is used to deduplicate
// context snapshots and to detect stale resolutions cheaply.
func Fingerprint(s Struct) uint64 {
	d := xxhash.New()
	writeValue(d, s)
	return d.Sum64()
}

func writeValue(d *xxhash.Digest, v Value) {
	var buf [9]byte
	if v == nil {
		v = Null{}
	}
	buf[0] = byte(v.Kind())
	switch x := v.(type) {
	case Null:
		_, _ = d.Write(buf[:1])
	case String:
		_, _ = d.Write(buf[:1])
		writeString(d, string(x))
	case Double:
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(float64(x)))
		_, _ = d.Write(buf[:])
	case Bool:
		if x {
			buf[1] = 1
		}
		_, _ = d.Write(buf[:2])
	case Integer:
		binary.BigEndian.PutUint64(buf[1:], uint64(x))
		_, _ = d.Write(buf[:])
	case Date:
		_, _ = d.Write(buf[:1])
		writeString(d, x.String())
	case Timestamp:
		binary.BigEndian.PutUint64(buf[1:], uint64(x.Time().UnixNano()))
		_, _ = d.Write(buf[:])
	case List:
		binary.BigEndian.PutUint64(buf[1:], uint64(len(x)))
		_, _ = d.Write(buf[:])
		for _, e := range x {
			writeValue(d, e)
		}
	case Struct:
		binary.BigEndian.PutUint64(buf[1:], uint64(len(x)))
		_, _ = d.Write(buf[:])
		for _, k := range x.Keys() {
			writeString(d, k)
			writeValue(d, x[k])
		}
	}
}

// writeString length-prefixes s so adjacent strings cannot collide.
func writeString(d *xxhash.Digest, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	_, _ = d.Write(n[:])
	_, _ = d.WriteString(s)
}
