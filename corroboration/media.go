package corroboration

import (
	"math/bits"
	"strconv"
	"strings"
)

// MediaDistance returns the Hamming distance between two 64-bit perceptual
// hashes written in hex. Hashes that do not parse compare as identical only
// when the strings are equal. ok is false when either hash is missing.
func MediaDistance(a, b string) (distance int, ok bool) {
	a, b = strings.TrimSpace(strings.ToLower(a)), strings.TrimSpace(strings.ToLower(b))
	if a == "" || b == "" {
		return 0, false
	}
	x, errA := strconv.ParseUint(strings.TrimPrefix(a, "0x"), 16, 64)
	y, errB := strconv.ParseUint(strings.TrimPrefix(b, "0x"), 16, 64)
	if errA != nil || errB != nil {
		if a == b {
			return 0, true
		}
		return 64, true
	}
	return bits.OnesCount64(x ^ y), true
}
