// Package checksum implements the Internet checksum (RFC 1071).
package checksum

// Sum adds the 16-bit big-endian words of b to initial without folding.
// An odd trailing byte is treated as if padded with a zero byte.
func Sum(b []byte, initial uint32) uint32 {
	sum := initial
	n := len(b)
	for i := 0; i+1 < n; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
		// Keep the high bit clear so long buffers cannot overflow.
		if sum&0x80000000 != 0 {
			sum = (sum & 0xFFFF) + (sum >> 16)
		}
	}
	if n%2 == 1 {
		sum += uint32(b[n-1]) << 8
	}
	return sum
}

// Fold folds the carries of a 32-bit partial sum into 16 bits.
func Fold(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return uint16(sum)
}

// Checksum returns the one's complement of the one's complement sum of b.
func Checksum(b []byte) uint16 {
	return ^Fold(Sum(b, 0))
}
