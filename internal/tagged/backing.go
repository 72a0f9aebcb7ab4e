package tagged

import "encoding/binary"

// Backing file layout:
//
//	[0:8)    magic "EMSARR01"
//	[8:16)   cell count, little endian
//	[16:...) tag words (uint32 per cell), padded to 8 bytes
//	[...]    value words (int64 per cell)
const (
	backingMagic      = "EMSARR01"
	backingHeaderSize = 16
)

// backingLayout returns the tag offset, value offset and total size for n cells.
func backingLayout(n int) (tagsOff, wordsOff, size int) {
	tagsOff = backingHeaderSize
	wordsOff = align8(tagsOff + 4*n)
	size = wordsOff + 8*n
	return tagsOff, wordsOff, size
}

func align8(n int) int {
	return (n + 7) &^ 7
}

func writeBackingHeader(data []byte, n int) {
	copy(data[:8], backingMagic)
	binary.LittleEndian.PutUint64(data[8:16], uint64(n))
}

func checkBackingHeader(data []byte, n int) bool {
	if len(data) < backingHeaderSize || string(data[:8]) != backingMagic {
		return false
	}
	return binary.LittleEndian.Uint64(data[8:16]) == uint64(n)
}
