package blockkv

import "encoding/binary"

// Constants fixed in the on-disk format. See the page and block layout
// notes on pageImage and chainWriter for how these interact.
const (
	PageSize        = 4096
	BlockSize       = 64
	PageBlockCount  = 63
	InvalidBlockIdx = PageBlockCount // 63: sentinel, "no free block"
	InvalidPageIdx  = int32(-1)

	blockAddressSize = 8 // 4 bytes page index + 1 byte block index + 3 pad
	// BlockDataSize is the usable payload of a block; the trailing
	// blockAddressSize bytes hold the successor pointer.
	BlockDataSize = BlockSize - blockAddressSize

	// MaxPageCount bounds the page index space; a probe that reaches it
	// without finding a free block means the store is full.
	MaxPageCount = int32(1<<31 - 1)
)

// BlockAddress names a single block: the page it lives on and its index
// within that page's block array. The zero value names block 0 of page
// 0; use invalidAddress() for "no block".
type BlockAddress struct {
	PageIndex  int32
	BlockIndex uint8
}

func invalidAddress() BlockAddress {
	return BlockAddress{PageIndex: InvalidPageIdx, BlockIndex: InvalidBlockIdx}
}

func (a BlockAddress) isInvalid() bool {
	return a == invalidAddress()
}

// encode writes the address in the on-disk layout: i32 page index
// (little-endian), u8 block index, 3 bytes of padding.
func (a BlockAddress) encode(dst []byte) {
	_ = dst[:blockAddressSize]
	binary.LittleEndian.PutUint32(dst[0:4], uint32(a.PageIndex))
	dst[4] = a.BlockIndex
	dst[5], dst[6], dst[7] = 0, 0, 0
}

func decodeBlockAddress(src []byte) BlockAddress {
	_ = src[:blockAddressSize]
	return BlockAddress{
		PageIndex:  int32(binary.LittleEndian.Uint32(src[0:4])),
		BlockIndex: src[4],
	}
}
