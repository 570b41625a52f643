package blockkv

// pageImage is the in-memory image of one on-disk page: 63 blocks plus
// occupancy metadata. On disk the layout is exactly
//
//	byte      0       firstFreeBlock
//	bytes   1..63      blockStates[63]
//	bytes  64..4095    blocks[63 * 64]
//
// with no additional padding, per the source's packed repr.
type pageImage struct {
	firstFreeBlock uint8
	blockStates    [PageBlockCount]uint8
	blocks         [PageBlockCount * BlockSize]byte
}

// newPageImage returns a fresh, all-free page: the default image for any
// page referenced beyond the current end of file.
func newPageImage() *pageImage {
	return &pageImage{firstFreeBlock: 0}
}

func (p *pageImage) hasFreeBlocks() bool {
	return p.firstFreeBlock != InvalidBlockIdx
}

// blockRange validates (index, offset, length) and returns the byte range
// within p.blocks it denotes. length == 0 means "rest of the block".
func blockRange(index uint8, offset, length int) (int, int) {
	if index >= PageBlockCount {
		panic("blockkv: invalid block index")
	}
	if length == 0 {
		length = BlockSize - offset
	}
	if offset+length > BlockSize {
		panic("blockkv: offset+length exceeds block size")
	}
	start := int(index)*BlockSize + offset
	return start, start + length
}

// getBlockData returns a view of length bytes starting at
// index*BlockSize+offset. length == 0 means "whole block remainder".
func (p *pageImage) getBlockData(index uint8, offset, length int) []byte {
	start, end := blockRange(index, offset, length)
	return p.blocks[start:end]
}

// setBlockData copies data into the block at offset, marks the block
// Busy, and maintains firstFreeBlock. If the write is a byte-for-byte
// no-op it returns false and changes nothing (neither the block state
// nor firstFreeBlock), so callers can skip a spurious commit.
func (p *pageImage) setBlockData(index uint8, data []byte, offset int) bool {
	start, end := blockRange(index, offset, len(data))
	dst := p.blocks[start:end]
	if string(dst) == string(data) {
		return false
	}
	copy(dst, data)
	p.blockStates[index] = blockBusy

	if index != p.firstFreeBlock {
		return true
	}

	for i := int(index); i < PageBlockCount; i++ {
		if p.blockStates[i] == blockFree {
			p.firstFreeBlock = uint8(i)
			return true
		}
	}
	p.firstFreeBlock = InvalidBlockIdx
	return true
}

const (
	blockFree uint8 = 0
	blockBusy uint8 = 1
)

// encode serializes the page into exactly PageSize bytes.
func (p *pageImage) encode(dst []byte) {
	_ = dst[:PageSize]
	dst[0] = p.firstFreeBlock
	copy(dst[1:1+PageBlockCount], p.blockStates[:])
	copy(dst[1+PageBlockCount:PageSize], p.blocks[:])
}

func decodePageImage(src []byte) *pageImage {
	_ = src[:PageSize]
	p := &pageImage{firstFreeBlock: src[0]}
	copy(p.blockStates[:], src[1:1+PageBlockCount])
	copy(p.blocks[:], src[1+PageBlockCount:PageSize])
	return p
}
