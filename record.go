package blockkv

import "encoding/binary"

// recordHeader is laid into a chain ahead of the key and value bytes:
// {next_record, key_size, data_size}, 16 bytes total. Records are linked
// into a list via next_record, orthogonal to the block-chain linkage
// that stores each individual record's bytes.
type recordHeader struct {
	NextRecord BlockAddress
	KeySize    int32
	DataSize   int32
}

const recordHeaderSize = blockAddressSize + 4 + 4

func (h recordHeader) encode(dst []byte) {
	_ = dst[:recordHeaderSize]
	h.NextRecord.encode(dst[0:blockAddressSize])
	binary.LittleEndian.PutUint32(dst[blockAddressSize:blockAddressSize+4], uint32(h.KeySize))
	binary.LittleEndian.PutUint32(dst[blockAddressSize+4:recordHeaderSize], uint32(h.DataSize))
}

func decodeRecordHeader(src []byte) recordHeader {
	_ = src[:recordHeaderSize]
	return recordHeader{
		NextRecord: decodeBlockAddress(src[0:blockAddressSize]),
		KeySize:    int32(binary.LittleEndian.Uint32(src[blockAddressSize : blockAddressSize+4])),
		DataSize:   int32(binary.LittleEndian.Uint32(src[blockAddressSize+4 : recordHeaderSize])),
	}
}

// systemHeader lives at file offset 0, ahead of the pages header and
// page array, and names the head and tail of the append-only record
// list.
type systemHeader struct {
	FirstRecord BlockAddress
	LastRecord  BlockAddress
}

const systemHeaderSize = 2 * blockAddressSize

func (h systemHeader) encode(dst []byte) {
	_ = dst[:systemHeaderSize]
	h.FirstRecord.encode(dst[0:blockAddressSize])
	h.LastRecord.encode(dst[blockAddressSize:systemHeaderSize])
}

func decodeSystemHeader(src []byte) systemHeader {
	_ = src[:systemHeaderSize]
	return systemHeader{
		FirstRecord: decodeBlockAddress(src[0:blockAddressSize]),
		LastRecord:  decodeBlockAddress(src[blockAddressSize:systemHeaderSize]),
	}
}

func defaultSystemHeader() systemHeader {
	return systemHeader{FirstRecord: invalidAddress(), LastRecord: invalidAddress()}
}
