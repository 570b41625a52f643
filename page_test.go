package blockkv

import "testing"

func TestPageImageStartsAllFree(t *testing.T) {
	p := newPageImage()
	if !p.hasFreeBlocks() {
		t.Fatal("fresh page should have free blocks")
	}
	if p.firstFreeBlock != 0 {
		t.Fatalf("fresh page firstFreeBlock = %d, want 0", p.firstFreeBlock)
	}
}

func TestSetBlockDataMarksBusyAndAdvancesCursor(t *testing.T) {
	p := newPageImage()

	changed := p.setBlockData(0, []byte("hello"), 0)
	if !changed {
		t.Fatal("first write should report a change")
	}
	if p.blockStates[0] != blockBusy {
		t.Fatal("block 0 should be busy after a write")
	}
	if p.firstFreeBlock != 1 {
		t.Fatalf("firstFreeBlock = %d, want 1", p.firstFreeBlock)
	}
}

func TestSetBlockDataNoopReturnsFalse(t *testing.T) {
	p := newPageImage()
	p.setBlockData(0, []byte("hello"), 0)

	changed := p.setBlockData(0, []byte("hello"), 0)
	if changed {
		t.Fatal("identical write should report no change")
	}
}

func TestSetBlockDataScansForwardForFirstFree(t *testing.T) {
	p := newPageImage()
	for i := uint8(0); i < 5; i++ {
		p.setBlockData(i, []byte{byte(i) + 1}, 0)
	}
	if p.firstFreeBlock != 5 {
		t.Fatalf("firstFreeBlock = %d, want 5", p.firstFreeBlock)
	}

	// filling out of order: busy block 6 while 5 stays free shouldn't
	// move the cursor past the still-free block 5.
	p.setBlockData(6, []byte{1}, 0)
	if p.firstFreeBlock != 5 {
		t.Fatalf("firstFreeBlock = %d, want 5 after filling a later block", p.firstFreeBlock)
	}
}

func TestSetBlockDataFullPageYieldsInvalidIndex(t *testing.T) {
	p := newPageImage()
	for i := uint8(0); i < PageBlockCount; i++ {
		p.setBlockData(i, []byte{1}, 0)
	}
	if p.hasFreeBlocks() {
		t.Fatal("fully-written page should report no free blocks")
	}
	if p.firstFreeBlock != InvalidBlockIdx {
		t.Fatalf("firstFreeBlock = %d, want InvalidBlockIdx", p.firstFreeBlock)
	}
}

func TestGetBlockDataZeroLengthMeansRemainder(t *testing.T) {
	p := newPageImage()
	view := p.getBlockData(0, 10, 0)
	if len(view) != BlockSize-10 {
		t.Fatalf("len = %d, want %d", len(view), BlockSize-10)
	}
}

func TestGetBlockDataInvalidIndexPanics(t *testing.T) {
	p := newPageImage()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range block index")
		}
	}()
	p.getBlockData(PageBlockCount, 0, 1)
}

func TestGetBlockDataRangeOverflowPanics(t *testing.T) {
	p := newPageImage()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for offset+length > BlockSize")
		}
	}()
	p.getBlockData(0, 60, 10)
}

func TestPageImageEncodeDecodeRoundTrip(t *testing.T) {
	p := newPageImage()
	p.setBlockData(2, []byte("payload"), 3)

	var buf [PageSize]byte
	p.encode(buf[:])

	decoded := decodePageImage(buf[:])
	if decoded.firstFreeBlock != p.firstFreeBlock {
		t.Fatalf("firstFreeBlock mismatch: got %d want %d", decoded.firstFreeBlock, p.firstFreeBlock)
	}
	if decoded.blockStates != p.blockStates {
		t.Fatal("blockStates mismatch after round trip")
	}
	if decoded.blocks != p.blocks {
		t.Fatal("blocks mismatch after round trip")
	}
}
