package blockkv

import "io"

// getSuccessor reads the next-block pointer stored in the trailing
// blockAddressSize bytes of the given block.
func getSuccessor(accessor *pageAccessor, blockIndex uint8) BlockAddress {
	return decodeBlockAddress(accessor.GetBlockData(blockIndex, BlockDataSize, blockAddressSize))
}

// setSuccessor writes addr into the trailing blockAddressSize bytes of
// the given block. This also marks the block Busy even if no payload
// byte has been written yet, so a later allocation can't reuse it.
func setSuccessor(accessor *pageAccessor, blockIndex uint8, addr BlockAddress) {
	var buf [blockAddressSize]byte
	addr.encode(buf[:])
	accessor.SetBlockData(blockIndex, buf[:], BlockDataSize)
}

// chainReader sequentially reads the payload bytes of a chain starting
// at a given block address. The trailing successor pointer of each
// block is invisible to callers.
type chainReader struct {
	manager     *pageManager
	page        *pageAccessor
	blockIndex  uint8
	blockOffset int
}

func newChainReader(m *pageManager, start BlockAddress) (*chainReader, error) {
	page, err := m.getPage(start.PageIndex)
	if err != nil {
		return nil, err
	}
	return &chainReader{manager: m, page: page, blockIndex: start.BlockIndex}, nil
}

// Read implements io.Reader. A short read (n < len(buf)) is paired with
// io.EOF in the same call when the chain terminates before satisfying
// the request, consistent with the io.Reader contract.
func (r *chainReader) Read(buf []byte) (int, error) {
	read := 0
	for len(buf) > 0 {
		remaining := BlockDataSize - r.blockOffset
		if len(buf) <= remaining {
			r.copyFromBlock(buf)
			return read + len(buf), nil
		}

		r.copyFromBlock(buf[:remaining])
		read += remaining
		buf = buf[remaining:]

		ok, err := r.advance()
		if err != nil {
			return read, err
		}
		if !ok {
			return read, io.EOF
		}
	}
	return read, nil
}

// Skip advances past n payload bytes without copying them.
func (r *chainReader) Skip(n int) error {
	for {
		remaining := BlockDataSize - r.blockOffset
		if n <= remaining {
			r.blockOffset += n
			return nil
		}

		ok, err := r.advance()
		if err != nil {
			return err
		}
		if !ok {
			return ErrSkipOverflow
		}
		n -= remaining
	}
}

// Close releases the page accessor held by the reader.
func (r *chainReader) Close() {
	r.page.Release()
}

func (r *chainReader) copyFromBlock(dst []byte) {
	data := r.page.GetBlockData(r.blockIndex, r.blockOffset, len(dst))
	copy(dst, data)
	r.blockOffset += len(dst)
}

func (r *chainReader) advance() (bool, error) {
	next := getSuccessor(r.page, r.blockIndex)
	if next.isInvalid() {
		return false, nil
	}

	if next.PageIndex != r.page.Index() {
		r.page.Release()
		page, err := r.manager.getPage(next.PageIndex)
		if err != nil {
			return false, err
		}
		r.page = page
	}

	r.blockIndex = next.BlockIndex
	r.blockOffset = 0
	return true, nil
}

// chainWriter sequentially grows a chain, allocating blocks from the
// page manager on demand and linking them via each block's trailing
// successor pointer.
type chainWriter struct {
	manager      *pageManager
	page         *pageAccessor
	blockAddress BlockAddress
	blockOffset  int
	startAddress BlockAddress
}

func newChainWriter(m *pageManager) (*chainWriter, error) {
	page, err := m.getPageWithFreeBlocks(0)
	if err != nil {
		return nil, err
	}
	start := BlockAddress{PageIndex: page.Index(), BlockIndex: page.FirstFreeBlock()}
	return &chainWriter{
		manager:      m,
		page:         page,
		blockAddress: start,
		startAddress: start,
	}, nil
}

// StartAddress returns the chain head, to be handed up to the record
// layer so a later reader can find this chain.
func (w *chainWriter) StartAddress() BlockAddress {
	return w.startAddress
}

// Write implements io.Writer.
func (w *chainWriter) Write(buf []byte) (int, error) {
	total := len(buf)
	for len(buf) > 0 {
		remaining := BlockDataSize - w.blockOffset
		if len(buf) <= remaining {
			w.copyToBlock(buf)
			return total, nil
		}

		w.copyToBlock(buf[:remaining])
		if err := w.advanceBlock(); err != nil {
			return total - len(buf), err
		}
		buf = buf[remaining:]
	}
	return total, nil
}

func (w *chainWriter) copyToBlock(buf []byte) {
	w.page.SetBlockData(w.blockAddress.BlockIndex, buf, w.blockOffset)
	w.blockOffset += len(buf)
}

// advanceBlock allocates the next block in the chain (from the current
// page if it still has room, otherwise from the next page with free
// blocks), links the previous tail block to it, and makes the new block
// the tail by writing an invalid successor into it. The invalid
// successor is written before any payload byte lands in the new block,
// since setSuccessor is what marks a block Busy; writing it first keeps
// a just-allocated, still-empty block from looking free to another
// allocation.
func (w *chainWriter) advanceBlock() error {
	w.blockOffset = 0

	if !w.page.HasFreeBlocks() {
		if err := w.page.Commit(); err != nil {
			return err
		}
		w.page.Release()

		next, err := w.manager.getPageWithFreeBlocks(w.page.Index() + 1)
		if err != nil {
			return err
		}
		w.page = next
	}

	prev := w.blockAddress
	w.blockAddress = BlockAddress{PageIndex: w.page.Index(), BlockIndex: w.page.FirstFreeBlock()}

	setSuccessor(w.page, w.blockAddress.BlockIndex, invalidAddress())

	if !prev.isInvalid() {
		if prev.PageIndex == w.page.Index() {
			setSuccessor(w.page, prev.BlockIndex, w.blockAddress)
		} else {
			prevPage, err := w.manager.getPage(prev.PageIndex)
			if err != nil {
				return err
			}
			setSuccessor(prevPage, prev.BlockIndex, w.blockAddress)
			if err := prevPage.Commit(); err != nil {
				return err
			}
			prevPage.Release()
		}
	}

	if w.startAddress.isInvalid() {
		w.startAddress = w.blockAddress
	}
	return nil
}

// Close terminates the chain by writing an invalid successor into the
// current tail block, commits the held page, and releases it. Callers
// must call Close to finalize a chain; there is no commit-on-drop, so a
// commit failure is never silently lost.
func (w *chainWriter) Close() error {
	setSuccessor(w.page, w.blockAddress.BlockIndex, invalidAddress())
	if err := w.page.Commit(); err != nil {
		return err
	}
	w.page.Release()
	return nil
}
