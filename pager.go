package blockkv

import (
	"encoding/binary"
)

// pagesHeader is the small persisted header that precedes the page
// array and tracks the lowest page index known to have a free block.
type pagesHeader struct {
	firstPageWithFreeBlocks int32
}

const pagesHeaderSize = 4

func (h pagesHeader) encode(dst []byte) {
	_ = dst[:pagesHeaderSize]
	binary.LittleEndian.PutUint32(dst, uint32(h.firstPageWithFreeBlocks))
}

func decodePagesHeader(src []byte) pagesHeader {
	_ = src[:pagesHeaderSize]
	return pagesHeader{firstPageWithFreeBlocks: int32(binary.LittleEndian.Uint32(src))}
}

// pageCache maps a page index to its in-memory image. There is no
// eviction in this version: the store is expected to fit comfortably in
// memory for the lifetime of the process, so once loaded a page stays
// resident.
type pageCache struct {
	pages map[int32]*pageImage
}

func newPageCache() *pageCache {
	return &pageCache{pages: make(map[int32]*pageImage)}
}

func (c *pageCache) get(index int32) (*pageImage, bool) {
	p, ok := c.pages[index]
	return p, ok
}

func (c *pageCache) put(index int32, page *pageImage) {
	c.pages[index] = page
}

// pageManager allocates and locates pages, maintains the
// firstPageWithFreeBlocks cursor, and commits dirty pages back to
// storage.
type pageManager struct {
	storage         Storage
	headerOffset    int64
	firstPageOffset int64
	header          pagesHeader
	cache           *pageCache
}

func newPageManager(storage Storage, headerOffset int64) (*pageManager, error) {
	size, err := storage.Size()
	if err != nil {
		return nil, err
	}

	header := pagesHeader{}
	if size > headerOffset {
		buf := make([]byte, pagesHeaderSize)
		if _, err := storage.ReadAt(buf, headerOffset); err != nil {
			return nil, err
		}
		header = decodePagesHeader(buf)
	}

	return &pageManager{
		storage:         storage,
		headerOffset:    headerOffset,
		firstPageOffset: headerOffset + pagesHeaderSize,
		header:          header,
		cache:           newPageCache(),
	}, nil
}

func (m *pageManager) pageOffset(index int32) int64 {
	return m.firstPageOffset + int64(index)*PageSize
}

// getPage returns a writable accessor for the page at index, loading it
// from storage (or materializing a fresh all-free image) on cache miss.
func (m *pageManager) getPage(index int32) (*pageAccessor, error) {
	if index < 0 {
		panic("blockkv: invalid page index")
	}

	if img, ok := m.cache.get(index); ok {
		return &pageAccessor{manager: m, index: index, page: img}, nil
	}

	size, err := m.storage.Size()
	if err != nil {
		return nil, err
	}

	offset := m.pageOffset(index)
	var img *pageImage
	if offset >= size {
		img = newPageImage()
	} else {
		buf := make([]byte, PageSize)
		if _, err := m.storage.ReadAt(buf, offset); err != nil {
			return nil, err
		}
		img = decodePageImage(buf)
	}

	m.cache.put(index, img)
	return &pageAccessor{manager: m, index: index, page: img}, nil
}

// getPageWithFreeBlocks returns an accessor for the first page at index
// >= startIndex that has a free block.
func (m *pageManager) getPageWithFreeBlocks(startIndex int32) (*pageAccessor, error) {
	index, err := m.findPageWithFreeBlocks(startIndex)
	if err != nil {
		return nil, err
	}
	return m.getPage(index)
}

// findPageWithFreeBlocks probes pages from start without loading full
// images for pages we don't end up using: a cached page answers from
// memory, a page past EOF is virgin and free, and any other page is
// checked by reading just its firstFreeBlock byte.
func (m *pageManager) findPageWithFreeBlocks(start int32) (int32, error) {
	size, err := m.storage.Size()
	if err != nil {
		return 0, err
	}

	for i := start; i < MaxPageCount; i++ {
		if img, ok := m.cache.get(i); ok {
			if img.hasFreeBlocks() {
				return i, nil
			}
			continue
		}

		offset := m.pageOffset(i)
		if offset >= size {
			return i, nil
		}

		var probe [1]byte
		if _, err := m.storage.ReadAt(probe[:], offset); err != nil {
			return 0, err
		}
		if probe[0] != InvalidBlockIdx {
			return i, nil
		}
	}

	return 0, ErrNoFreeSpace
}

// commitPage writes the page image back to storage and maintains
// header.firstPageWithFreeBlocks.
func (m *pageManager) commitPage(index int32, page *pageImage) error {
	buf := make([]byte, PageSize)
	page.encode(buf)
	if _, err := m.storage.WriteAt(buf, m.pageOffset(index)); err != nil {
		return err
	}

	switch {
	case index == m.header.firstPageWithFreeBlocks && !page.hasFreeBlocks():
		next, err := m.findPageWithFreeBlocks(index + 1)
		if err != nil {
			return err
		}
		return m.updateFirstPageWithFreeBlocks(next)
	case page.hasFreeBlocks() && index < m.header.firstPageWithFreeBlocks:
		return m.updateFirstPageWithFreeBlocks(index)
	default:
		return nil
	}
}

func (m *pageManager) updateFirstPageWithFreeBlocks(index int32) error {
	m.header.firstPageWithFreeBlocks = index
	buf := make([]byte, pagesHeaderSize)
	m.header.encode(buf)
	_, err := m.storage.WriteAt(buf, m.headerOffset)
	return err
}

// pageAccessor is a scoped handle borrowing a cached page image for
// reading or writing its blocks. It commits on an explicit Commit()
// call; Release panics if the accessor
// still has uncommitted changes, so a commit failure can never be
// swallowed silently.
type pageAccessor struct {
	manager *pageManager
	index   int32
	page    *pageImage
	dirty   bool
}

func (a *pageAccessor) Index() int32 {
	return a.index
}

func (a *pageAccessor) HasFreeBlocks() bool {
	return a.page.hasFreeBlocks()
}

func (a *pageAccessor) FirstFreeBlock() uint8 {
	return a.page.firstFreeBlock
}

func (a *pageAccessor) GetBlockData(index uint8, offset, length int) []byte {
	return a.page.getBlockData(index, offset, length)
}

func (a *pageAccessor) SetBlockData(index uint8, data []byte, offset int) {
	if a.page.setBlockData(index, data, offset) {
		a.dirty = true
	}
}

// Commit flushes changes made through this accessor to storage. It is a
// no-op if nothing changed.
func (a *pageAccessor) Commit() error {
	if !a.dirty {
		return nil
	}
	if err := a.manager.commitPage(a.index, a.page); err != nil {
		return err
	}
	a.dirty = false
	return nil
}

// Release ends the accessor's scope. Any write through the accessor
// must be committed before release; an accessor released while dirty
// indicates a programmer error in the caller (a missed Commit), which
// we surface loudly rather than risk silently dropping an I/O error.
func (a *pageAccessor) Release() {
	if a.dirty {
		panic("blockkv: page accessor released with uncommitted changes")
	}
}
