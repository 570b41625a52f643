package blockkv

import "testing"

func newTestPageManager(t *testing.T) *pageManager {
	t.Helper()
	storage := &memoryStorage{}
	pm, err := newPageManager(storage, systemHeaderSize)
	if err != nil {
		t.Fatalf("newPageManager: %v", err)
	}
	return pm
}

func TestGetPageBeyondEOFIsFreshAndFree(t *testing.T) {
	pm := newTestPageManager(t)

	page, err := pm.getPage(0)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	if !page.HasFreeBlocks() {
		t.Fatal("a freshly materialized page should have free blocks")
	}
	if page.FirstFreeBlock() != 0 {
		t.Fatalf("FirstFreeBlock() = %d, want 0", page.FirstFreeBlock())
	}
}

func TestGetPageCachesSameImage(t *testing.T) {
	pm := newTestPageManager(t)

	a, err := pm.getPage(3)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	a.SetBlockData(0, []byte("hi"), 0)
	if err := a.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	a.Release()

	b, err := pm.getPage(3)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	defer b.Release()

	got := b.GetBlockData(0, 0, 2)
	if string(got) != "hi" {
		t.Fatalf("got %q, want %q (two accessors must share one cached image)", got, "hi")
	}
}

func TestCommitPersistsAcrossPageManagers(t *testing.T) {
	storage := &memoryStorage{}
	pm, err := newPageManager(storage, systemHeaderSize)
	if err != nil {
		t.Fatalf("newPageManager: %v", err)
	}

	page, err := pm.getPage(0)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	page.SetBlockData(1, []byte("persisted"), 0)
	if err := page.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	page.Release()

	pm2, err := newPageManager(storage, systemHeaderSize)
	if err != nil {
		t.Fatalf("newPageManager (reopen): %v", err)
	}
	reopened, err := pm2.getPage(0)
	if err != nil {
		t.Fatalf("getPage (reopen): %v", err)
	}
	defer reopened.Release()

	got := reopened.GetBlockData(1, 0, len("persisted"))
	if string(got) != "persisted" {
		t.Fatalf("got %q, want %q", got, "persisted")
	}
}

func TestGetPageWithFreeBlocksSkipsFullPages(t *testing.T) {
	pm := newTestPageManager(t)

	page0, err := pm.getPage(0)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	for i := uint8(0); i < PageBlockCount; i++ {
		page0.SetBlockData(i, []byte{1}, 0)
	}
	if err := page0.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	page0.Release()

	next, err := pm.getPageWithFreeBlocks(0)
	if err != nil {
		t.Fatalf("getPageWithFreeBlocks: %v", err)
	}
	defer next.Release()
	if next.Index() != 1 {
		t.Fatalf("Index() = %d, want 1 (page 0 is full)", next.Index())
	}
}

func TestFindPageWithFreeBlocksProbesUncachedPages(t *testing.T) {
	pm := newTestPageManager(t)

	// Fill and commit page 0 so it's full, then drop it from the cache's
	// perspective by starting a fresh page manager over the same
	// storage: findPageWithFreeBlocks must then probe the on-disk byte
	// rather than require the page to be loaded.
	page0, err := pm.getPage(0)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	for i := uint8(0); i < PageBlockCount; i++ {
		page0.SetBlockData(i, []byte{1}, 0)
	}
	if err := page0.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	page0.Release()

	pm2, err := newPageManager(pm.storage, systemHeaderSize)
	if err != nil {
		t.Fatalf("newPageManager: %v", err)
	}

	index, err := pm2.findPageWithFreeBlocks(0)
	if err != nil {
		t.Fatalf("findPageWithFreeBlocks: %v", err)
	}
	if index != 1 {
		t.Fatalf("index = %d, want 1", index)
	}
}

func TestFindPageWithFreeBlocksExhaustedReturnsErrNoFreeSpace(t *testing.T) {
	pm := newTestPageManager(t)

	index, err := pm.findPageWithFreeBlocks(MaxPageCount)
	if err != ErrNoFreeSpace {
		t.Fatalf("findPageWithFreeBlocks at MaxPageCount: got (%d, %v), want ErrNoFreeSpace", index, err)
	}
}

func TestReleaseDirtyAccessorPanics(t *testing.T) {
	pm := newTestPageManager(t)
	page, err := pm.getPage(0)
	if err != nil {
		t.Fatalf("getPage: %v", err)
	}
	page.SetBlockData(0, []byte("x"), 0)

	defer func() {
		if recover() == nil {
			t.Fatal("expected Release to panic on an uncommitted dirty accessor")
		}
	}()
	page.Release()
}
