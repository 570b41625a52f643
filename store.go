package blockkv

import (
	"bytes"
	"fmt"
	"io"
)

// Store is the top-level key-value surface: a thin, linear-list
// consumer of the block allocator below it. Keys are matched by a
// linear scan over an append-only chain of records (see record.go);
// there is no index, no update and no delete in this version.
type Store struct {
	storage *fileStorage
	pages   *pageManager
	header  systemHeader
	keyBuf  []byte
}

// Open opens or creates the store at path. A non-existent file is
// created empty; reopening an existing file restores its state.
func Open(path string) (*Store, error) {
	storage, err := openFileStorage(path)
	if err != nil {
		return nil, err
	}

	size, err := storage.Size()
	if err != nil {
		return nil, err
	}

	pages, err := newPageManager(storage, systemHeaderSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		storage: storage,
		pages:   pages,
		keyBuf:  make([]byte, 32),
	}

	if size == 0 {
		s.header = defaultSystemHeader()
		if err := s.writeSystemHeader(); err != nil {
			return nil, err
		}
	}

	if err := s.readSystemHeader(); err != nil {
		return nil, err
	}

	return s, nil
}

// Close closes the underlying file. Set has already written its pages
// and the system header to the file; Close issues no fsync.
func (s *Store) Close() error {
	return s.storage.Close()
}

func (s *Store) readSystemHeader() error {
	buf := make([]byte, systemHeaderSize)
	if _, err := s.storage.ReadAt(buf, 0); err != nil {
		return err
	}
	s.header = decodeSystemHeader(buf)
	return nil
}

func (s *Store) writeSystemHeader() error {
	buf := make([]byte, systemHeaderSize)
	s.header.encode(buf)
	_, err := s.storage.WriteAt(buf, 0)
	return err
}

// Set associates key with value. A duplicate key is silently ignored:
// the first write for a given key wins.
func (s *Store) Set(key string, value []byte) error {
	keyBytes := []byte(key)

	if _, _, found, err := s.find(keyBytes); err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	} else if found {
		return nil
	}

	writer, err := newChainWriter(s.pages)
	if err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	}

	hdr := recordHeader{
		NextRecord: invalidAddress(),
		KeySize:    int32(len(keyBytes)),
		DataSize:   int32(len(value)),
	}
	var hdrBuf [recordHeaderSize]byte
	hdr.encode(hdrBuf[:])

	if _, err := writer.Write(hdrBuf[:]); err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	}
	if _, err := writer.Write(keyBytes); err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	}
	if _, err := writer.Write(value); err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	}

	newRecordAddress := writer.StartAddress()
	if err := writer.Close(); err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	}

	if !s.header.LastRecord.isInvalid() {
		if err := s.patchTailNext(s.header.LastRecord, newRecordAddress); err != nil {
			return fmt.Errorf("blockkv: set %q: %w", key, err)
		}
	}

	s.header.LastRecord = newRecordAddress
	if s.header.FirstRecord.isInvalid() {
		s.header.FirstRecord = newRecordAddress
	}

	if err := s.writeSystemHeader(); err != nil {
		return fmt.Errorf("blockkv: set %q: %w", key, err)
	}
	return nil
}

// patchTailNext rewrites the previous tail record's next_record field
// in place. A record header is always recordHeaderSize bytes, well
// within a single 64-byte block, so this is always a single-block
// write.
func (s *Store) patchTailNext(tail, next BlockAddress) error {
	page, err := s.pages.getPage(tail.PageIndex)
	if err != nil {
		return err
	}

	old := decodeRecordHeader(page.GetBlockData(tail.BlockIndex, 0, recordHeaderSize))
	updated := recordHeader{NextRecord: next, KeySize: old.KeySize, DataSize: old.DataSize}

	var buf [recordHeaderSize]byte
	updated.encode(buf[:])
	page.SetBlockData(tail.BlockIndex, buf[:], 0)

	if err := page.Commit(); err != nil {
		return err
	}
	page.Release()
	return nil
}

// Get returns the value stored for key, if present.
func (s *Store) Get(key string) ([]byte, bool, error) {
	hdr, addr, found, err := s.find([]byte(key))
	if err != nil {
		return nil, false, fmt.Errorf("blockkv: get %q: %w", key, err)
	}
	if !found {
		return nil, false, nil
	}

	reader, err := newChainReader(s.pages, addr)
	if err != nil {
		return nil, false, fmt.Errorf("blockkv: get %q: %w", key, err)
	}
	defer reader.Close()

	if err := reader.Skip(recordHeaderSize + int(hdr.KeySize)); err != nil {
		return nil, false, fmt.Errorf("blockkv: get %q: %w", key, err)
	}

	value := make([]byte, hdr.DataSize)
	if _, err := io.ReadFull(reader, value); err != nil {
		return nil, false, fmt.Errorf("blockkv: get %q: %w", key, err)
	}
	return value, true, nil
}

// GetInto copies the value stored for key into buf, reporting whether
// the key was present. It fails with ErrShortBuffer if buf is smaller
// than the stored value.
func (s *Store) GetInto(key string, buf []byte) (bool, error) {
	hdr, addr, found, err := s.find([]byte(key))
	if err != nil {
		return false, fmt.Errorf("blockkv: get_into %q: %w", key, err)
	}
	if !found {
		return false, nil
	}

	if len(buf) < int(hdr.DataSize) {
		return false, ErrShortBuffer
	}

	reader, err := newChainReader(s.pages, addr)
	if err != nil {
		return false, fmt.Errorf("blockkv: get_into %q: %w", key, err)
	}
	defer reader.Close()

	if err := reader.Skip(recordHeaderSize + int(hdr.KeySize)); err != nil {
		return false, fmt.Errorf("blockkv: get_into %q: %w", key, err)
	}
	if _, err := io.ReadFull(reader, buf[:hdr.DataSize]); err != nil {
		return false, fmt.Errorf("blockkv: get_into %q: %w", key, err)
	}
	return true, nil
}

// find walks the record list from the head, returning the header and
// address of the first record whose key matches keyBytes.
func (s *Store) find(keyBytes []byte) (recordHeader, BlockAddress, bool, error) {
	addr := s.header.FirstRecord
	for !addr.isInvalid() {
		reader, err := newChainReader(s.pages, addr)
		if err != nil {
			return recordHeader{}, invalidAddress(), false, err
		}

		var hdrBuf [recordHeaderSize]byte
		if _, err := io.ReadFull(reader, hdrBuf[:]); err != nil {
			reader.Close()
			return recordHeader{}, invalidAddress(), false, err
		}
		hdr := decodeRecordHeader(hdrBuf[:])

		if int(hdr.KeySize) == len(keyBytes) {
			if cap(s.keyBuf) < len(keyBytes) {
				s.keyBuf = make([]byte, len(keyBytes))
			}
			keySlice := s.keyBuf[:len(keyBytes)]
			if _, err := io.ReadFull(reader, keySlice); err != nil {
				reader.Close()
				return recordHeader{}, invalidAddress(), false, err
			}

			if bytes.Equal(keySlice, keyBytes) {
				reader.Close()
				return hdr, addr, true, nil
			}
		}

		reader.Close()
		addr = hdr.NextRecord
	}

	return recordHeader{}, invalidAddress(), false, nil
}
