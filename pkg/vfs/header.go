package vfs

import "encoding/binary"

// headerSize is the number of meaningful bytes in the header page: reserved
// sentinel (8) + page size (8) + file-table page (8) + file-table page
// count (8) = 32. The rest of HeaderPage is unused.
const headerSize = 8 + 8 + 8 + 8

// header is the decoded form of page 0 (§3).
type header struct {
	PageSize           uint64
	FileTablePage      uint64
	FileTablePageCount uint64
}

func readHeader(store *pageStore) (header, error) {
	var buf [headerSize]byte
	if err := store.readAt(pageOffset(HeaderPage), buf[:]); err != nil {
		return header{}, err
	}
	return header{
		PageSize:           binary.LittleEndian.Uint64(buf[8:16]),
		FileTablePage:      binary.LittleEndian.Uint64(buf[16:24]),
		FileTablePageCount: binary.LittleEndian.Uint64(buf[24:32]),
	}, nil
}

// writeHeader writes the full header page, including the reserved/null
// sentinel field (always zero). Used only at store initialization; every
// later update to the file-table location goes through the journal instead
// (writeHeaderTableLocation).
func writeHeader(store *pageStore, h header) error {
	var buf [headerSize]byte
	// buf[0:8] reserved, left zero.
	binary.LittleEndian.PutUint64(buf[8:16], h.PageSize)
	binary.LittleEndian.PutUint64(buf[16:24], h.FileTablePage)
	binary.LittleEndian.PutUint64(buf[24:32], h.FileTablePageCount)
	return store.writeAt(pageOffset(HeaderPage), buf[:])
}

// writeHeaderTableLocation overwrites only the file-table page/count fields,
// leaving the reserved sentinel and page-size fields untouched. This is what
// the journal's apply step calls; it is a blind, idempotent overwrite at a
// deterministic offset, safe to replay.
func writeHeaderTableLocation(store *pageStore, tablePage, tableCount uint64) error {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], tablePage)
	binary.LittleEndian.PutUint64(buf[8:16], tableCount)
	return store.writeAt(pageOffset(HeaderPage)+16, buf[:])
}
