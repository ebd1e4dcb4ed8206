package vfs

import "encoding/binary"

const (
	flagIsRoot      = 1 << 0
	flagIsActive    = 1 << 1
	flagIsDirectory = 1 << 2
)

// Record is the in-memory form of a 169-byte file-table entry (C3). Contents
// means different things depending on IsDirectory: for a file it is the
// first page of its content run; for a directory it is the file-table byte
// offset of its first child (0 meaning "no children yet").
type Record struct {
	IsRoot      bool
	IsActive    bool
	IsDirectory bool

	Contents uint64
	Next     uint64
	Size     uint64

	CreationTime  uint64
	LastWriteTime uint64

	Name string
}

// encodeRecord serializes r into a fresh RecordSize-byte block, little
// endian throughout, matching the teacher's fixed-header binary.LittleEndian
// codec style (pkg/wal/entry.go).
func encodeRecord(r Record) ([]byte, error) {
	nameBytes := []byte(r.Name)
	if len(nameBytes) > MaxNameLength {
		return nil, ErrFileNameTooBig
	}

	buf := make([]byte, RecordSize)

	var flags byte
	if r.IsRoot {
		flags |= flagIsRoot
	}
	if r.IsActive {
		flags |= flagIsActive
	}
	if r.IsDirectory {
		flags |= flagIsDirectory
	}
	buf[0] = flags

	binary.LittleEndian.PutUint64(buf[1:9], r.Contents)
	binary.LittleEndian.PutUint64(buf[9:17], r.Next)
	binary.LittleEndian.PutUint64(buf[17:25], r.Size)
	binary.LittleEndian.PutUint64(buf[25:33], r.CreationTime)
	binary.LittleEndian.PutUint64(buf[33:41], r.LastWriteTime)

	copy(buf[41:41+MaxNameLength], nameBytes)
	// Remaining name bytes are already zero (NUL) from make().

	return buf, nil
}

// decodeRecord is the left-inverse of encodeRecord for any well-formed
// record: decode(encode(r)) == r whenever len(r.Name) <= MaxNameLength.
func decodeRecord(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, ErrRecordSizeMismatch
	}

	flags := buf[0]
	r := Record{
		IsRoot:      flags&flagIsRoot != 0,
		IsActive:    flags&flagIsActive != 0,
		IsDirectory: flags&flagIsDirectory != 0,

		Contents:      binary.LittleEndian.Uint64(buf[1:9]),
		Next:          binary.LittleEndian.Uint64(buf[9:17]),
		Size:          binary.LittleEndian.Uint64(buf[17:25]),
		CreationTime:  binary.LittleEndian.Uint64(buf[25:33]),
		LastWriteTime: binary.LittleEndian.Uint64(buf[33:41]),
	}

	nameField := buf[41 : 41+MaxNameLength]
	nul := len(nameField)
	for i, c := range nameField {
		if c == 0 {
			nul = i
			break
		}
	}
	r.Name = string(nameField[:nul])

	return r, nil
}

// zeroRecord is what FileTable.Read returns for a slot past the end of the
// table run; its IsActive bit is false, which every caller treats as "end of
// list".
func zeroRecord() Record {
	return Record{}
}
