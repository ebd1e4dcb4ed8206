// ABOUTME: Tests for the fixed-width file-record codec
// ABOUTME: Verifies round-trip encode/decode and size-limit rejection

package vfs

import "testing"

func TestRecordRoundTrip(t *testing.T) {
	cases := []Record{
		{},
		{IsRoot: true, IsActive: true, IsDirectory: true},
		{
			IsActive:      true,
			IsDirectory:   false,
			Contents:      42,
			Next:          7,
			Size:          1234,
			CreationTime:  1000,
			LastWriteTime: 2000,
			Name:          "hello.txt",
		},
		{IsActive: true, IsDirectory: true, Name: "a_name_with_emoji_😀"},
	}

	for _, want := range cases {
		buf, err := encodeRecord(want)
		if err != nil {
			t.Fatalf("encodeRecord(%+v): %v", want, err)
		}
		if len(buf) != RecordSize {
			t.Fatalf("encodeRecord produced %d bytes, want %d", len(buf), RecordSize)
		}
		got, err := decodeRecord(buf)
		if err != nil {
			t.Fatalf("decodeRecord: %v", err)
		}
		if got != want {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
		}
	}
}

func TestRecordNameTooBig(t *testing.T) {
	name := make([]byte, MaxNameLength+1)
	for i := range name {
		name[i] = 'a'
	}
	_, err := encodeRecord(Record{IsActive: true, Name: string(name)})
	if err != ErrFileNameTooBig {
		t.Fatalf("got %v, want ErrFileNameTooBig", err)
	}
}

func TestRecordSizeMismatch(t *testing.T) {
	_, err := decodeRecord(make([]byte, RecordSize-1))
	if err != ErrRecordSizeMismatch {
		t.Fatalf("got %v, want ErrRecordSizeMismatch", err)
	}
}
