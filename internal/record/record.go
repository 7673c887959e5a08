// Package record encodes and decodes metadata feed blocks.
//
// Every block of a metadata feed is a FlatBuffers Record (schema/record.fbs)
// tagged with the file identifier "DRV1". Block 0 is a Header, entries
// follow, and a finalized non-live archive ends with a Seal.
//
// Encoding is deterministic: the builder is driven in a fixed order and no
// map iteration is involved, so equal values always produce equal bytes.
package record

import (
	"fmt"
	"io/fs"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/drive/internal/drivetype"
	"github.com/meigma/drive/internal/fb"
)

// Version is the record format version written into headers.
const Version = 1

// minRecordSize covers the root offset and the file identifier.
const minRecordSize = flatbuffers.SizeUOffsetT + len(fb.RecordIdentifier)

// Kind identifies which payload a Record carries.
type Kind uint8

const (
	KindEntry Kind = iota + 1
	KindHeader
	KindSeal
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindHeader:
		return "header"
	case KindSeal:
		return "seal"
	default:
		return "unknown"
	}
}

// Header is the first record of every metadata feed.
type Header struct {
	Version uint32
	Live    bool
	// ContentKey is the content feed key. Live archives know it up front;
	// non-live archives publish it in the Seal instead.
	ContentKey []byte
}

// Seal is the last record of a finalized non-live archive. It names the
// sealed content feed and its final size.
type Seal struct {
	ContentKey []byte
	Length     uint64
	Bytes      uint64
}

// Record is one decoded metadata block. Only the field matching Kind is set.
type Record struct {
	Kind   Kind
	Entry  drivetype.Entry
	Header Header
	Seal   Seal
}

// EncodeEntry serializes e as an entry record. A file entry without Content
// is written with an empty range; a directory never carries one.
func EncodeEntry(e drivetype.Entry) []byte {
	b := flatbuffers.NewBuilder(256)

	name := b.CreateString(e.Name)
	var content flatbuffers.UOffsetT
	if e.Type != drivetype.TypeDirectory {
		var c drivetype.Content
		if e.Content != nil {
			c = *e.Content
		}
		fb.ContentStart(b)
		fb.ContentAddBlockOffset(b, c.BlockOffset)
		fb.ContentAddBytesOffset(b, c.BytesOffset)
		fb.ContentAddBlocks(b, c.Blocks)
		fb.ContentAddBytes(b, c.Bytes)
		content = fb.ContentEnd(b)
	}

	fb.EntryStart(b)
	fb.EntryAddName(b, name)
	fb.EntryAddType(b, entryTypeToFB(e.Type))
	fb.EntryAddMode(b, uint32(e.Mode))
	fb.EntryAddUid(b, e.UID)
	fb.EntryAddGid(b, e.GID)
	fb.EntryAddMtimeSec(b, e.Mtime.Unix())
	fb.EntryAddMtimeNsec(b, uint32(e.Mtime.Nanosecond())) //nolint:gosec // always below 1e9
	fb.EntryAddCtimeSec(b, e.Ctime.Unix())
	fb.EntryAddCtimeNsec(b, uint32(e.Ctime.Nanosecond())) //nolint:gosec // always below 1e9
	if content != 0 {
		fb.EntryAddContent(b, content)
	}
	entry := fb.EntryEnd(b)

	return finish(b, fb.RecordKindEntry, func() { fb.RecordAddEntry(b, entry) })
}

// EncodeHeader serializes h as a header record. A zero Version is written
// as the current Version.
func EncodeHeader(h Header) []byte {
	b := flatbuffers.NewBuilder(128)

	var key flatbuffers.UOffsetT
	if len(h.ContentKey) > 0 {
		key = b.CreateByteVector(h.ContentKey)
	}
	version := h.Version
	if version == 0 {
		version = Version
	}
	fb.HeaderStart(b)
	fb.HeaderAddVersion(b, version)
	fb.HeaderAddLive(b, h.Live)
	if key != 0 {
		fb.HeaderAddContentKey(b, key)
	}
	header := fb.HeaderEnd(b)

	return finish(b, fb.RecordKindHeader, func() { fb.RecordAddHeader(b, header) })
}

// EncodeSeal serializes s as a seal record.
func EncodeSeal(s Seal) []byte {
	b := flatbuffers.NewBuilder(128)

	key := b.CreateByteVector(s.ContentKey)
	fb.SealStart(b)
	fb.SealAddContentKey(b, key)
	fb.SealAddContentLength(b, s.Length)
	fb.SealAddContentBytes(b, s.Bytes)
	seal := fb.SealEnd(b)

	return finish(b, fb.RecordKindSeal, func() { fb.RecordAddSeal(b, seal) })
}

func finish(b *flatbuffers.Builder, kind fb.RecordKind, add func()) []byte {
	fb.RecordStart(b)
	fb.RecordAddKind(b, kind)
	add()
	fb.FinishRecordBuffer(b, fb.RecordEnd(b))
	return b.FinishedBytes()
}

// Decode parses one metadata block. Any malformed input returns an error
// wrapping drivetype.ErrCorruptRecord.
func Decode(data []byte) (rec Record, err error) {
	if len(data) < minRecordSize {
		return Record{}, corrupt("short buffer (%d bytes)", len(data))
	}
	if !fb.RecordBufferHasIdentifier(data) {
		return Record{}, corrupt("bad file identifier")
	}

	// Out-of-range offsets in a crafted buffer make the FlatBuffers
	// accessors panic.
	defer func() {
		if r := recover(); r != nil {
			rec = Record{}
			err = corrupt("malformed buffer: %v", r)
		}
	}()

	root := fb.GetRootAsRecord(data, 0)
	switch root.Kind() {
	case fb.RecordKindEntry:
		e := root.Entry(nil)
		if e == nil {
			return Record{}, corrupt("entry record without entry")
		}
		entry, err := decodeEntry(e)
		if err != nil {
			return Record{}, err
		}
		return Record{Kind: KindEntry, Entry: entry}, nil
	case fb.RecordKindHeader:
		h := root.Header(nil)
		if h == nil {
			return Record{}, corrupt("header record without header")
		}
		return Record{Kind: KindHeader, Header: Header{
			Version:    h.Version(),
			Live:       h.Live(),
			ContentKey: cloneBytes(h.ContentKeyBytes()),
		}}, nil
	case fb.RecordKindSeal:
		s := root.Seal(nil)
		if s == nil {
			return Record{}, corrupt("seal record without seal")
		}
		return Record{Kind: KindSeal, Seal: Seal{
			ContentKey: cloneBytes(s.ContentKeyBytes()),
			Length:     s.ContentLength(),
			Bytes:      s.ContentBytes(),
		}}, nil
	default:
		return Record{}, corrupt("unknown record kind %s", root.Kind())
	}
}

// DecodeEntry parses a block that must hold an entry record.
func DecodeEntry(data []byte) (drivetype.Entry, error) {
	rec, err := Decode(data)
	if err != nil {
		return drivetype.Entry{}, err
	}
	if rec.Kind != KindEntry {
		return drivetype.Entry{}, corrupt("expected entry record, got %s", rec.Kind)
	}
	return rec.Entry, nil
}

func decodeEntry(e *fb.Entry) (drivetype.Entry, error) {
	name := e.Name()
	if len(name) == 0 {
		return drivetype.Entry{}, corrupt("entry without name")
	}
	typ, ok := entryTypeFromFB(e.Type())
	if !ok {
		return drivetype.Entry{}, corrupt("entry %q has unknown type %s", name, e.Type())
	}

	entry := drivetype.Entry{
		Name: string(name),
		Type: typ,
		Mode: fs.FileMode(e.Mode()),
		UID:  e.Uid(),
		GID:  e.Gid(),
	}
	var err error
	if entry.Mtime, err = fromUnix(e.MtimeSec(), e.MtimeNsec()); err != nil {
		return drivetype.Entry{}, corrupt("entry %q mtime: %v", name, err)
	}
	if entry.Ctime, err = fromUnix(e.CtimeSec(), e.CtimeNsec()); err != nil {
		return drivetype.Entry{}, corrupt("entry %q ctime: %v", name, err)
	}

	c := e.Content(nil)
	switch {
	case typ == drivetype.TypeDirectory && c != nil:
		return drivetype.Entry{}, corrupt("directory %q has content", name)
	case typ == drivetype.TypeFile && c == nil:
		return drivetype.Entry{}, corrupt("file %q has no content", name)
	case c != nil:
		entry.Content = &drivetype.Content{
			BlockOffset: c.BlockOffset(),
			BytesOffset: c.BytesOffset(),
			Blocks:      c.Blocks(),
			Bytes:       c.Bytes(),
		}
	}
	return entry, nil
}

func entryTypeToFB(t drivetype.EntryType) fb.EntryType {
	switch t {
	case drivetype.TypeFile:
		return fb.EntryTypeFile
	case drivetype.TypeDirectory:
		return fb.EntryTypeDirectory
	default:
		return fb.EntryTypeUnknown
	}
}

func entryTypeFromFB(t fb.EntryType) (drivetype.EntryType, bool) {
	switch t {
	case fb.EntryTypeFile:
		return drivetype.TypeFile, true
	case fb.EntryTypeDirectory:
		return drivetype.TypeDirectory, true
	default:
		return 0, false
	}
}

// fromUnix rebuilds a time stored as Unix seconds and nanoseconds. The zero
// time.Time is stored like any other instant and decodes back to it.
func fromUnix(sec int64, nsec uint32) (time.Time, error) {
	if nsec >= 1e9 {
		return time.Time{}, fmt.Errorf("nanoseconds %d out of range", nsec)
	}
	return time.Unix(sec, int64(nsec)).UTC(), nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", drivetype.ErrCorruptRecord, fmt.Sprintf(format, args...))
}
