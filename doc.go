//go:generate flatc --go --go-namespace fb -o internal schema/record.fbs

// Package drive implements versioned, content-addressed archives of
// directory trees that can be verified and partially replicated between
// untrusted peers.
//
// An [Archive] is a pair of append-only feeds: a metadata feed holding one
// FlatBuffers record per file or directory, and a content feed holding file
// bytes in fixed-size blocks. Every entry names the block and byte range of
// its content, so a reader can fetch a single file without the rest of the
// archive and prove the bytes it holds are authentic.
//
// # Quick Start
//
// Create an archive and add files:
//
//	d := drive.New()
//	archive, err := d.CreateArchive(drive.WithFile(files))
//	if err != nil {
//	    return err
//	}
//	if err := archive.Append(ctx, "hello.txt"); err != nil {
//	    return err
//	}
//
// Open a replica elsewhere from the archive key and replicate:
//
//	clone, err := d.OpenArchive(archive.Key())
//	if err != nil {
//	    return err
//	}
//	protocol.Pipe(archive.Replicate(), clone.Replicate())
//	entries, err := clone.List(ctx)
//
// # Live and finalized archives
//
// Archives are live by default: both feeds are signed and can grow forever.
// An archive created with WithLive(false) is sealed by [Archive.Finalize];
// its key then becomes the hash of its contents and no more entries are
// accepted.
package drive
