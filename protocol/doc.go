// Package protocol replicates a metadata feed and a content feed over one
// duplex byte stream.
//
// Every frame carries a channel number, so the two feeds interleave on a
// single connection:
//
//	[4-byte big-endian length][1-byte channel][1-byte type][CBOR body]
//
// The length counts the channel byte, the type byte and the body. Channel 0
// carries the metadata feed and channel 1 the content feed on both ends.
//
// A Session is symmetric. Each side announces the blocks it holds with Have,
// asks for missing blocks with Request, and answers with Data carrying the
// block and the proof that verifies it against the feed key. Feeds can be
// attached after the session starts; frames for an unattached channel are
// held until its feed arrives, which lets a clone learn the content feed key
// from the metadata feed while replication is already running.
package protocol
