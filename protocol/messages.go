package protocol

import (
	"fmt"

	"github.com/meigma/drive/feed"
)

// ProtocolVersion is sent in the handshake. Peers with a different version
// are rejected.
const ProtocolVersion = 1

// Handshake opens a session. ID is random per session and only used for
// logging.
type Handshake struct {
	Version int    `cbor:"version"`
	ID      []byte `cbor:"id"`
}

// Open binds a channel to a feed. Both sides must send the same discovery
// key on a channel or the session is aborted.
type Open struct {
	DiscoveryKey []byte `cbor:"discovery_key"`
}

// Range is a run of blocks [Start, Start+Length).
type Range struct {
	Start  uint64 `cbor:"start"`
	Length uint64 `cbor:"length"`
}

// Have announces blocks the sender holds. FeedLength is the sender's
// verified feed length.
type Have struct {
	Ranges     []Range `cbor:"ranges"`
	FeedLength uint64  `cbor:"feed_length,omitempty"`
}

// Request asks for one block and its proof.
type Request struct {
	Index uint64 `cbor:"index"`
}

// Cancel withdraws a request.
type Cancel struct {
	Index uint64 `cbor:"index"`
}

// Node is one hash tree node on the wire.
type Node struct {
	Index uint64 `cbor:"index"`
	Hash  []byte `cbor:"hash"`
	Size  uint64 `cbor:"size"`
}

// Data answers a Request. Value is zstd-compressed when Compressed is set.
type Data struct {
	Index      uint64 `cbor:"index"`
	Value      []byte `cbor:"value"`
	Compressed bool   `cbor:"compressed,omitempty"`
	Nodes      []Node `cbor:"nodes"`
	Roots      []Node `cbor:"roots"`
	Signature  []byte `cbor:"signature,omitempty"`
}

// Close tells the remote the sender is done with a channel.
type Close struct{}

func fromFeedRanges(ranges []feed.Range) []Range {
	out := make([]Range, len(ranges))
	for i, r := range ranges {
		out[i] = Range{Start: r.Start, Length: r.Length}
	}
	return out
}

func fromFeedNodes(nodes []feed.Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = Node{Index: n.Index, Hash: n.Hash[:], Size: n.Size}
	}
	return out
}

func toFeedNodes(nodes []Node) ([]feed.Node, error) {
	out := make([]feed.Node, len(nodes))
	for i, n := range nodes {
		if len(n.Hash) != len(feed.Hash{}) {
			return nil, fmt.Errorf("%w: node %d hash is %d bytes", ErrMalformedFrame, n.Index, len(n.Hash))
		}
		out[i] = feed.Node{Index: n.Index, Size: n.Size}
		copy(out[i].Hash[:], n.Hash)
	}
	return out, nil
}

// newData builds the Data message for a block and its proof.
func newData(index uint64, value []byte, proof *feed.Proof) Data {
	wire, compressed := compressValue(value)
	return Data{
		Index:      index,
		Value:      wire,
		Compressed: compressed,
		Nodes:      fromFeedNodes(proof.Nodes),
		Roots:      fromFeedNodes(proof.Roots),
		Signature:  proof.Signature,
	}
}

// block returns the block value and proof carried by d.
func (d Data) block() ([]byte, *feed.Proof, error) {
	value := d.Value
	if d.Compressed {
		var err error
		if value, err = decompressValue(d.Value); err != nil {
			return nil, nil, err
		}
	}
	nodes, err := toFeedNodes(d.Nodes)
	if err != nil {
		return nil, nil, err
	}
	roots, err := toFeedNodes(d.Roots)
	if err != nil {
		return nil, nil, err
	}
	return value, &feed.Proof{Index: d.Index, Nodes: nodes, Roots: roots, Signature: d.Signature}, nil
}
