package feed

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest.
type Hash [32]byte

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Node is one hash-tree node: a leaf for a single block or a parent over
// two complete subtrees. Size is the number of block bytes beneath it.
type Node struct {
	Index uint64
	Hash  Hash
	Size  uint64
}

// domainKey separates the hash domains so a leaf can never be passed off as
// a parent, a root list, or a discovery key. The bytes are ASCII names
// zero-padded to 32 bytes.
type domainKey [32]byte

var (
	leafDomain = domainKey{
		'd', 'r', 'i', 'v', 'e', '.', 'f', 'e', 'e', 'd', '.', 'l', 'e', 'a', 'f',
	}
	parentDomain = domainKey{
		'd', 'r', 'i', 'v', 'e', '.', 'f', 'e', 'e', 'd', '.', 'p', 'a', 'r', 'e', 'n', 't',
	}
	rootDomain = domainKey{
		'd', 'r', 'i', 'v', 'e', '.', 'f', 'e', 'e', 'd', '.', 'r', 'o', 'o', 't', 's',
	}
	discoveryDomain = domainKey{
		'd', 'r', 'i', 'v', 'e', '.', 'f', 'e', 'e', 'd', '.', 'd', 'i', 's', 'c', 'o', 'v', 'e', 'r', 'y',
	}
)

func newHasher(key domainKey) *blake3.Hasher {
	// NewKeyed only fails on a key that is not 32 bytes.
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("feed: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return h
}

func sum(h *blake3.Hasher) Hash {
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// leafNode hashes one block into the leaf for block index.
func leafNode(index uint64, data []byte) Node {
	h := newHasher(leafDomain)
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(data)))
	h.Write(size[:])
	h.Write(data)
	return Node{Index: 2 * index, Hash: sum(h), Size: uint64(len(data))}
}

// parentNode combines two sibling nodes, left first.
func parentNode(left, right Node) Node {
	h := newHasher(parentDomain)
	var size [8]byte
	total := left.Size + right.Size
	binary.BigEndian.PutUint64(size[:], total)
	h.Write(size[:])
	h.Write(left.Hash[:])
	h.Write(right.Hash[:])
	return Node{Index: treeParent(left.Index), Hash: sum(h), Size: total}
}

// treeHash commits to a full list of roots, and therefore to the feed
// length and every block beneath them. Signed feeds sign it; sealed feeds
// use it as their key.
func treeHash(roots []Node) Hash {
	h := newHasher(rootDomain)
	var buf [16]byte
	for _, r := range roots {
		h.Write(r.Hash[:])
		binary.BigEndian.PutUint64(buf[:8], r.Index)
		binary.BigEndian.PutUint64(buf[8:], r.Size)
		h.Write(buf[:])
	}
	return sum(h)
}

// DiscoveryKey derives the public identifier peers exchange to find a feed
// without revealing its key.
func DiscoveryKey(key []byte) Hash {
	h := newHasher(discoveryDomain)
	h.Write(key)
	return sum(h)
}
