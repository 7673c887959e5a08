package feed

import (
	"crypto/ed25519"
	"fmt"
)

// maxProofNodes bounds the sibling path; a tree over 2^64 blocks is 64 deep.
const maxProofNodes = 64

// Proof authenticates one block: the sibling path from its leaf up to the
// covering root, every root of the tree at the prover's length, and, for
// signed feeds, a signature over the tree hash. Sealed feeds carry no
// signature; their key is the tree hash itself.
type Proof struct {
	Index     uint64
	Nodes     []Node
	Roots     []Node
	Signature []byte
}

// verified is the result of checking a block against a proof.
type verified struct {
	length     uint64
	byteLength uint64
	byteOffset uint64
	sealed     bool
	nodes      []Node // leaf, siblings, and every recomputed parent
}

// verifyProof checks data as block p.Index against key.
func verifyProof(key []byte, data []byte, p *Proof) (*verified, error) {
	if len(p.Roots) == 0 {
		return nil, fmt.Errorf("%w: proof has no roots", ErrVerification)
	}
	if len(p.Nodes) > maxProofNodes {
		return nil, fmt.Errorf("%w: proof too deep", ErrVerification)
	}

	_, length := treeBlocks(p.Roots[len(p.Roots)-1].Index)
	if length > MaxLength {
		return nil, fmt.Errorf("%w: length %d exceeds %d blocks", ErrVerification, length, MaxLength)
	}
	want := fullRoots(length)
	if len(want) != len(p.Roots) {
		return nil, fmt.Errorf("%w: malformed roots", ErrVerification)
	}
	var byteLength uint64
	for i, r := range p.Roots {
		if r.Index != want[i] {
			return nil, fmt.Errorf("%w: malformed roots", ErrVerification)
		}
		byteLength += r.Size
	}
	if p.Index >= length {
		return nil, fmt.Errorf("%w: block %d beyond length %d", ErrVerification, p.Index, length)
	}

	tree := treeHash(p.Roots)
	sealed := false
	if len(p.Signature) > 0 {
		if len(key) != ed25519.PublicKeySize || !ed25519.Verify(ed25519.PublicKey(key), tree[:], p.Signature) {
			return nil, fmt.Errorf("%w: bad signature", ErrVerification)
		}
	} else {
		if string(tree[:]) != string(key) {
			return nil, fmt.Errorf("%w: tree hash does not match key", ErrVerification)
		}
		sealed = true
	}

	cur := leafNode(p.Index, data)
	nodes := make([]Node, 0, 2*len(p.Nodes)+1)
	nodes = append(nodes, cur)
	var offset uint64
	for _, n := range p.Nodes {
		if n.Index != treeSibling(cur.Index) {
			return nil, fmt.Errorf("%w: unexpected node %d", ErrVerification, n.Index)
		}
		nodes = append(nodes, n)
		if n.Index < cur.Index {
			offset += n.Size
			cur = parentNode(n, cur)
		} else {
			cur = parentNode(cur, n)
		}
		nodes = append(nodes, cur)
	}

	matched := false
	for _, r := range p.Roots {
		if r.Index == cur.Index {
			if r.Hash != cur.Hash || r.Size != cur.Size {
				return nil, fmt.Errorf("%w: root mismatch", ErrVerification)
			}
			matched = true
			break
		}
		offset += r.Size
	}
	if !matched {
		return nil, fmt.Errorf("%w: path does not reach a root", ErrVerification)
	}

	return &verified{
		length:     length,
		byteLength: byteLength,
		byteOffset: offset,
		sealed:     sealed,
		nodes:      append(nodes, p.Roots...),
	}, nil
}
