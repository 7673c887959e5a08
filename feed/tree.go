package feed

import "math/bits"

// Tree nodes are addressed with flat in-order indices: leaves (blocks) sit
// at even indices, block b at 2b, and a parent sits between its children.
// A node at depth d and offset o has index (o << (d+1)) | (1<<d - 1).

func treeIndex(depth, offset uint64) uint64 {
	return (offset << (depth + 1)) | ((1 << depth) - 1)
}

func treeDepth(i uint64) uint64 {
	return uint64(bits.TrailingZeros64(^i))
}

func treeOffset(i uint64) uint64 {
	return i >> (treeDepth(i) + 1)
}

func treeParent(i uint64) uint64 {
	return treeIndex(treeDepth(i)+1, treeOffset(i)>>1)
}

func treeSibling(i uint64) uint64 {
	return treeIndex(treeDepth(i), treeOffset(i)^1)
}

// treeBlocks returns the half-open block range [start, end) covered by i.
func treeBlocks(i uint64) (start, end uint64) {
	d := treeDepth(i)
	o := treeOffset(i)
	return o << d, (o + 1) << d
}

// fullRoots returns the indices of the roots of the complete subtrees that
// together cover blocks [0, length), left to right.
func fullRoots(length uint64) []uint64 {
	var roots []uint64
	var offset uint64
	for length > 0 {
		factor := uint64(1) << (63 - bits.LeadingZeros64(length))
		roots = append(roots, offset+factor-1)
		offset += 2 * factor
		length -= factor
	}
	return roots
}
