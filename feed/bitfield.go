package feed

import "math/bits"

// Bitfield records which block indices are present. The zero value is empty.
// Bitfield is not safe for concurrent use.
type Bitfield struct {
	words []uint64
}

// Range is a run of consecutive set bits [Start, Start+Length).
type Range struct {
	Start  uint64
	Length uint64
}

// Get reports whether bit i is set.
func (b *Bitfield) Get(i uint64) bool {
	w := i / 64
	if w >= uint64(len(b.words)) {
		return false
	}
	return b.words[w]&(1<<(i%64)) != 0
}

// Set sets bit i.
func (b *Bitfield) Set(i uint64) {
	b.grow(i / 64)
	b.words[i/64] |= 1 << (i % 64)
}

// SetRange sets bits [start, start+length).
func (b *Bitfield) SetRange(start, length uint64) {
	if length == 0 {
		return
	}
	end := start + length
	b.grow((end - 1) / 64)
	for i := start; i < end; {
		w := i / 64
		b.words[w] |= wordMask(i%64, min(end-w*64, 64))
		i = (w + 1) * 64
	}
}

// grow makes word w addressable.
func (b *Bitfield) grow(w uint64) {
	if w < uint64(len(b.words)) {
		return
	}
	grown := make([]uint64, w+1, 2*(w+1))
	copy(grown, b.words)
	b.words = grown
}

// wordMask selects bits [lo, hi) of a word.
func wordMask(lo, hi uint64) uint64 {
	mask := ^uint64(0) << lo
	if hi < 64 {
		mask &= (1 << hi) - 1
	}
	return mask
}

// Count returns the number of set bits in [start, end).
func (b *Bitfield) Count(start, end uint64) uint64 {
	var n uint64
	for i := start; i < end; {
		w := i / 64
		if w >= uint64(len(b.words)) {
			break
		}
		word := b.words[w]
		mask := wordMask(i%64, min(end-w*64, 64))
		n += uint64(bits.OnesCount64(word & mask))
		i = (w + 1) * 64
	}
	return n
}

// Ranges returns the runs of set bits below end, in order. Empty and full
// words are skipped whole.
func (b *Bitfield) Ranges(end uint64) []Range {
	var out []Range
	inRun := false
	extend := func(start, n uint64) {
		if inRun {
			out[len(out)-1].Length += n
			return
		}
		out = append(out, Range{Start: start, Length: n})
		inRun = true
	}
	limit := min(end, uint64(len(b.words))*64)
	for i := uint64(0); i < limit; {
		w := i / 64
		hi := min(limit-w*64, 64)
		word := b.words[w] & wordMask(0, hi)
		switch {
		case word == 0:
			inRun = false
			i = (w + 1) * 64
		case hi == 64 && word == ^uint64(0):
			extend(i, 64)
			i = (w + 1) * 64
		default:
			for bit := uint64(0); bit < hi; bit++ {
				if word&(1<<bit) != 0 {
					extend(w*64+bit, 1)
				} else {
					inRun = false
				}
			}
			i = (w + 1) * 64
		}
	}
	return out
}
