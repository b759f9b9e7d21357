package selector

import "math/bits"

// Bitset is a word-sparse set of non-negative int64 IDs, packed 64 per
// word. The zero value is not usable; call NewBitset or FromWords.
type Bitset struct {
	words map[int64]uint64
	count int
}

// NewBitset creates an empty set.
func NewBitset() *Bitset {
	return &Bitset{words: make(map[int64]uint64)}
}

// FromWords builds a set from persisted word rows.
func FromWords(words map[int64]int64) *Bitset {
	b := NewBitset()
	for idx, raw := range words {
		w := uint64(raw)
		if w == 0 {
			continue
		}
		b.words[idx] = w
		b.count += bits.OnesCount64(w)
	}
	return b
}

// Contains reports whether id is in the set.
func (b *Bitset) Contains(id int64) bool {
	if id < 0 {
		return false
	}
	return b.words[id/64]&(1<<uint(id%64)) != 0
}

// Add inserts id and reports whether it was newly added.
func (b *Bitset) Add(id int64) bool {
	if id < 0 {
		return false
	}
	word, bit := id/64, uint64(1)<<uint(id%64)
	if b.words[word]&bit != 0 {
		return false
	}
	b.words[word] |= bit
	b.count++
	return true
}

// Len returns the number of IDs in the set.
func (b *Bitset) Len() int {
	return b.count
}

// Words returns the packed representation for persistence.
func (b *Bitset) Words() map[int64]int64 {
	out := make(map[int64]int64, len(b.words))
	for idx, bits := range b.words {
		out[idx] = int64(bits)
	}
	return out
}
