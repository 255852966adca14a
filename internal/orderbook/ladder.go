package orderbook

import (
	"math"
	"math/bits"

	"github.com/alanyoungcy/triarb/internal/domain"
)

const (
	pageBits  = 12
	pageSize  = 1 << pageBits
	pageMask  = pageSize - 1
	pageWords = pageSize / 64
)

// page holds pageSize consecutive levels. occ has one bit per occupied level.
type page struct {
	qty   [pageSize]domain.Quantity
	occ   [pageWords]uint64
	count int
}

// ladder is one side of a book: a dense array of levels indexed by
// price - MinPrice, split into lazily allocated pages. summary has one bit per
// page that holds at least one occupied level, so a rescan skips empty pages
// a word at a time.
type ladder struct {
	pages   []*page
	summary []uint64
	levels  int64
	count   int
	total   sum128
}

// sum128 is an exact running total of non-negative quantities. A side can
// hold 2^32 levels of up to 2^63-1 each, which does not fit in an int64.
type sum128 struct {
	hi, lo uint64
}

func (s *sum128) add(q domain.Quantity) {
	var carry uint64
	s.lo, carry = bits.Add64(s.lo, uint64(q), 0)
	s.hi += carry
}

func (s *sum128) sub(q domain.Quantity) {
	var borrow uint64
	s.lo, borrow = bits.Sub64(s.lo, uint64(q), 0)
	s.hi -= borrow
}

// quantity returns the total, saturating at math.MaxInt64.
func (s sum128) quantity() domain.Quantity {
	if s.hi != 0 || s.lo > math.MaxInt64 {
		return math.MaxInt64
	}
	return domain.Quantity(s.lo)
}

func newLadder(levels int64) ladder {
	npages := (levels + pageSize - 1) >> pageBits
	return ladder{
		pages:   make([]*page, npages),
		summary: make([]uint64, (npages+63)>>6),
		levels:  levels,
	}
}

func (l *ladder) get(i int64) domain.Quantity {
	p := l.pages[i>>pageBits]
	if p == nil {
		return 0
	}
	return p.qty[i&pageMask]
}

// set stores q (> 0) at i and returns the previous quantity.
func (l *ladder) set(i int64, q domain.Quantity) domain.Quantity {
	pi := i >> pageBits
	p := l.pages[pi]
	if p == nil {
		p = new(page)
		l.pages[pi] = p
	}
	j := i & pageMask
	prev := p.qty[j]
	p.qty[j] = q
	l.total.add(q)
	l.total.sub(prev)
	if prev == 0 {
		p.occ[j>>6] |= 1 << (j & 63)
		p.count++
		l.count++
		if p.count == 1 {
			l.summary[pi>>6] |= 1 << (pi & 63)
		}
	}
	return prev
}

// clear empties level i and returns the previous quantity.
func (l *ladder) clear(i int64) domain.Quantity {
	pi := i >> pageBits
	p := l.pages[pi]
	if p == nil {
		return 0
	}
	j := i & pageMask
	prev := p.qty[j]
	if prev == 0 {
		return 0
	}
	p.qty[j] = 0
	p.occ[j>>6] &^= 1 << (j & 63)
	p.count--
	l.count--
	l.total.sub(prev)
	if p.count == 0 {
		l.summary[pi>>6] &^= 1 << (pi & 63)
	}
	return prev
}

// reset clears every level but keeps the pages for reuse.
func (l *ladder) reset() {
	for w, word := range l.summary {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			word &= word - 1
			p := l.pages[w<<6+b]
			for k, occ := range p.occ {
				for occ != 0 {
					ob := bits.TrailingZeros64(occ)
					occ &= occ - 1
					p.qty[k<<6+ob] = 0
				}
				p.occ[k] = 0
			}
			p.count = 0
		}
		l.summary[w] = 0
	}
	l.count = 0
	l.total = sum128{}
}

// highestAtOrBelow returns the highest occupied index <= i.
func (l *ladder) highestAtOrBelow(i int64) (int64, bool) {
	if i < 0 || l.count == 0 {
		return 0, false
	}
	if i >= l.levels {
		i = l.levels - 1
	}
	pi := i >> pageBits
	if p := l.pages[pi]; p != nil && p.count > 0 {
		if j, ok := highestSet(p.occ[:], int(i&pageMask)); ok {
			return pi<<pageBits | int64(j), true
		}
	}
	if pi == 0 {
		return 0, false
	}
	below, ok := highestSet(l.summary, int(pi-1))
	if !ok {
		return 0, false
	}
	j, _ := highestSet(l.pages[below].occ[:], pageSize-1)
	return int64(below)<<pageBits | int64(j), true
}

// lowestAtOrAbove returns the lowest occupied index >= i.
func (l *ladder) lowestAtOrAbove(i int64) (int64, bool) {
	if i >= l.levels || l.count == 0 {
		return 0, false
	}
	if i < 0 {
		i = 0
	}
	pi := i >> pageBits
	if p := l.pages[pi]; p != nil && p.count > 0 {
		if j, ok := lowestSet(p.occ[:], int(i&pageMask)); ok {
			return pi<<pageBits | int64(j), true
		}
	}
	above, ok := lowestSet(l.summary, int(pi+1))
	if !ok {
		return 0, false
	}
	j, _ := lowestSet(l.pages[above].occ[:], 0)
	return int64(above)<<pageBits | int64(j), true
}

// highestSet finds the highest set bit at or below bit b.
func highestSet(words []uint64, b int) (int, bool) {
	if b < 0 {
		return 0, false
	}
	w := b >> 6
	word := words[w] & (^uint64(0) >> (63 - uint(b&63)))
	for {
		if word != 0 {
			return w<<6 + 63 - bits.LeadingZeros64(word), true
		}
		w--
		if w < 0 {
			return 0, false
		}
		word = words[w]
	}
}

// lowestSet finds the lowest set bit at or above bit b.
func lowestSet(words []uint64, b int) (int, bool) {
	w := b >> 6
	if w >= len(words) {
		return 0, false
	}
	word := words[w] & (^uint64(0) << uint(b&63))
	for {
		if word != 0 {
			return w<<6 + bits.TrailingZeros64(word), true
		}
		w++
		if w >= len(words) {
			return 0, false
		}
		word = words[w]
	}
}
