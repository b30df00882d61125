// Package path implements the Hop/Path data carriers of spec.md §3 and the
// per-Path state machine of §4.7. It replaces the reference's list-subclass
// with auxiliary-index idiom (src/data_structures/arbitrage.py's Path) with a
// dedicated type that owns both the ordered hops and a token membership
// count, exposing explicit Append/Pop/ContainsToken/IsClosed operations
// instead of inheriting from a container primitive (spec.md §9).
package path

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/graph"
)

// Hop is one evaluated step of a candidate path: the edge traversed plus the
// amounts actually observed when it was quoted (spec.md §3).
type Hop struct {
	Edge        graph.ExchangeEdge
	AmountIn    *uint256.Int
	AmountOut   *uint256.Int
	BlockNumber uint64
}

// Path is an ordered sequence of Hops under construction, plus a multiset of
// the tokens it has touched so ContainsToken answers in O(1) (spec.md §9).
// The zero value is a valid Empty path.
type Path struct {
	hops        []Hop
	tokenVisits map[graph.Token]int
}

// New returns an Empty Path ready for its first Append.
func New() *Path {
	return &Path{tokenVisits: make(map[graph.Token]int)}
}

// Len reports how many hops the path currently holds.
func (p *Path) Len() int { return len(p.hops) }

// Hops returns the path's hops in traversal order. The returned slice is
// owned by the caller; mutating it does not affect the Path.
func (p *Path) Hops() []Hop {
	out := make([]Hop, len(p.hops))
	copy(out, p.hops)
	return out
}

// IsEmpty reports whether the path is in the Empty state.
func (p *Path) IsEmpty() bool { return len(p.hops) == 0 }

// FirstTokenIn returns the token_in of the first hop. Calling it on an Empty
// path is a programming error.
func (p *Path) FirstTokenIn() graph.Token {
	return p.hops[0].Edge.TokenIn
}

// LastTokenOut returns the token_out of the last hop. Calling it on an Empty
// path is a programming error.
func (p *Path) LastTokenOut() graph.Token {
	return p.hops[len(p.hops)-1].Edge.TokenOut
}

// ErrChainBroken is returned by Append when a hop's token_in does not match
// the path's current last token_out — spec.md §7's InvariantViolated
// condition, fatal to the enclosing find_arbitrages call.
type ErrChainBroken struct {
	Expected graph.Token
	Got      graph.Token
}

func (e *ErrChainBroken) Error() string {
	return fmt.Sprintf("path: chain broken: expected token_in %s, got %s", e.Expected, e.Got)
}

// Append moves Empty → Partial(1) or Partial(k) → Partial(k+1) (spec.md
// §4.7). It requires hop.Edge.TokenIn == Path.LastTokenOut() (trivially true
// when the path is Empty) and returns ErrChainBroken otherwise.
func (p *Path) Append(hop Hop) error {
	if !p.IsEmpty() && hop.Edge.TokenIn != p.LastTokenOut() {
		return &ErrChainBroken{Expected: p.LastTokenOut(), Got: hop.Edge.TokenIn}
	}
	if p.tokenVisits == nil {
		p.tokenVisits = make(map[graph.Token]int)
	}
	p.hops = append(p.hops, hop)
	p.tokenVisits[hop.Edge.TokenIn]++
	p.tokenVisits[hop.Edge.TokenOut]++
	return nil
}

// Pop moves Partial(k) → Partial(k-1) or → Empty, undoing the most recent
// Append. Popping an Empty path is a no-op.
func (p *Path) Pop() {
	if p.IsEmpty() {
		return
	}
	last := p.hops[len(p.hops)-1]
	p.hops = p.hops[:len(p.hops)-1]
	p.tokenVisits[last.Edge.TokenIn]--
	if p.tokenVisits[last.Edge.TokenIn] <= 0 {
		delete(p.tokenVisits, last.Edge.TokenIn)
	}
	p.tokenVisits[last.Edge.TokenOut]--
	if p.tokenVisits[last.Edge.TokenOut] <= 0 {
		delete(p.tokenVisits, last.Edge.TokenOut)
	}
}

// ContainsToken reports whether any hop so far has touched token, in O(1).
func (p *Path) ContainsToken(token graph.Token) bool {
	return p.tokenVisits[token] > 0
}

// IsClosed reports whether the path has reached the Closed(n) state: at
// least one hop, and the last hop's token_out equals the first hop's
// token_in (spec.md §4.7).
func (p *Path) IsClosed() bool {
	if p.IsEmpty() {
		return false
	}
	return p.LastTokenOut() == p.FirstTokenIn()
}

// Clone returns a deep, independent copy — used when freezing a Path into an
// Arbitrage (spec.md §3: "Arbitrage objects own a deep copy of their Path").
func (p *Path) Clone() *Path {
	clone := &Path{
		hops:        make([]Hop, len(p.hops)),
		tokenVisits: make(map[graph.Token]int, len(p.tokenVisits)),
	}
	copy(clone.hops, p.hops)
	for k, v := range p.tokenVisits {
		clone.tokenVisits[k] = v
	}
	return clone
}
