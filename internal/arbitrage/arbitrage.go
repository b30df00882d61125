// Package arbitrage holds the Arbitrage record spec.md §3 defines, derived
// from a closed Path the way src/data_structures/arbitrage.py's Arbitrage
// dataclass derives token_in/amount_in/amount_out/return_precost in
// __post_init__ — except every derived field here is a method over an
// immutable value, not a field frozen at construction time.
package arbitrage

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/longtrieuuit/defi-arbitrage/internal/path"
)

// Arbitrage is an immutable, confirmed cyclic opportunity: a closed Path plus
// the block it was evaluated at and the gas estimate supplied externally
// (spec.md §3; gas estimation itself is out of core scope per §1).
type Arbitrage struct {
	path        *path.Path
	blockNumber uint64
	expectedGas uint64
}

// New freezes a closed Path into an Arbitrage. It takes ownership of a deep
// copy of p (spec.md §3: "Arbitrage objects own a deep copy of their Path")
// and returns an error if p is not Closed — the cyclic-closure invariant
// (spec.md §3, testable property 2) is enforced here, once, at construction.
func New(p *path.Path, blockNumber uint64, expectedGas uint64) (*Arbitrage, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("arbitrage: path is empty")
	}
	if !p.IsClosed() {
		return nil, fmt.Errorf("arbitrage: path is not closed: first token_in %s != last token_out %s",
			p.FirstTokenIn(), p.LastTokenOut())
	}
	return &Arbitrage{
		path:        p.Clone(),
		blockNumber: blockNumber,
		expectedGas: expectedGas,
	}, nil
}

// Path returns the arbitrage's closed path. The returned Path is a fresh
// clone; mutating it does not affect the Arbitrage.
func (a *Arbitrage) Path() *path.Path { return a.path.Clone() }

// BlockNumber returns the block height the path was evaluated at.
func (a *Arbitrage) BlockNumber() uint64 { return a.blockNumber }

// ExpectedGas returns the externally supplied gas estimate (0 if none).
func (a *Arbitrage) ExpectedGas() uint64 { return a.expectedGas }

// TokenIn returns the path's first hop; its Edge.TokenIn is the starting
// token.
func (a *Arbitrage) TokenIn() path.Hop {
	return a.path.Hops()[0]
}

// AmountIn is the first hop's amount_in.
func (a *Arbitrage) AmountIn() *uint256.Int {
	return a.path.Hops()[0].AmountIn
}

// AmountOut is the last hop's amount_out.
func (a *Arbitrage) AmountOut() *uint256.Int {
	hops := a.path.Hops()
	return hops[len(hops)-1].AmountOut
}

// Profit is amount_out - amount_in, signed: a negative profit is a
// confirmed-unprofitable candidate, not an error (spec.md §3).
func (a *Arbitrage) Profit() *big.Int {
	out := a.AmountOut().ToBig()
	in := a.AmountIn().ToBig()
	return new(big.Int).Sub(out, in)
}

// ReturnPrecost mirrors the reference's return_precost: (amount_out /
// amount_in) - 1, as a float, ignoring gas cost (hence "precost").
func (a *Arbitrage) ReturnPrecost() float64 {
	out := new(big.Float).SetInt(a.AmountOut().ToBig())
	in := new(big.Float).SetInt(a.AmountIn().ToBig())
	if in.Sign() == 0 {
		return 0
	}
	ratio, _ := new(big.Float).Quo(out, in).Float64()
	return ratio - 1
}

// IsProfitable reports profit > 0 (spec.md §3, testable property 3).
func (a *Arbitrage) IsProfitable() bool {
	return a.Profit().Sign() > 0
}
