package service

import "errors"

// ErrInvariantViolated signals spec.md §7's InvariantViolated condition: a
// Path append violated the token-chaining invariant. This is a fatal
// programming error inside the core itself (cyclefinder or evaluator
// reconstructing a path incorrectly), never a consequence of caller input,
// and aborts the whole find_arbitrages call.
var ErrInvariantViolated = errors.New("service: path chaining invariant violated")

// ErrOracleUnavailable signals spec.md §7's OracleUnavailable condition: the
// underlying RPC transport failed catastrophically (as opposed to an
// individual quote call simply reverting, which is recovered locally as
// amount_out=0). Surfaced once for the whole invocation; no partial results.
var ErrOracleUnavailable = errors.New("service: quote oracle unavailable")
