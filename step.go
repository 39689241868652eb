// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/kont"
)

// errorDispatcher is the structural interface of kont error operations
// (ThrowError, CatchError) specialized to error values.
type errorDispatcher interface {
	DispatchError(ctx *kont.ErrorContext[error]) (kont.Resumed, bool)
}

// Step evaluates a protocol until the first effect suspension.
// Returns (Either[error, R], nil) on completion or throw,
// or (zero, suspension) if pending.
func Step[R any](protocol kont.Expr[R]) (kont.Either[error, R], *kont.Suspension[kont.Either[error, R]]) {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	return kont.StepExpr(wrapped)
}

// Advance dispatches the suspended operation on the substream.
//
// Substream operations are non-blocking: on iox.ErrWouldBlock the suspension
// is returned unconsumed and may be retried after the remote makes progress.
// Error operations are eager: a throw discards the suspension and returns Left.
func Advance[R any](s *Substream, susp *kont.Suspension[kont.Either[error, R]]) (kont.Either[error, R], *kont.Suspension[kont.Either[error, R]], error) {
	if sop, ok := susp.Op().(substreamDispatcher); ok {
		v, err := sop.DispatchSubstream(s)
		if err != nil {
			var zero kont.Either[error, R]
			return zero, susp, err
		}
		result, next := susp.Resume(v)
		return result, next, nil
	}
	if eop, ok := susp.Op().(errorDispatcher); ok {
		var ctx kont.ErrorContext[error]
		v, _ := eop.DispatchError(&ctx)
		if ctx.HasErr {
			susp.Discard()
			return kont.Left[error, R](ctx.Err), nil, nil
		}
		result, next := susp.Resume(v)
		return result, next, nil
	}
	panic("exchange: unhandled effect in Advance")
}
