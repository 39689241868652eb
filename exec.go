// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// substreamHandler handles both substream and error effects for Exec.
// Substream ops wait on iox.ErrWouldBlock via iox.Backoff. Error ops short-circuit on Throw.
type substreamHandler[R any] struct {
	s      *Substream
	errCtx *kont.ErrorContext[error]
}

// Dispatch implements kont.Handler. Dispatch order: Substream → Error.
func (h substreamHandler[R]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	if sop, ok := op.(substreamDispatcher); ok {
		return dispatchWait(h.s, sop), true
	}
	if eop, ok := op.(errorDispatcher); ok {
		v, _ := eop.DispatchError(h.errCtx)
		if h.errCtx.HasErr {
			return kont.Left[error, R](h.errCtx.Err), false
		}
		return v, true
	}
	panic("exchange: unhandled effect in substreamHandler")
}

// dispatchWait blocks until DispatchSubstream succeeds, backing off on
// iox.ErrWouldBlock with iox.Backoff.
func dispatchWait(s *Substream, sop substreamDispatcher) kont.Resumed {
	var bo iox.Backoff
	for {
		v, err := sop.DispatchSubstream(s)
		if err == nil {
			return v
		}
		bo.Wait()
	}
}

// Exec runs a protocol to completion on s outside of any Handler.
// Returns Right on success, Left on throw or on a failure raised by a fused helper.
// Blocks on iox.ErrWouldBlock via adaptive backoff, without spawning goroutines.
func Exec[R any](s *Substream, protocol kont.Expr[R]) kont.Either[error, R] {
	wrapped := kont.ExprMap(protocol, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	var errCtx kont.ErrorContext[error]
	h := substreamHandler[R]{s: s, errCtx: &errCtx}
	return kont.HandleExpr(wrapped, h)
}
