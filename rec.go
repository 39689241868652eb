// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"io"

	"code.hybscloud.com/kont"
)

// Loop runs a repeated exchange (Cont-world), such as reading frames
// until the remote signals the end of a stream of messages.
// step returns Left(nextState) to continue or Right(result) to finish.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if next, ok := e.GetLeft(); ok {
			return Loop(next, step)
		}
		result, _ := e.GetRight()
		return kont.Pure(result)
	})
}

// ExprLoop runs a repeated exchange (Expr-world).
// step returns Left(nextState) to continue or Right(result) to finish.
// Iterations that complete without suspending are unrolled in place.
func ExprLoop[S, A any](initial S, step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[A] {
	m := step(initial)
	for {
		if _, ok := m.Frame.(kont.ReturnFrame); !ok {
			break
		}
		next, ok := m.Value.GetLeft()
		if !ok {
			result, _ := m.Value.GetRight()
			return kont.ExprReturn(result)
		}
		m = step(next)
	}
	bf := kont.AcquireBindFrame()
	bf.F = func(a kont.Erased) kont.Expr[kont.Erased] {
		return loopContinue(a.(kont.Either[S, A]), step)
	}
	bf.Next = exprReturnFrame
	var zero A
	return kont.Expr[A]{Value: zero, Frame: kont.ChainFrames(m.Frame, bf)}
}

// loopContinue resumes ExprLoop after an iteration that suspended.
func loopContinue[S, A any](e kont.Either[S, A], step func(S) kont.Expr[kont.Either[S, A]]) kont.Expr[kont.Erased] {
	if next, ok := e.GetLeft(); ok {
		result := ExprLoop(next, step)
		return kont.Expr[kont.Erased]{Value: kont.Erased(result.Value), Frame: result.Frame}
	}
	result, _ := e.GetRight()
	return kont.Expr[kont.Erased]{Value: kont.Erased(result), Frame: exprReturnFrame}
}

// ReadEach reads frames of at most max bytes until the remote closes the
// substream, folding each into the state. A framing or transport failure
// other than the clean end of stream short-circuits the protocol.
func ReadEach[S any](max int, initial S, f func(S, []byte) S) kont.Eff[S] {
	return Loop(initial, func(acc S) kont.Eff[kont.Either[S, S]] {
		return kont.Bind(kont.Perform(ReadMessage{Max: max}), func(r kont.Either[error, []byte]) kont.Eff[kont.Either[S, S]] {
			if err, ok := r.GetLeft(); ok {
				if err == io.EOF {
					return kont.Pure(kont.Right[S, S](acc))
				}
				return kont.ThrowError[error, kont.Either[S, S]](err)
			}
			msg, _ := r.GetRight()
			return kont.Pure(kont.Left[S, S](f(acc, msg)))
		})
	})
}

// readFold is one ExprReadEach iteration: the state so far and the folding function.
type readFold[S any] struct {
	acc S
	f   func(S, []byte) S
}

func readFoldUnwind[S any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	fold := data.(readFold[S])
	r := current.(kont.Either[error, []byte])
	if err, ok := r.GetLeft(); ok {
		if err == io.EOF {
			return kont.Erased(kont.Right[S, S](fold.acc)), exprReturnFrame
		}
		return throwErased[kont.Either[S, S]](err)
	}
	msg, _ := r.GetRight()
	return kont.Erased(kont.Left[S, S](fold.f(fold.acc, msg))), exprReturnFrame
}

// ExprReadEach reads frames of at most max bytes until the remote closes the
// substream, folding each into the state (Expr-world).
func ExprReadEach[S any](max int, initial S, f func(S, []byte) S) kont.Expr[S] {
	return ExprLoop(initial, func(acc S) kont.Expr[kont.Either[S, S]] {
		bf := kont.AcquireUnwindFrame()
		bf.Data1 = readFold[S]{acc: acc, f: f}
		bf.Unwind = readFoldUnwind[S]
		ef := kont.AcquireEffectFrame()
		ef.Operation = ReadMessage{Max: max}
		ef.Resume = identityResume
		ef.Next = bf
		return kont.ExprSuspend[kont.Either[S, S]](ef)
	})
}

// ExprWriteEach writes every message as one frame, in order, then continues with next.
func ExprWriteEach[B any](msgs [][]byte, next kont.Expr[B]) kont.Expr[B] {
	for i := len(msgs) - 1; i >= 0; i-- {
		next = ExprWriteThen(msgs[i], next)
	}
	return next
}
