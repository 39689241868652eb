// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/kont"
)

// Protocol is a protocol function: given a negotiated substream it returns
// the exchange to run on it. The exchange suspends only at substream
// operations; it signals failure with kont.ExprThrowError[error, T].
type Protocol[T any] func(s *Substream) kont.Expr[T]

// Cont adapts a Cont-world protocol function to a Protocol.
func Cont[T any](f func(s *Substream) kont.Eff[T]) Protocol[T] {
	return func(s *Substream) kont.Expr[T] {
		return kont.Reify(f(s))
	}
}

// Request is a one-shot execution request: exactly one protocol function,
// tagged with the direction it runs in. I is the listener's result type,
// O the dialer's.
type Request[I, O any] struct {
	dir      Direction
	inbound  Protocol[I]
	outbound Protocol[O]
	consumed bool
}

// Listen returns a request to run p on the next inbound substream.
func Listen[I, O any](p Protocol[I]) *Request[I, O] {
	if p == nil {
		panic("exchange: nil protocol function")
	}
	return &Request[I, O]{dir: Inbound, inbound: p}
}

// Dial returns a request to open an outbound substream and run p on it.
func Dial[I, O any](p Protocol[O]) *Request[I, O] {
	if p == nil {
		panic("exchange: nil protocol function")
	}
	return &Request[I, O]{dir: Outbound, outbound: p}
}

// Direction returns the direction the request runs in.
func (r *Request[I, O]) Direction() Direction {
	return r.dir
}

// start invokes the protocol function on s and steps it to its first suspension.
// A request runs at most once.
func (r *Request[I, O]) start(s *Substream) execution[I, O] {
	if r.consumed {
		panic("exchange: request already executed")
	}
	r.consumed = true
	x := execution[I, O]{dir: r.dir, sub: s}
	if r.dir == Inbound {
		x.inResult, x.inSusp = Step[I](r.inbound(s))
	} else {
		x.outResult, x.outSusp = Step[O](r.outbound(s))
	}
	r.inbound, r.outbound = nil, nil
	return x
}

// execution is a request paired with its substream.
type execution[I, O any] struct {
	dir       Direction
	sub       *Substream
	inResult  kont.Either[error, I]
	inSusp    *kont.Suspension[kont.Either[error, I]]
	outResult kont.Either[error, O]
	outSusp   *kont.Suspension[kont.Either[error, O]]
}

// advance drives the execution until it completes or blocks.
// Returns iox.ErrWouldBlock while the protocol waits on the substream.
func (x *execution[I, O]) advance() error {
	for x.inSusp != nil {
		var err error
		if x.inResult, x.inSusp, err = Advance(x.sub, x.inSusp); err != nil {
			return err
		}
	}
	for x.outSusp != nil {
		var err error
		if x.outResult, x.outSusp, err = Advance(x.sub, x.outSusp); err != nil {
			return err
		}
	}
	return nil
}

// discard drops a pending suspension without resuming it.
func (x *execution[I, O]) discard() {
	if x.inSusp != nil {
		x.inSusp.Discard()
		x.inSusp = nil
	}
	if x.outSusp != nil {
		x.outSusp.Discard()
		x.outSusp = nil
	}
}

// outcome returns the terminal result of a completed execution.
func (x *execution[I, O]) outcome() Outcome[I, O] {
	return Outcome[I, O]{Direction: x.dir, Inbound: x.inResult, Outbound: x.outResult}
}
