// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/kont"
)

// WriteThen writes msg as one frame and then continues with next.
// A write failure short-circuits the protocol with the error.
// Fuses Perform(WriteMessage{Data: msg}) + Bind + ThrowError.
func WriteThen[B any](msg []byte, next kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(WriteMessage{Data: msg}), func(r kont.Either[error, struct{}]) kont.Eff[B] {
		if err, ok := r.GetLeft(); ok {
			return kont.ThrowError[error, B](err)
		}
		return next
	})
}

// ReadBind reads one frame of at most max bytes and passes it to f.
// A framing or transport failure short-circuits the protocol with the error.
func ReadBind[B any](max int, f func([]byte) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(ReadMessage{Max: max}), func(r kont.Either[error, []byte]) kont.Eff[B] {
		if err, ok := r.GetLeft(); ok {
			return kont.ThrowError[error, B](err)
		}
		msg, _ := r.GetRight()
		return f(msg)
	})
}

// CloseDone closes the substream and returns a.
func CloseDone[A any](a A) kont.Eff[A] {
	return kont.Bind(kont.Perform(Close{}), func(r kont.Either[error, struct{}]) kont.Eff[A] {
		if err, ok := r.GetLeft(); ok {
			return kont.ThrowError[error, A](err)
		}
		return kont.Pure(a)
	})
}
