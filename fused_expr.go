// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/kont"
)

// Pre-allocated erased operation and frame to avoid heap escapes
// when boxing empty structs during Expr-world execution.
var (
	exprReturnFrame kont.Frame  = kont.ReturnFrame{}
	exprClose       kont.Erased = Close{}
)

// identityResume is the identity resume function for EffectFrame construction.
func identityResume(v kont.Erased) kont.Erased { return v }

// throwErased lowers a thrown error to the erased frame representation.
func throwErased[B any](err error) (kont.Erased, kont.Frame) {
	thrown := kont.ExprThrowError[error, B](err)
	return kont.Erased(thrown.Value), thrown.Frame
}

func writeThenUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	if err, ok := current.(kont.Either[error, struct{}]).GetLeft(); ok {
		return throwErased[B](err)
	}
	next := data.(kont.Expr[B])
	return kont.Erased(next.Value), next.Frame
}

// ExprWriteThen writes msg as one frame and then continues with next.
// Fuses ExprPerform(WriteMessage{Data: msg}) + ExprBind + ExprThrowError.
func ExprWriteThen[B any](msg []byte, next kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = next
	bf.Unwind = writeThenUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = WriteMessage{Data: msg}
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

func readBindUnwind[B any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	r := current.(kont.Either[error, []byte])
	if err, ok := r.GetLeft(); ok {
		return throwErased[B](err)
	}
	msg, _ := r.GetRight()
	result := data.(func([]byte) kont.Expr[B])(msg)
	return kont.Erased(result.Value), result.Frame
}

// ExprReadBind reads one frame of at most max bytes and passes it to f.
// Fuses ExprPerform(ReadMessage{Max: max}) + ExprBind + ExprThrowError.
func ExprReadBind[B any](max int, f func([]byte) kont.Expr[B]) kont.Expr[B] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = f
	bf.Unwind = readBindUnwind[B]
	ef := kont.AcquireEffectFrame()
	ef.Operation = ReadMessage{Max: max}
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[B](ef)
}

func closeDoneUnwind[A any](data, _, _ kont.Erased, current kont.Erased) (kont.Erased, kont.Frame) {
	if err, ok := current.(kont.Either[error, struct{}]).GetLeft(); ok {
		return throwErased[A](err)
	}
	return data, exprReturnFrame
}

// ExprCloseDone closes the substream and returns a.
func ExprCloseDone[A any](a A) kont.Expr[A] {
	bf := kont.AcquireUnwindFrame()
	bf.Data1 = a
	bf.Unwind = closeDoneUnwind[A]
	ef := kont.AcquireEffectFrame()
	ef.Operation = exprClose
	ef.Resume = identityResume
	ef.Next = bf
	return kont.ExprSuspend[A](ef)
}
