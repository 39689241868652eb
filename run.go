// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// Run connects a listener and a dialer protocol over an in-memory Pipe and
// runs both to completion. Interleaves both sides on the calling goroutine
// using adaptive backoff (iox.Backoff) when neither side can make progress.
// Does not spawn goroutines.
//
// Run exercises a protocol pair without a network; it is also how a node
// talks to itself.
func Run[A, B any](id protocol.ID, listener Protocol[A], dialer Protocol[B]) (kont.Either[error, A], kont.Either[error, B]) {
	a, b := Pipe()
	subA := NewSubstream(Inbound, id, a)
	subB := NewSubstream(Outbound, id, b)
	resultA, suspA := Step[A](listener(subA))
	resultB, suspB := Step[B](dialer(subB))
	var bo iox.Backoff
	for suspA != nil || suspB != nil {
		progress := false
		if suspA != nil {
			var err error
			resultA, suspA, err = Advance(subA, suspA)
			if err == nil {
				progress = true
			}
		}
		if suspB != nil {
			var err error
			resultB, suspB, err = Advance(subB, suspB)
			if err == nil {
				progress = true
			}
		}
		if !progress {
			bo.Wait()
		} else {
			bo.Reset()
		}
	}
	return resultA, resultB
}
