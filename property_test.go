// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/quick"

	"code.hybscloud.com/exchange"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// TestPropertyFrameFIFO proves that for any sequence of messages, framed
// delivery over a substream is strict FIFO without loss, duplication,
// reordering or merging of message boundaries.
func TestPropertyFrameFIFO(t *testing.T) {
	propertyFIFO := func(payload [][]byte) bool {
		// Sender: one frame per message, then close to end the stream.
		sender := exchange.Cont(func(*exchange.Substream) kont.Eff[struct{}] {
			return exchange.Loop(payload, func(s [][]byte) kont.Eff[kont.Either[[][]byte, struct{}]] {
				if len(s) == 0 {
					return exchange.CloseDone(kont.Right[[][]byte, struct{}](struct{}{}))
				}
				return exchange.WriteThen(s[0], kont.Pure(kont.Left[[][]byte, struct{}](s[1:])))
			})
		})

		// Receiver: collects frames until the sender closes.
		receiver := exchange.Cont(func(*exchange.Substream) kont.Eff[[][]byte] {
			return exchange.Loop([][]byte(nil), func(acc [][]byte) kont.Eff[kont.Either[[][]byte, [][]byte]] {
				return kont.Bind(kont.Perform(exchange.ReadMessage{Max: 1 << 16}), func(r kont.Either[error, []byte]) kont.Eff[kont.Either[[][]byte, [][]byte]] {
					if err, ok := r.GetLeft(); ok {
						if err == io.EOF {
							return kont.Pure(kont.Right[[][]byte, [][]byte](acc))
						}
						return kont.ThrowError[error, kont.Either[[][]byte, [][]byte]](err)
					}
					msg, _ := r.GetRight()
					return kont.Pure(kont.Left[[][]byte, [][]byte](append(acc, msg)))
				})
			})
		})

		received, sent := exchange.Run(testProtocol, receiver, sender)
		if !sent.IsRight() {
			return false
		}
		got, ok := received.GetRight()
		if !ok || len(got) != len(payload) {
			return false
		}
		for i := range payload {
			if !bytes.Equal(got[i], payload[i]) {
				return false
			}
		}
		return true
	}

	if err := quick.Check(propertyFIFO, nil); err != nil {
		t.Error(err)
	}
}

// TestPropertyErrorShortCircuit proves that an error thrown at any point of a
// protocol short-circuits it and surfaces the exact error as the Left outcome.
func TestPropertyErrorShortCircuit(t *testing.T) {
	errForced := errors.New("forced_error")

	propertyError := func(throwAt uint8) bool {
		n := int(throwAt % 4)

		dialer := func(*exchange.Substream) kont.Expr[string] {
			return exchange.ExprLoop(0, func(i int) kont.Expr[kont.Either[int, string]] {
				if i == n {
					return kont.ExprThrowError[error, kont.Either[int, string]](errForced)
				}
				return exchange.ExprWriteThen([]byte{byte(i)}, kont.ExprReturn(kont.Left[int, string](i+1)))
			})
		}
		// The listener consumes exactly the frames written before the throw.
		listener := func(*exchange.Substream) kont.Expr[int] {
			return exchange.ExprLoop(0, func(i int) kont.Expr[kont.Either[int, int]] {
				if i == n {
					return kont.ExprReturn(kont.Right[int, int](i))
				}
				return exchange.ExprReadBind(1, func([]byte) kont.Expr[kont.Either[int, int]] {
					return kont.ExprReturn(kont.Left[int, int](i + 1))
				})
			})
		}

		received, result := exchange.Run(testProtocol, listener, dialer)
		err, isErr := result.GetLeft()
		got, _ := received.GetRight()
		return isErr && err == errForced && got == n
	}

	if err := quick.Check(propertyError, nil); err != nil {
		t.Error(err)
	}
}

// TestPropertyPairingOrder proves that a Handler produces the same outcome
// whichever of the request and the inbound substream arrives first.
func TestPropertyPairingOrder(t *testing.T) {
	listener := func(*exchange.Substream) kont.Expr[[]byte] {
		return exchange.ExprReadBind(1<<16, func(msg []byte) kont.Expr[[]byte] {
			return kont.ExprReturn(msg)
		})
	}

	propertyPairing := func(substreamFirst bool, msg []byte) bool {
		h := exchange.NewHandler[[]byte, struct{}](testInfo)
		local, far := exchange.Pipe()
		sub := exchange.NewSubstream(exchange.Inbound, testProtocol, local)
		remote := exchange.NewSubstream(exchange.Outbound, testProtocol, far)
		if r := exchange.Exec(remote, exchange.ExprWriteThen(msg, kont.ExprReturn(struct{}{}))); !r.IsRight() {
			return false
		}

		if substreamFirst {
			h.InjectSubstream(sub)
			h.Submit(exchange.Listen[[]byte, struct{}](listener))
		} else {
			h.Submit(exchange.Listen[[]byte, struct{}](listener))
			h.InjectSubstream(sub)
		}
		if h.State() != exchange.SlotExecuting {
			return false
		}
		ev, err := h.Poll()
		if err != nil || ev.Kind != exchange.HandlerOutcome {
			return false
		}
		got, ok := ev.Outcome.Inbound.GetRight()
		return ok && bytes.Equal(got, msg) && h.State() == exchange.SlotDone
	}

	if err := quick.Check(propertyPairing, nil); err != nil {
		t.Error(err)
	}
}

// requestIndex executes an outbound request on a throwaway handler and
// returns its result.
func requestIndex(req *exchange.Request[struct{}, int]) (int, bool) {
	h := exchange.NewHandler[struct{}, int](testInfo)
	h.Submit(req)
	if _, err := h.Poll(); err != nil {
		return 0, false
	}
	local, _ := exchange.Pipe()
	h.InjectSubstream(exchange.NewSubstream(exchange.Outbound, testProtocol, local))
	ev, err := h.Poll()
	if err != nil {
		return 0, false
	}
	return ev.Outcome.Outbound.GetRight()
}

// TestPropertyPerPeerOrder proves that requests are dispatched to each peer
// in submission order, that requests for connected peers overtake those for
// a disconnected one, and that nothing is lost once it connects.
func TestPropertyPerPeerOrder(t *testing.T) {
	peers := []peer.ID{"p0", "p1", "p2"}
	addr := ma.StringCast("/ip4/127.0.0.1/tcp/4001")

	propertyOrder := func(targets []uint8) bool {
		b := exchange.NewBehaviour[struct{}, int](testProtocol)
		b.ConnectionEstablished(peers[0], addr)
		b.ConnectionEstablished(peers[1], addr)
		for i, x := range targets {
			b.RunAsDialer(peers[int(x)%len(peers)], func(*exchange.Substream) kont.Expr[int] {
				return kont.ExprReturn(i)
			})
		}

		last := map[peer.ID]int{}
		dispatched := 0
		drain := func() bool {
			for idle := 0; idle <= b.Pending(); {
				action, err := b.Poll()
				if err != nil {
					if !iox.IsWouldBlock(err) {
						return false
					}
					idle++
					continue
				}
				idle = 0
				if action.Kind != exchange.ActionNotifyHandler || !b.Connected(action.Peer) {
					return false
				}
				i, ok := requestIndex(action.Request)
				if !ok {
					return false
				}
				if prev, seen := last[action.Peer]; seen && prev >= i {
					return false
				}
				last[action.Peer] = i
				dispatched++
			}
			return true
		}

		if !drain() {
			return false
		}
		// Only requests for the disconnected peer remain.
		stalled := 0
		for _, x := range targets {
			if int(x)%len(peers) == 2 {
				stalled++
			}
		}
		if b.Pending() != stalled || dispatched != len(targets)-stalled {
			return false
		}

		b.ConnectionEstablished(peers[2], addr)
		if !drain() {
			return false
		}
		return b.Pending() == 0 && dispatched == len(targets)
	}

	if err := quick.Check(propertyOrder, nil); err != nil {
		t.Error(err)
	}
}
