// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package exchange runs caller-supplied protocol functions over negotiated
// substreams with remote peers, on demand, without a dedicated wire protocol
// per use case.
//
// A protocol function is a [code.hybscloud.com/kont] computation over one
// [Substream]. It suspends at substream operations and is stepped from a
// poll loop; nothing in this package blocks or spawns goroutines.
//
// # Architecture
//
//   - Handler: one per connection. Pairs an execution [Request] with its
//     negotiated substream in either arrival order, drives the protocol from
//     [Handler.Poll] and reports its [Outcome] exactly once. One execution per handler.
//   - Behaviour: one per protocol. [Behaviour.RunAsListener] and
//     [Behaviour.RunAsDialer] queue requests for peers, held back until the
//     peer is connected. Tracks the addresses each peer is connected through
//     and turns handler outcomes into peer-addressed [Event] values.
//   - Transport: a non-blocking [Stream]. [Pipe] builds an in-memory pair over
//     lock-free SPSC queues from [code.hybscloud.com/lfq].
//   - Negotiation: [ProtocolInfo] upgrades raw streams with multistream-select.
//
// # Operations
//
//   - Effects: [WriteMessage], [ReadMessage] (unsigned-varint length prefix),
//     [WriteAll], [ReadChunk] (raw) and [Close]. Each resumes with
//     kont.Either[error, T] so a protocol may inspect failures.
//   - Cont-world: [WriteThen], [ReadBind], [CloseDone] throw on failure.
//   - Expr-world: [ExprWriteThen], [ExprReadBind], [ExprCloseDone].
//   - Repetition: [Loop] and [ExprLoop]; [ReadEach] and [ExprReadEach] fold frames
//     until the remote closes, [ExprWriteEach] writes a batch of frames.
//   - Stepping: [Step] and [Advance] return [code.hybscloud.com/iox.ErrWouldBlock]
//     at the I/O boundary. [Exec] and [Run] wait past it with adaptive backoff.
//
// # Example
//
//	b := exchange.NewBehaviour[string, int]("/echo/1.0.0")
//	b.RunAsDialer(remote, func(s *exchange.Substream) kont.Expr[int] {
//		return exchange.ExprWriteThen([]byte("ping"),
//			exchange.ExprReadBind(64, func(msg []byte) kont.Expr[int] {
//				return exchange.ExprCloseDone(len(msg))
//			}),
//		)
//	})
//	for {
//		action, err := b.Poll()
//		if err != nil {
//			break // iox.ErrWouldBlock: nothing to do until the next event
//		}
//		// ActionNotifyHandler: handler.Submit(action.Request)
//		// ActionEvent: deliver action.Event to the application
//	}
package exchange
