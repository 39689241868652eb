// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange_test

import (
	"testing"

	"code.hybscloud.com/exchange"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
)

const testProtocol protocol.ID = "/foo/bar/1.0.0"

var testInfo = exchange.ProtocolInfo{ID: testProtocol}

// drive runs a protocol to completion on s via the Step+Advance loop,
// counting how often it hit the iox.ErrWouldBlock boundary.
func drive[R any](t *testing.T, s *exchange.Substream, protocol kont.Expr[R]) (kont.Either[error, R], int) {
	t.Helper()
	result, susp := exchange.Step(protocol)
	blocked := 0
	for i := 0; susp != nil; i++ {
		if i > 100000 {
			t.Fatal("protocol did not complete")
		}
		var err error
		result, susp, err = exchange.Advance(s, susp)
		if err != nil {
			if !iox.IsWouldBlock(err) {
				t.Fatalf("Advance error: %v", err)
			}
			blocked++
		}
	}
	return result, blocked
}

// mustPanic calls f and fails unless it panics with want.
func mustPanic(t *testing.T, want string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic %q", want)
		}
		if msg, ok := r.(string); !ok || msg != want {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()
	f()
}

// sendFrame writes one frame on s, which must have room for it.
func sendFrame(t *testing.T, s *exchange.Substream, msg []byte) {
	t.Helper()
	r, _ := drive(t, s, exchange.ExprWriteThen(msg, kont.ExprReturn(struct{}{})))
	if err, ok := r.GetLeft(); ok {
		t.Fatalf("write frame: %v", err)
	}
}

// recvFrame reads one frame from s, which must already be queued.
func recvFrame(t *testing.T, s *exchange.Substream, max int) []byte {
	t.Helper()
	r, _ := drive(t, s, exchange.ExprReadBind(max, func(msg []byte) kont.Expr[[]byte] {
		return kont.ExprReturn(msg)
	}))
	msg, ok := r.GetRight()
	if !ok {
		err, _ := r.GetLeft()
		t.Fatalf("read frame: %v", err)
	}
	return msg
}

// readChunkErr performs one ReadChunk on s and returns its error side.
func readChunkErr(t *testing.T, s *exchange.Substream) error {
	t.Helper()
	r, _ := drive(t, s, kont.ExprPerform(exchange.ReadChunk{Max: 16}))
	chunk, _ := r.GetRight()
	err, _ := chunk.GetLeft()
	return err
}

// echoListener reads one frame, echoes it back and returns it.
func echoListener(*exchange.Substream) kont.Expr[string] {
	return exchange.ExprReadBind(64, func(msg []byte) kont.Expr[string] {
		return exchange.ExprWriteThen(msg, kont.ExprReturn(string(msg)))
	})
}

// pingDialer sends "ping" and returns the length of the reply.
func pingDialer(*exchange.Substream) kont.Expr[int] {
	return exchange.ExprWriteThen([]byte("ping"),
		exchange.ExprReadBind(64, func(msg []byte) kont.Expr[int] {
			return kont.ExprReturn(len(msg))
		}),
	)
}

// node is one end of a single connection in a test environment.
type node[I, O any] struct {
	id      peer.ID
	addr    ma.Multiaddr
	b       *exchange.Behaviour[I, O]
	handler *exchange.Handler[I, O]
	events  []exchange.Event[I, O]
}

// link drives two nodes sharing one connection on the calling goroutine.
// It stands in for the swarm: it performs NotifyHandler actions, opens a Pipe
// for every outbound substream request and hands the far end to the remote
// handler as an inbound substream.
type link[I, O any] struct {
	a, b *node[I, O]
}

func newLink[I, O any](opts ...exchange.Option) *link[I, O] {
	return &link[I, O]{
		a: &node[I, O]{
			id:   peer.ID("alice"),
			addr: ma.StringCast("/ip4/10.0.0.1/tcp/4001"),
			b:    exchange.NewBehaviour[I, O](testProtocol, opts...),
		},
		b: &node[I, O]{
			id:   peer.ID("bob"),
			addr: ma.StringCast("/ip4/10.0.0.2/tcp/4001"),
			b:    exchange.NewBehaviour[I, O](testProtocol, opts...),
		},
	}
}

// connect establishes the connection on both sides.
func (l *link[I, O]) connect() {
	l.a.handler = l.a.b.NewHandler()
	l.b.handler = l.b.b.NewHandler()
	l.a.b.ConnectionEstablished(l.b.id, l.b.addr)
	l.b.b.ConnectionEstablished(l.a.id, l.a.addr)
}

// run polls both sides until neither makes progress.
func (l *link[I, O]) run(t *testing.T) {
	t.Helper()
	for i := 0; ; i++ {
		if i > 100000 {
			t.Fatal("link did not settle")
		}
		progress := l.step(t, l.a, l.b)
		progress = l.step(t, l.b, l.a) || progress
		if !progress {
			return
		}
	}
}

func (l *link[I, O]) step(t *testing.T, n, remote *node[I, O]) bool {
	t.Helper()
	progress := false
	if action, err := n.b.Poll(); err == nil {
		progress = true
		switch action.Kind {
		case exchange.ActionNotifyHandler:
			if action.Peer != remote.id {
				t.Fatalf("dispatch to %s, want %s", action.Peer, remote.id)
			}
			n.handler.Submit(action.Request)
		case exchange.ActionEvent:
			n.events = append(n.events, action.Event)
		}
	}
	if n.handler == nil {
		return progress
	}
	ev, err := n.handler.Poll()
	if err != nil {
		if !iox.IsWouldBlock(err) {
			t.Fatalf("handler poll: %v", err)
		}
		return progress
	}
	switch ev.Kind {
	case exchange.HandlerSubstreamRequest:
		local, far := exchange.Pipe()
		n.handler.InjectSubstream(exchange.NewSubstream(exchange.Outbound, ev.Protocol.ID, local))
		remote.handler.InjectSubstream(exchange.NewSubstream(exchange.Inbound, ev.Protocol.ID, far))
	case exchange.HandlerOutcome:
		n.b.InjectOutcome(remote.id, ev.Outcome)
	}
	return true
}
