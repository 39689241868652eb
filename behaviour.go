// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/iox"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

type pendingOutcome[I, O any] struct {
	peer    peer.ID
	outcome Outcome[I, O]
}

// Behaviour runs protocol functions with peers by name.
//
// Requests wait in a per-peer FIFO until the peer is connected, and peers
// take turns in a rotation: a peer that is not connected, or that was just
// served, moves to the back. Requests for one peer are therefore dispatched
// in submission order, while a connected peer overtakes a disconnected one.
// Outcomes reported by handlers are delivered to the application as
// peer-addressed events, in arrival order.
//
// It is not possible to execute the protocol with the same peer several
// simultaneous times over one connection.
type Behaviour[I, O any] struct {
	requests  *linkedhashmap.Map     // peer.ID -> *linkedlistqueue.Queue of *Request[I, O]
	pending   int
	outcomes  *linkedlistqueue.Queue // of pendingOutcome[I, O]
	connected *linkedhashmap.Map     // peer.ID -> []ma.Multiaddr

	info ProtocolInfo
	cfg  config
	log  logrus.FieldLogger
}

// NewBehaviour returns a Behaviour for the protocol id, e.g. "/foo/bar/1.0.0".
func NewBehaviour[I, O any](id protocol.ID, opts ...Option) *Behaviour[I, O] {
	cfg := newConfig(opts)
	return &Behaviour[I, O]{
		requests:  linkedhashmap.New(),
		outcomes:  linkedlistqueue.New(),
		connected: linkedhashmap.New(),
		info:      ProtocolInfo{ID: id},
		cfg:       cfg,
		log:       cfg.logger.WithField("protocol", id),
	}
}

// Protocol returns the protocol served by the Behaviour.
func (b *Behaviour[I, O]) Protocol() ProtocolInfo {
	return b.info
}

// NewHandler returns the handler for a new connection.
func (b *Behaviour[I, O]) NewHandler() *Handler[I, O] {
	return newHandler[I, O](b.info, b.cfg)
}

// RunAsListener queues f to run on the next substream p opens towards us.
// Never blocks.
func (b *Behaviour[I, O]) RunAsListener(p peer.ID, f Protocol[I]) {
	b.enqueue(p, Listen[I, O](f))
}

// RunAsDialer queues f to run on a substream we open to p. Never blocks.
func (b *Behaviour[I, O]) RunAsDialer(p peer.ID, f Protocol[O]) {
	b.enqueue(p, Dial[I, O](f))
}

func (b *Behaviour[I, O]) enqueue(p peer.ID, req *Request[I, O]) {
	q, ok := b.requests.Get(p)
	if !ok {
		q = linkedlistqueue.New()
		b.requests.Put(p, q)
	}
	q.(*linkedlistqueue.Queue).Enqueue(req)
	b.pending++
}

// ConnectionEstablished records a new connection to p through addr.
func (b *Behaviour[I, O]) ConnectionEstablished(p peer.ID, addr ma.Multiaddr) {
	addrs := b.addresses(p)
	b.connected.Put(p, append(addrs, addr))
	b.log.WithFields(logrus.Fields{"peer": p, "addr": addr}).Debug("connection established")
}

// ConnectionClosed forgets one connection to p through addr. The peer is
// forgotten entirely once its last connection closes.
func (b *Behaviour[I, O]) ConnectionClosed(p peer.ID, addr ma.Multiaddr) {
	addrs := b.addresses(p)
	for i, a := range addrs {
		if a.Equal(addr) {
			addrs = append(addrs[:i:i], addrs[i+1:]...)
			break
		}
	}
	if len(addrs) == 0 {
		b.connected.Remove(p)
	} else {
		b.connected.Put(p, addrs)
	}
	b.log.WithFields(logrus.Fields{"peer": p, "addr": addr}).Debug("connection closed")
}

// InjectOutcome queues an outcome reported by a handler of a connection with p.
func (b *Behaviour[I, O]) InjectOutcome(p peer.ID, o Outcome[I, O]) {
	b.outcomes.Enqueue(pendingOutcome[I, O]{peer: p, outcome: o})
}

// AddressesOf returns the addresses p is currently connected through.
func (b *Behaviour[I, O]) AddressesOf(p peer.ID) []ma.Multiaddr {
	addrs := b.addresses(p)
	if len(addrs) == 0 {
		return nil
	}
	return append([]ma.Multiaddr(nil), addrs...)
}

// Connected reports whether at least one connection to p is open.
func (b *Behaviour[I, O]) Connected(p peer.ID) bool {
	_, ok := b.connected.Get(p)
	return ok
}

// ConnectedPeers returns the connected peers in the order they first connected.
func (b *Behaviour[I, O]) ConnectedPeers() []peer.ID {
	keys := b.connected.Keys()
	peers := make([]peer.ID, len(keys))
	for i, k := range keys {
		peers[i] = k.(peer.ID)
	}
	return peers
}

// Poll advances the Behaviour by at most one step.
//
// The peer at the head of the rotation gets its oldest request dispatched
// as ActionNotifyHandler if it is connected; either way it moves to the
// tail while requests remain. When nothing was dispatched, the head
// outcome is delivered as ActionEvent. Otherwise Poll returns
// iox.ErrWouldBlock.
func (b *Behaviour[I, O]) Poll() (Action[I, O], error) {
	if it := b.requests.Iterator(); it.First() {
		p, q := it.Key().(peer.ID), it.Value().(*linkedlistqueue.Queue)
		b.requests.Remove(p)
		if b.Connected(p) {
			v, _ := q.Dequeue()
			req := v.(*Request[I, O])
			b.pending--
			if !q.Empty() {
				b.requests.Put(p, q)
			}
			b.log.WithFields(logrus.Fields{
				"peer":      p,
				"direction": req.Direction(),
			}).Debug("dispatching request to handler")
			return Action[I, O]{Kind: ActionNotifyHandler, Peer: p, Request: req}, nil
		}
		b.log.WithFields(logrus.Fields{"peer": p, "pending": q.Size()}).Trace("peer not connected, deferring its requests")
		b.requests.Put(p, q)
	}
	if v, ok := b.outcomes.Dequeue(); ok {
		po := v.(pendingOutcome[I, O])
		return Action[I, O]{
			Kind:  ActionEvent,
			Peer:  po.peer,
			Event: Event[I, O]{Peer: po.peer, Outcome: po.outcome},
		}, nil
	}
	return Action[I, O]{}, iox.ErrWouldBlock
}

// Pending returns the number of requests not yet dispatched.
func (b *Behaviour[I, O]) Pending() int {
	return b.pending
}

func (b *Behaviour[I, O]) addresses(p peer.ID) []ma.Multiaddr {
	v, ok := b.connected.Get(p)
	if !ok {
		return nil
	}
	return v.([]ma.Multiaddr)
}
