// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"fmt"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
	"github.com/sirupsen/logrus"
)

// SlotState is the state of a handler's single execution slot.
type SlotState uint8

const (
	// SlotEmpty holds nothing.
	SlotEmpty SlotState = iota
	// SlotInboundAwaitingRequest holds an inbound substream and waits for its request.
	SlotInboundAwaitingRequest
	// SlotInboundAwaitingSubstream holds an inbound request and waits for its substream.
	SlotInboundAwaitingSubstream
	// SlotOutboundAwaitingSubstream holds an outbound request; the substream
	// has not been requested from the environment yet.
	SlotOutboundAwaitingSubstream
	// SlotOutboundRequested holds an outbound request; the substream has been
	// requested and is being negotiated.
	SlotOutboundRequested
	// SlotExecuting runs a request paired with its substream.
	SlotExecuting
	// SlotDone has reported its outcome. Terminal.
	SlotDone
)

var slotStateNames = [...]string{
	SlotEmpty:                     "empty",
	SlotInboundAwaitingRequest:    "inbound-awaiting-request",
	SlotInboundAwaitingSubstream:  "inbound-awaiting-substream",
	SlotOutboundAwaitingSubstream: "outbound-awaiting-substream",
	SlotOutboundRequested:         "outbound-requested",
	SlotExecuting:                 "executing",
	SlotDone:                      "done",
}

func (s SlotState) String() string {
	if int(s) < len(slotStateNames) {
		return slotStateNames[s]
	}
	return "invalid"
}

// Handler executes at most one protocol function on one connection.
//
// A request (Submit) and its substream (InjectSubstream) may arrive in either
// order; the handler pairs them and drives the protocol from Poll. Every
// method returns immediately. Misuse that desynchronizes the handler from
// its environment panics and leaves the state unchanged.
//
// A Handler runs exactly one execution. Running the protocol again with the
// same peer needs a new handler.
type Handler[I, O any] struct {
	state SlotState
	req   *Request[I, O]
	sub   *Substream
	exec  execution[I, O]

	id   ConnectionID
	info ProtocolInfo
	cfg  config
	log  logrus.FieldLogger
}

// NewHandler returns an empty handler serving info.
func NewHandler[I, O any](info ProtocolInfo, opts ...Option) *Handler[I, O] {
	return newHandler[I, O](info, newConfig(opts))
}

func newHandler[I, O any](info ProtocolInfo, cfg config) *Handler[I, O] {
	id := nextConnectionID()
	return &Handler[I, O]{
		id:   id,
		info: info,
		cfg:  cfg,
		log: cfg.logger.WithFields(logrus.Fields{
			"conn":     id,
			"protocol": info.ID,
		}),
	}
}

// ID returns the connection ID assigned at construction.
func (h *Handler[I, O]) ID() ConnectionID {
	return h.id
}

// State returns the current slot state.
func (h *Handler[I, O]) State() SlotState {
	return h.state
}

// ListenProtocol returns the protocol the negotiation layer accepts for
// inbound substreams of this connection.
func (h *Handler[I, O]) ListenProtocol() ProtocolInfo {
	return h.info
}

// KeepAlive reports whether the connection must stay open. An idle handler
// never asks for the connection to be closed unless configured otherwise.
func (h *Handler[I, O]) KeepAlive() KeepAlive {
	return h.cfg.keepAlive
}

// Submit supplies the execution request.
//
// If a substream of the same direction is held, the two are paired and
// execution starts. Otherwise the request is parked; an outbound request
// makes the next Poll ask for a substream.
//
// Submit panics if a request is already pending or executing, or if the
// slot is busy in the other direction.
func (h *Handler[I, O]) Submit(req *Request[I, O]) {
	if req == nil {
		panic("exchange: nil request")
	}
	if req.consumed {
		panic("exchange: request already executed")
	}
	switch req.dir {
	case Inbound:
		switch h.state {
		case SlotEmpty:
			h.req = req
			h.transition(SlotInboundAwaitingSubstream)
		case SlotInboundAwaitingRequest:
			h.begin(req, h.sub)
		case SlotInboundAwaitingSubstream, SlotDone:
			panic("exchange: illegal state, protocol function is already present")
		case SlotExecuting:
			if h.exec.dir == Inbound {
				panic("exchange: illegal state, protocol function is already present")
			}
			panic("exchange: inbound protocol function in outbound execution")
		default:
			panic("exchange: inbound protocol function in outbound execution")
		}
	case Outbound:
		switch h.state {
		case SlotEmpty:
			h.req = req
			h.transition(SlotOutboundAwaitingSubstream)
		case SlotOutboundAwaitingSubstream, SlotOutboundRequested, SlotDone:
			panic("exchange: illegal state, protocol function is already present")
		case SlotExecuting:
			if h.exec.dir == Outbound {
				panic("exchange: illegal state, protocol function is already present")
			}
			panic("exchange: outbound protocol function in inbound execution")
		default:
			panic("exchange: outbound protocol function in inbound execution")
		}
	default:
		panic("exchange: invalid request direction")
	}
}

// InjectSubstream supplies a negotiated substream.
//
// An inbound substream pairs with a parked inbound request or is parked
// itself. An outbound substream is only accepted after Poll asked for it.
//
// InjectSubstream panics if a substream is already held or executing, if
// an outbound substream arrives unrequested, or if the slot is busy in the
// other direction.
func (h *Handler[I, O]) InjectSubstream(s *Substream) {
	if s == nil {
		panic("exchange: nil substream")
	}
	switch s.dir {
	case Inbound:
		switch h.state {
		case SlotEmpty:
			h.sub = s
			h.transition(SlotInboundAwaitingRequest)
		case SlotInboundAwaitingSubstream:
			h.begin(h.req, s)
		case SlotInboundAwaitingRequest, SlotDone:
			panic("exchange: illegal state, substream is already present")
		case SlotExecuting:
			if h.exec.dir == Inbound {
				panic("exchange: illegal state, substream is already present")
			}
			panic("exchange: inbound substream in outbound execution")
		default:
			panic("exchange: inbound substream in outbound execution")
		}
	case Outbound:
		switch h.state {
		case SlotOutboundRequested:
			h.begin(h.req, s)
		case SlotEmpty, SlotOutboundAwaitingSubstream:
			panic("exchange: illegal state, outbound substream was not requested")
		case SlotDone:
			panic("exchange: illegal state, substream is already present")
		case SlotExecuting:
			if h.exec.dir == Outbound {
				panic("exchange: illegal state, substream is already present")
			}
			panic("exchange: outbound substream in inbound execution")
		default:
			panic("exchange: outbound substream in inbound execution")
		}
	default:
		panic("exchange: invalid substream direction")
	}
}

// NegotiationFailed reports that the requested outbound substream could not
// be opened or negotiated. The outbound execution ends with a Left outcome
// wrapping ErrNegotiation, delivered by the next Poll. Nothing is retried.
func (h *Handler[I, O]) NegotiationFailed(err error) {
	h.log.WithError(err).Error("failed to upgrade outbound substream")
	if h.state != SlotOutboundRequested {
		return
	}
	h.req.consumed = true
	h.req = nil
	h.exec = execution[I, O]{dir: Outbound}
	h.exec.outResult = kont.Left[error, O](fmt.Errorf("%w: %w", ErrNegotiation, err))
	h.transition(SlotExecuting)
}

// Poll advances the handler.
//
// While executing, Poll drives the protocol until it blocks on the substream
// or completes; completion yields a HandlerOutcome event exactly once and
// moves to SlotDone. A parked outbound request yields one
// HandlerSubstreamRequest event. Otherwise Poll returns iox.ErrWouldBlock.
func (h *Handler[I, O]) Poll() (HandlerEvent[I, O], error) {
	switch h.state {
	case SlotExecuting:
		if err := h.exec.advance(); err != nil {
			return HandlerEvent[I, O]{}, err
		}
		out := h.exec.outcome()
		h.release()
		h.transition(SlotDone)
		if err := out.Err(); err != nil {
			h.log.WithError(err).WithField("direction", out.Direction).Debug("protocol failed")
		}
		return HandlerEvent[I, O]{Kind: HandlerOutcome, Outcome: out}, nil
	case SlotOutboundAwaitingSubstream:
		h.transition(SlotOutboundRequested)
		return HandlerEvent[I, O]{Kind: HandlerSubstreamRequest, Protocol: h.info}, nil
	}
	return HandlerEvent[I, O]{}, iox.ErrWouldBlock
}

// Close abandons the handler. A running protocol is discarded without
// resuming it, held substreams are closed, and no outcome is produced.
func (h *Handler[I, O]) Close() error {
	var err error
	if h.state == SlotExecuting {
		h.exec.discard()
	}
	if h.sub != nil {
		err = h.sub.close()
	}
	if h.exec.sub != nil {
		if cerr := h.exec.sub.close(); err == nil {
			err = cerr
		}
	}
	h.req, h.sub, h.exec = nil, nil, execution[I, O]{}
	h.state = SlotDone
	return err
}

// begin pairs req with s and starts the execution.
func (h *Handler[I, O]) begin(req *Request[I, O], s *Substream) {
	h.exec = req.start(s)
	h.req, h.sub = nil, nil
	h.transition(SlotExecuting)
}

// release closes the substream of a completed execution.
func (h *Handler[I, O]) release() {
	if h.exec.sub != nil {
		if err := h.exec.sub.close(); err != nil {
			h.log.WithError(err).Debug("failed to close substream")
		}
		h.exec.sub = nil
	}
}

func (h *Handler[I, O]) transition(to SlotState) {
	h.log.WithFields(logrus.Fields{"from": h.state, "to": to}).Trace("slot transition")
	h.state = to
}
