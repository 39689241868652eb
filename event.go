// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/kont"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Outcome is the terminal result of one execution. Only the field matching
// Direction is meaningful.
type Outcome[I, O any] struct {
	Direction Direction
	Inbound   kont.Either[error, I]
	Outbound  kont.Either[error, O]
}

// Err returns the error side of the outcome, or nil on success.
func (o Outcome[I, O]) Err() error {
	var (
		err error
		ok  bool
	)
	if o.Direction == Inbound {
		err, ok = o.Inbound.GetLeft()
	} else {
		err, ok = o.Outbound.GetLeft()
	}
	if !ok {
		return nil
	}
	return err
}

// HandlerEventKind discriminates HandlerEvent.
type HandlerEventKind uint8

const (
	// HandlerOutcome carries the terminal outcome of the execution.
	HandlerOutcome HandlerEventKind = iota + 1
	// HandlerSubstreamRequest asks the environment to negotiate an outbound
	// substream for Protocol and deliver it with InjectSubstream.
	HandlerSubstreamRequest
)

// HandlerEvent is produced by Handler.Poll.
type HandlerEvent[I, O any] struct {
	Kind     HandlerEventKind
	Protocol ProtocolInfo
	Outcome  Outcome[I, O]
}

// KeepAlive tells the environment whether an idle connection may be closed.
type KeepAlive uint8

const (
	// KeepAliveYes keeps the connection open for as long as the handler exists.
	KeepAliveYes KeepAlive = iota
	// KeepAliveNo lets the environment close the connection when idle.
	KeepAliveNo
)

// ActionKind discriminates Action.
type ActionKind uint8

const (
	// ActionNotifyHandler asks the environment to Submit Request to a handler
	// of a connection with Peer.
	ActionNotifyHandler ActionKind = iota + 1
	// ActionEvent delivers Event to the application.
	ActionEvent
)

// Action is produced by Behaviour.Poll.
type Action[I, O any] struct {
	Kind    ActionKind
	Peer    peer.ID
	Request *Request[I, O]
	Event   Event[I, O]
}

// Event is a peer-addressed outcome.
type Event[I, O any] struct {
	Peer peer.ID
	Outcome[I, O]
}
