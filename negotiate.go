// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multistream"
)

// ProtocolInfo names the single protocol every substream of a handler speaks,
// e.g. "/foo/bar/1.0.0".
type ProtocolInfo struct {
	ID protocol.ID
}

// UpgradeInbound negotiates ID as listener with multistream-select over s
// and returns the inbound substream. Blocks until negotiation finishes;
// call it from the negotiation layer, never from a poll loop.
func (p ProtocolInfo) UpgradeInbound(s Stream) (*Substream, error) {
	mux := multistream.NewMultistreamMuxer[protocol.ID]()
	mux.AddHandler(p.ID, nil)
	id, _, err := mux.Negotiate(Blocking(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	if id != p.ID {
		return nil, fmt.Errorf("%w: %w: got %s, want %s", ErrNegotiation, ErrProtocolMismatch, id, p.ID)
	}
	return NewSubstream(Inbound, p.ID, s), nil
}

// UpgradeOutbound negotiates ID as dialer with multistream-select over s
// and returns the outbound substream. Blocks until negotiation finishes.
func (p ProtocolInfo) UpgradeOutbound(s Stream) (*Substream, error) {
	if err := multistream.SelectProtoOrFail(p.ID, Blocking(s)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNegotiation, err)
	}
	return NewSubstream(Outbound, p.ID, s), nil
}
