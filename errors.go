// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import "errors"

var (
	// ErrFrameTooLarge is returned by ReadMessage when the length prefix
	// announces more bytes than the caller allowed.
	ErrFrameTooLarge = errors.New("exchange: frame too large")

	// ErrMalformedFrame is returned when a length prefix overflows 63 bits
	// or is not minimally encoded.
	ErrMalformedFrame = errors.New("exchange: malformed length prefix")

	// ErrInvalidLimit is returned by ReadChunk when Max is not positive.
	ErrInvalidLimit = errors.New("exchange: invalid read limit")

	// ErrNegotiation wraps failures to negotiate or open a substream.
	// It is delivered as the terminal outcome of the affected execution.
	ErrNegotiation = errors.New("exchange: substream negotiation failed")

	// ErrProtocolMismatch is returned when a negotiated substream carries
	// a protocol other than the one the handler serves.
	ErrProtocolMismatch = errors.New("exchange: protocol mismatch")
)
