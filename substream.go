// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"errors"
	"fmt"
	"io"

	"code.hybscloud.com/iox"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-varint"
)

// readChunkSize bounds a single read from the underlying stream.
const readChunkSize = 4096

// Substream is a negotiated stream bound to one protocol and one direction.
//
// Substream keeps the partial state of framed I/O across iox.ErrWouldBlock
// boundaries, so an interrupted ReadMessage or WriteMessage resumes where it
// stopped when dispatched again. At most one operation is in flight at a time:
// a protocol has exactly one pending suspension.
type Substream struct {
	stream   Stream
	dir      Direction
	protocol protocol.ID

	rbuf    []byte
	rchunk  []byte
	wbuf    []byte
	writing bool
}

// NewSubstream wraps a stream that finished negotiating id.
func NewSubstream(dir Direction, id protocol.ID, s Stream) *Substream {
	return &Substream{stream: s, dir: dir, protocol: id}
}

// Direction returns whether the substream was opened by the remote or the local side.
func (s *Substream) Direction() Direction {
	return s.dir
}

// Protocol returns the negotiated protocol name.
func (s *Substream) Protocol() protocol.ID {
	return s.protocol
}

// Stream returns the raw stream for protocols that use their own framing.
// Bytes already buffered by ReadMessage are not visible through it.
func (s *Substream) Stream() Stream {
	return s.stream
}

// writeFrame queues a length-prefixed frame and flushes as much as the stream accepts.
func (s *Substream) writeFrame(msg []byte) error {
	if !s.writing {
		var prefix [varint.MaxLenUvarint63]byte
		n := varint.PutUvarint(prefix[:], uint64(len(msg)))
		s.wbuf = append(append(s.wbuf[:0], prefix[:n]...), msg...)
		s.writing = true
	}
	return s.flush()
}

// writeAll queues raw bytes and flushes as much as the stream accepts.
func (s *Substream) writeAll(p []byte) error {
	if !s.writing {
		s.wbuf = append(s.wbuf[:0], p...)
		s.writing = true
	}
	return s.flush()
}

func (s *Substream) flush() error {
	for len(s.wbuf) > 0 {
		n, err := s.stream.Write(s.wbuf)
		s.wbuf = s.wbuf[n:]
		if err != nil {
			if !iox.IsWouldBlock(err) {
				s.wbuf, s.writing = s.wbuf[:0], false
			}
			return err
		}
	}
	s.writing = false
	return nil
}

// readFrame returns the next complete frame of at most max payload bytes.
func (s *Substream) readFrame(max int) ([]byte, error) {
	for {
		msg, ok, err := s.parseFrame(max)
		if err != nil || ok {
			return msg, err
		}
		if err := s.fill(); err != nil {
			return nil, err
		}
	}
}

func (s *Substream) parseFrame(max int) ([]byte, bool, error) {
	size, k, err := varint.FromUvarint(s.rbuf)
	if errors.Is(err, varint.ErrUnderflow) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if max < 0 || size > uint64(max) {
		return nil, false, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, size, max)
	}
	end := k + int(size)
	if len(s.rbuf) < end {
		return nil, false, nil
	}
	msg := make([]byte, size)
	copy(msg, s.rbuf[k:end])
	s.rbuf = s.rbuf[end:]
	return msg, true, nil
}

// readChunk returns buffered bytes first, then at most one read from the stream.
func (s *Substream) readChunk(max int) ([]byte, error) {
	if max <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, max)
	}
	if len(s.rbuf) == 0 {
		if err := s.fill(); err != nil {
			return nil, err
		}
	}
	n := min(max, len(s.rbuf))
	chunk := make([]byte, n)
	copy(chunk, s.rbuf)
	s.rbuf = s.rbuf[n:]
	return chunk, nil
}

func (s *Substream) fill() error {
	if s.rchunk == nil {
		s.rchunk = make([]byte, readChunkSize)
	}
	n, err := s.stream.Read(s.rchunk)
	s.rbuf = append(s.rbuf, s.rchunk[:n]...)
	if n > 0 {
		return nil
	}
	if err == io.EOF && len(s.rbuf) > 0 {
		return io.ErrUnexpectedEOF
	}
	if err == nil {
		return iox.ErrWouldBlock
	}
	return err
}

// close releases the underlying stream.
func (s *Substream) close() error {
	return s.stream.Close()
}
