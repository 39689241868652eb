// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"io"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// pipeCapacity is the bounded number of in-flight chunks per pipe direction.
const pipeCapacity = 4

// Stream is a duplex byte stream handed out by the multiplexer.
// Read and Write are non-blocking: they return iox.ErrWouldBlock when
// no progress can be made without waiting on the remote side.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// pipeEnd is one side of an in-memory stream pair.
// Each direction is a single-producer single-consumer bounded queue of chunks.
type pipeEnd struct {
	sendQ      *lfq.SPSC[[]byte]
	recvQ      *lfq.SPSC[[]byte]
	sendClosed *atomix.Uint32
	recvClosed *atomix.Uint32
	sendSlot   []byte
	pending    []byte
}

// pipePair holds both ends, queues, and close flags in a single allocation.
type pipePair struct {
	a        pipeEnd
	b        pipeEnd
	closedA  atomix.Uint32
	closedB  atomix.Uint32
	chunksAB lfq.SPSC[[]byte]
	chunksBA lfq.SPSC[[]byte]
}

// Pipe creates a connected pair of in-memory streams.
// Bytes written to one end are read from the other in order.
// Closing an end lets the other drain buffered chunks before it observes io.EOF.
func Pipe() (Stream, Stream) {
	pair := &pipePair{}
	pair.chunksAB.Init(pipeCapacity)
	pair.chunksBA.Init(pipeCapacity)

	pair.a = pipeEnd{
		sendQ:      &pair.chunksAB,
		recvQ:      &pair.chunksBA,
		sendClosed: &pair.closedA,
		recvClosed: &pair.closedB,
	}
	pair.b = pipeEnd{
		sendQ:      &pair.chunksBA,
		recvQ:      &pair.chunksAB,
		sendClosed: &pair.closedB,
		recvClosed: &pair.closedA,
	}
	return &pair.a, &pair.b
}

// Read implements io.Reader. Returns iox.ErrWouldBlock when no chunk is queued.
func (e *pipeEnd) Read(p []byte) (int, error) {
	if len(e.pending) == 0 {
		chunk, err := e.recvQ.Dequeue()
		if err != nil {
			if e.recvClosed.Load() == 0 {
				return 0, iox.ErrWouldBlock
			}
			// The peer enqueues before it raises its close flag.
			if chunk, err = e.recvQ.Dequeue(); err != nil {
				return 0, io.EOF
			}
		}
		e.pending = chunk
	}
	n := copy(p, e.pending)
	e.pending = e.pending[n:]
	return n, nil
}

// Write implements io.Writer. The whole of p is queued as one chunk,
// or nothing is written and iox.ErrWouldBlock is returned.
func (e *pipeEnd) Write(p []byte) (int, error) {
	if e.sendClosed.Load() != 0 || e.recvClosed.Load() != 0 {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}
	e.sendSlot = append([]byte(nil), p...)
	if err := e.sendQ.Enqueue(&e.sendSlot); err != nil {
		return 0, iox.ErrWouldBlock
	}
	return len(p), nil
}

// Close marks this end closed. Idempotent.
func (e *pipeEnd) Close() error {
	e.sendClosed.Store(1)
	return nil
}

// blockingStream waits past iox.ErrWouldBlock with adaptive backoff.
type blockingStream struct {
	s Stream
}

// Blocking returns a view of s whose Read and Write wait on iox.ErrWouldBlock
// with iox.Backoff instead of returning it. Negotiation collaborators that
// expect blocking I/O run on this view; protocol execution uses s directly.
func Blocking(s Stream) io.ReadWriteCloser {
	if b, ok := s.(blockingStream); ok {
		return b
	}
	return blockingStream{s: s}
}

func (b blockingStream) Read(p []byte) (int, error) {
	var bo iox.Backoff
	for {
		n, err := b.s.Read(p)
		if !iox.IsWouldBlock(err) {
			return n, err
		}
		bo.Wait()
	}
}

func (b blockingStream) Write(p []byte) (int, error) {
	var bo iox.Backoff
	written := 0
	for written < len(p) {
		n, err := b.s.Write(p[written:])
		written += n
		if err == nil {
			bo.Reset()
			continue
		}
		if !iox.IsWouldBlock(err) {
			return written, err
		}
		bo.Wait()
	}
	return written, nil
}

func (b blockingStream) Close() error {
	return b.s.Close()
}
