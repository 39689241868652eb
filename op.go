// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// substreamDispatcher is the structural interface for substream operations.
// DispatchSubstream is non-blocking: it returns iox.ErrWouldBlock at the
// I/O boundary and reports every other failure as a Left resumption.
type substreamDispatcher interface {
	DispatchSubstream(s *Substream) (kont.Resumed, error)
}

// done is the pre-boxed successful resumption for unit-valued operations.
var done kont.Resumed = kont.Right[error, struct{}](struct{}{})

// resumeUnit converts the outcome of a unit-valued operation into a resumption.
func resumeUnit(err error) (kont.Resumed, error) {
	if err == nil {
		return done, nil
	}
	if iox.IsWouldBlock(err) {
		return nil, err
	}
	return kont.Left[error, struct{}](err), nil
}

// resumeBytes converts the outcome of a read operation into a resumption.
func resumeBytes(b []byte, err error) (kont.Resumed, error) {
	if err == nil {
		return kont.Right[error, []byte](b), nil
	}
	if iox.IsWouldBlock(err) {
		return nil, err
	}
	return kont.Left[error, []byte](err), nil
}

// WriteMessage is the effect operation for writing one length-prefixed frame.
// Perform(WriteMessage{Data: b}) resumes with Right on success or Left
// with the transport error.
type WriteMessage struct {
	kont.Phantom[kont.Either[error, struct{}]]
	Data []byte
}

// DispatchSubstream handles WriteMessage on the substream.
// Non-blocking: a partially flushed frame is kept and resumed on retry.
func (w WriteMessage) DispatchSubstream(s *Substream) (kont.Resumed, error) {
	return resumeUnit(s.writeFrame(w.Data))
}

// ReadMessage is the effect operation for reading one length-prefixed frame
// of at most Max payload bytes. Resumes with Left on ErrFrameTooLarge,
// ErrMalformedFrame, io.EOF, io.ErrUnexpectedEOF or a transport error.
type ReadMessage struct {
	kont.Phantom[kont.Either[error, []byte]]
	Max int
}

// DispatchSubstream handles ReadMessage on the substream.
// Non-blocking: returns iox.ErrWouldBlock until a complete frame is buffered.
func (r ReadMessage) DispatchSubstream(s *Substream) (kont.Resumed, error) {
	return resumeBytes(s.readFrame(r.Max))
}

// WriteAll is the effect operation for writing raw bytes without framing.
type WriteAll struct {
	kont.Phantom[kont.Either[error, struct{}]]
	Data []byte
}

// DispatchSubstream handles WriteAll on the substream.
func (w WriteAll) DispatchSubstream(s *Substream) (kont.Resumed, error) {
	return resumeUnit(s.writeAll(w.Data))
}

// ReadChunk is the effect operation for reading whatever raw bytes are
// available, at most Max. Resumes with Left(io.EOF) once the remote closed
// and with Left(ErrInvalidLimit) when Max is not positive.
type ReadChunk struct {
	kont.Phantom[kont.Either[error, []byte]]
	Max int
}

// DispatchSubstream handles ReadChunk on the substream.
func (r ReadChunk) DispatchSubstream(s *Substream) (kont.Resumed, error) {
	return resumeBytes(s.readChunk(r.Max))
}

// Close is the effect operation for closing the substream.
// Never blocks.
type Close struct {
	kont.Phantom[kont.Either[error, struct{}]]
}

// DispatchSubstream handles Close on the substream.
func (Close) DispatchSubstream(s *Substream) (kont.Resumed, error) {
	return resumeUnit(s.close())
}
