package protocol

import (
	"context"
	"io"
)

// Stream is an in-process duplex endpoint for a Session. Bytes written to
// the stream are read by the session; bytes the session sends are read from
// the stream. Connect two streams with Pipe, or copy to and from any
// transport.
type Stream struct {
	session *Session
	inR     *io.PipeReader
	inW     *io.PipeWriter
	outR    *io.PipeReader
	outW    *io.PipeWriter
	cancel  context.CancelFunc
}

// Interface compliance.
var _ io.ReadWriteCloser = (*Stream)(nil)

// NewStream starts s on a new Stream. The session runs until the stream is
// closed, its write side is closed, or the session fails.
func NewStream(s *Session) *Stream {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	st := &Stream{
		session: s,
		inR:     inR,
		inW:     inW,
		outR:    outR,
		outW:    outW,
		cancel:  cancel,
	}
	go func() {
		defer cancel()
		err := s.Run(ctx, pipeConn{r: inR, w: outW})
		_ = inR.CloseWithError(io.ErrClosedPipe)
		_ = outW.CloseWithError(err)
	}()
	return st
}

// Session returns the session driven by the stream.
func (st *Stream) Session() *Session {
	return st.session
}

// Read returns bytes the session sends to the remote.
func (st *Stream) Read(p []byte) (int, error) {
	return st.outR.Read(p)
}

// Write delivers bytes received from the remote to the session.
func (st *Stream) Write(p []byte) (int, error) {
	return st.inW.Write(p)
}

// CloseWrite signals that the remote will send nothing more.
func (st *Stream) CloseWrite() error {
	return st.inW.Close()
}

// Close stops the session and waits for it to end.
func (st *Stream) Close() error {
	st.cancel()
	_ = st.inW.Close()
	_ = st.outR.Close()
	<-st.session.Done()
	return nil
}

// Done is closed when the session ends.
func (st *Stream) Done() <-chan struct{} {
	return st.session.Done()
}

// Err returns the session error once Done is closed.
func (st *Stream) Err() error {
	return st.session.Err()
}

// pipeConn is the session side of a Stream.
type pipeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (c pipeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c pipeConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c pipeConn) CloseWrite() error           { return c.w.Close() }

func (c pipeConn) Close() error {
	_ = c.r.Close()
	return c.w.Close()
}

// Pipe connects a and b in both directions, like piping two replication
// streams into each other. When one side stops sending, the other side's
// write half is closed.
func Pipe(a, b io.ReadWriter) {
	go pump(b, a)
	go pump(a, b)
}

// pump copies src into dst. If dst stops accepting bytes, src is drained so
// its session can finish writing and end.
func pump(dst io.Writer, src io.Reader) {
	_, err := io.Copy(dst, src)
	if cw, ok := dst.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	} else if c, ok := dst.(io.Closer); ok {
		_ = c.Close()
	}
	if err != nil {
		_, _ = io.Copy(io.Discard, src)
	}
}
