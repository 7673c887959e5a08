package protocol

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/drive/feed"
)

var (
	// ErrVersion is returned when the remote speaks another protocol version.
	ErrVersion = errors.New("protocol: unsupported version")

	// ErrSessionClosed is returned when attaching a feed to a session that
	// has ended.
	ErrSessionClosed = errors.New("protocol: session closed")
)

// Option configures a Session.
type Option func(*Session)

// WithDownloadAll makes the session fetch every block the remote announces
// instead of only the blocks local readers ask for.
func WithDownloadAll() Option {
	return func(s *Session) {
		s.downloadAll = true
	}
}

// WithLogger sets the logger for session events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session replicates up to two feeds with one remote peer.
//
// Feeds are attached per channel with Attach, before or after Run starts.
// When the session ends every attached feed drops the remote as a peer, so
// reads still waiting on it fail with feed.ErrPeerUnavailable unless
// another peer can serve them.
type Session struct {
	id          []byte
	channels    [numChannels]*channel
	out         *outbox
	downloadAll bool
	logger      *slog.Logger

	mu    sync.Mutex
	ended bool

	abortOnce sync.Once
	aborted   chan struct{}
	abortErr  error
	closing   atomic.Bool
	handshake atomic.Bool

	done chan struct{}
	err  error
}

// NewSession returns a session with no feeds attached.
func NewSession(opts ...Option) *Session {
	s := &Session{
		id:      make([]byte, 16),
		out:     newOutbox(),
		aborted: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	_, _ = rand.Read(s.id)
	for i := range s.channels {
		s.channels[i] = newChannel(s, uint8(i)) //nolint:gosec // numChannels fits in a byte
	}
	s.send(0, TypeHandshake, Handshake{Version: ProtocolVersion, ID: s.id})
	return s
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Session) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// ID returns the random session identifier sent in the handshake.
func (s *Session) ID() string {
	return hex.EncodeToString(s.id)
}

// Attach replicates f on channel. Attaching a second feed to a channel is a
// no-op. A discovery key that does not match the remote's aborts the
// session.
func (s *Session) Attach(channel uint8, f *feed.Feed) error {
	if int(channel) >= numChannels {
		return fmt.Errorf("protocol: no channel %d", channel)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrSessionClosed
	}
	if err := s.channels[channel].attach(f); err != nil {
		s.abort(err)
		return err
	}
	s.log().Debug("feed attached", "session", s.ID(), "channel", channel, "feed", f.Name())
	return nil
}

// Attached reports whether a feed is attached to channel.
func (s *Session) Attached(channel uint8) bool {
	if int(channel) >= numChannels {
		return false
	}
	return s.channels[channel].attached() != nil
}

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error Run ended with, once Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close ends the session gracefully: it tells the remote every channel is
// closing and stops sending once queued frames are written.
func (s *Session) Close() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}
	for _, ch := range s.channels {
		if ch.attached() != nil {
			s.send(ch.id, TypeClose, Close{})
		}
	}
	s.out.close()
}

// send queues a message. Frames sent after the session stopped writing are
// dropped.
func (s *Session) send(channel uint8, typ MessageType, msg any) {
	buf, err := encodeFrame(channel, typ, msg)
	if err != nil {
		s.abort(err)
		return
	}
	s.out.push(buf)
}

// abort ends the session with err.
func (s *Session) abort(err error) {
	s.abortOnce.Do(func() {
		s.abortErr = err
		close(s.aborted)
	})
}

// Run drives the session over conn until the remote closes its side, ctx
// ends, or a protocol error occurs. A clean end of stream returns nil.
// Run must be called at most once.
func (s *Session) Run(ctx context.Context, conn io.ReadWriter) error {
	s.log().Debug("session started", "session", s.ID())

	readerDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(readerDone)
		defer s.out.close()
		err := s.readLoop(conn)
		if err != nil && s.closing.Load() {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return s.writeLoop(gctx, conn)
	})
	g.Go(func() error {
		select {
		case <-readerDone:
			return nil
		case <-s.aborted:
			closeConn(conn)
			return s.abortErr
		case <-gctx.Done():
			closeConn(conn)
			return nil
		}
	})
	err := g.Wait()
	if ctx.Err() != nil {
		err = ctx.Err()
	}

	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	for _, ch := range s.channels {
		ch.detach()
	}

	if err != nil {
		s.log().Debug("session failed", "session", s.ID(), "error", err)
	} else {
		s.log().Debug("session ended", "session", s.ID())
	}
	s.err = err
	close(s.done)
	return err
}

func (s *Session) writeLoop(ctx context.Context, w io.Writer) error {
	for {
		frame, ok := s.out.pop(ctx)
		if !ok {
			s.closing.Store(true)
			closeWrite(w)
			return nil
		}
		if _, err := w.Write(frame); err != nil {
			if s.closing.Load() || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("protocol: write frame: %w", err)
		}
	}
}

func (s *Session) readLoop(r io.Reader) error {
	for {
		fr, err := readFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := s.dispatch(fr); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(fr frame) error {
	if fr.typ == TypeHandshake {
		var msg Handshake
		if err := unmarshal(fr.body, &msg); err != nil {
			return fmt.Errorf("%w: handshake: %w", ErrMalformedFrame, err)
		}
		if msg.Version != ProtocolVersion {
			return fmt.Errorf("%w: %d", ErrVersion, msg.Version)
		}
		s.handshake.Store(true)
		s.log().Debug("handshake", "session", s.ID(), "remote", hex.EncodeToString(msg.ID))
		return nil
	}
	if !s.handshake.Load() {
		return fmt.Errorf("%w: %s before handshake", ErrMalformedFrame, fr.typ)
	}
	if int(fr.channel) >= numChannels {
		return fmt.Errorf("%w: channel %d", ErrMalformedFrame, fr.channel)
	}
	ch := s.channels[fr.channel]

	switch fr.typ {
	case TypeOpen:
		var msg Open
		if err := decodeBody(fr, &msg); err != nil {
			return err
		}
		return ch.onOpen(msg)
	case TypeHave:
		var msg Have
		if err := decodeBody(fr, &msg); err != nil {
			return err
		}
		return ch.onHave(msg)
	case TypeRequest:
		var msg Request
		if err := decodeBody(fr, &msg); err != nil {
			return err
		}
		ch.onRequest(msg)
	case TypeCancel:
		var msg Cancel
		if err := decodeBody(fr, &msg); err != nil {
			return err
		}
		ch.onCancel(msg)
	case TypeData:
		var msg Data
		if err := decodeBody(fr, &msg); err != nil {
			return err
		}
		return ch.onData(msg)
	case TypeClose:
		ch.onClose()
	default:
		s.log().Debug("ignoring unknown message", "session", s.ID(), "type", fr.typ)
	}
	return nil
}

func decodeBody(fr frame, v any) error {
	if err := unmarshal(fr.body, v); err != nil {
		return fmt.Errorf("%w: %s on channel %d: %w", ErrMalformedFrame, fr.typ, fr.channel, err)
	}
	return nil
}

func closeWrite(w io.Writer) {
	if cw, ok := w.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
}

func closeConn(conn io.ReadWriter) {
	if c, ok := conn.(io.Closer); ok {
		_ = c.Close()
	}
}
