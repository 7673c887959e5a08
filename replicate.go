package drive

import (
	"context"
	"errors"
	"io"
	"slices"

	"github.com/meigma/drive/feed"
	"github.com/meigma/drive/protocol"
)

// Replicate returns a duplex stream that replicates the archive with the
// peer on the other end. Connect it to the peer's stream with
// protocol.Pipe or copy it over any transport.
//
// A writable archive serves every block it holds. A replica fetches the
// blocks its reads ask for, or everything with WithDownloadAll. Closing the
// archive ends the stream.
func (a *Archive) Replicate(opts ...ReplicateOption) *protocol.Stream {
	s, err := a.newSession(opts)
	st := protocol.NewStream(s)
	if err != nil {
		_ = st.Close()
	}
	return st
}

// ReplicateConn replicates over conn until the peer disconnects, ctx ends
// or the archive is closed.
func (a *Archive) ReplicateConn(ctx context.Context, conn io.ReadWriter, opts ...ReplicateOption) error {
	s, err := a.newSession(opts)
	if err != nil {
		return err
	}
	return mapError(s.Run(ctx, conn))
}

// newSession creates a session with every feed that has a key attached and
// tracks it so feeds learned later are attached too. On a closed archive
// the session is returned unattached together with ErrClosed.
func (a *Archive) newSession(opts []ReplicateOption) (*protocol.Session, error) {
	var cfg replicateConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	sopts := []protocol.Option{protocol.WithLogger(a.logger)}
	if cfg.downloadAll {
		sopts = append(sopts, protocol.WithDownloadAll())
	}
	s := protocol.NewSession(sopts...)

	a.mu.Lock()
	closed := a.closed
	if !closed {
		a.sessions = append(a.sessions, s)
	}
	content := a.content
	a.mu.Unlock()
	if closed {
		return s, ErrClosed
	}

	a.attach(s, protocol.ChannelMetadata, a.metadata)
	if content != nil {
		a.attach(s, protocol.ChannelContent, content)
	}
	go func() {
		<-s.Done()
		a.removeSession(s)
	}()
	if !a.writable {
		go func() {
			if err := a.ready(a.ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
				a.log().Warn("archive not ready", "session", s.ID(), "error", err)
			}
		}()
	}
	a.log().Debug("replication started", "session", s.ID(), "download_all", cfg.downloadAll)
	return s, nil
}

// attach replicates f on channel. Feeds without a key (a non-live archive
// before Finalize) are attached later.
func (a *Archive) attach(s *protocol.Session, channel uint8, f *feed.Feed) {
	if _, ok := f.DiscoveryKey(); !ok {
		return
	}
	if err := s.Attach(channel, f); err != nil && !errors.Is(err, protocol.ErrSessionClosed) {
		a.log().Warn("attach failed", "session", s.ID(), "feed", f.Name(), "error", err)
	}
}

func (a *Archive) removeSession(s *protocol.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessions = slices.DeleteFunc(a.sessions, func(x *protocol.Session) bool { return x == s })
}
