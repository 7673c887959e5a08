package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/drive/feed"
)

func newSourceFeed(t *testing.T, n int) *feed.Feed {
	t.Helper()
	f, err := feed.Create("source", feed.Storage{})
	require.NoError(t, err)
	for i := range n {
		_, err := f.Append(fmt.Appendf(nil, "block %d", i))
		require.NoError(t, err)
	}
	return f
}

func newClone(t *testing.T, src *feed.Feed) *feed.Feed {
	t.Helper()
	f, err := feed.Clone("clone", src.Key(), feed.Storage{})
	require.NoError(t, err)
	return f
}

// connect pipes two sessions together and closes them at test end.
func connect(t *testing.T, a, b *Session) (*Stream, *Stream) {
	t.Helper()
	sa, sb := NewStream(a), NewStream(b)
	Pipe(sa, sb)
	t.Cleanup(func() {
		_ = sa.Close()
		_ = sb.Close()
	})
	return sa, sb
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSessionReplicates(t *testing.T) {
	t.Parallel()

	src := newSourceFeed(t, 5)
	dst := newClone(t, src)

	a, b := NewSession(), NewSession()
	require.NoError(t, a.Attach(ChannelMetadata, src))
	require.NoError(t, b.Attach(ChannelMetadata, dst))
	connect(t, a, b)

	ctx := testContext(t)
	got, err := dst.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("block 3"), got)
	assert.Equal(t, uint64(1), dst.CountRange(0, 5))

	require.NoError(t, dst.Download(ctx, 0, 5))
	assert.Equal(t, uint64(5), dst.CountRange(0, 5))

	// Blocks appended while connected are announced and fetched on demand.
	_, err = src.Append([]byte("late"))
	require.NoError(t, err)
	got, err = dst.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), got)
}

func TestSessionLateAttach(t *testing.T) {
	t.Parallel()

	meta := newSourceFeed(t, 2)
	content := newSourceFeed(t, 3)
	metaClone := newClone(t, meta)

	a, b := NewSession(), NewSession()
	require.NoError(t, a.Attach(ChannelMetadata, meta))
	require.NoError(t, a.Attach(ChannelContent, content))
	require.NoError(t, b.Attach(ChannelMetadata, metaClone))
	connect(t, a, b)

	ctx := testContext(t)
	_, err := metaClone.Get(ctx, 0)
	require.NoError(t, err)
	assert.False(t, b.Attached(ChannelContent))

	// The content key is only known now; the remote's Open and Have
	// frames were held for the channel.
	contentClone := newClone(t, content)
	require.NoError(t, b.Attach(ChannelContent, contentClone))
	got, err := contentClone.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("block 2"), got)
}

func TestSessionDownloadAll(t *testing.T) {
	t.Parallel()

	src := newSourceFeed(t, 8)
	dst := newClone(t, src)

	a, b := NewSession(), NewSession(WithDownloadAll())
	require.NoError(t, a.Attach(ChannelContent, src))
	require.NoError(t, b.Attach(ChannelContent, dst))
	connect(t, a, b)

	require.Eventually(t, func() bool {
		return dst.CountRange(0, 8) == 8
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, src.ByteLength(), dst.ByteLength())
}

func TestSessionDiscoveryMismatch(t *testing.T) {
	t.Parallel()

	a, b := NewSession(), NewSession()
	require.NoError(t, a.Attach(ChannelMetadata, newSourceFeed(t, 1)))
	require.NoError(t, b.Attach(ChannelMetadata, newSourceFeed(t, 1)))
	connect(t, a, b)

	waitDone(t, a)
	waitDone(t, b)
	// Whichever side reads the other's Open first aborts; the other may
	// only see the stream end.
	assert.True(t,
		errors.Is(a.Err(), ErrDiscoveryMismatch) || errors.Is(b.Err(), ErrDiscoveryMismatch),
		"a: %v, b: %v", a.Err(), b.Err())
}

func TestSessionPeerUnavailable(t *testing.T) {
	t.Parallel()

	src := newSourceFeed(t, 2)
	dst := newClone(t, src)

	a, b := NewSession(), NewSession()
	require.NoError(t, a.Attach(ChannelMetadata, src))
	require.NoError(t, b.Attach(ChannelMetadata, dst))
	sa, _ := connect(t, a, b)

	ctx := testContext(t)
	_, err := dst.Get(ctx, 0)
	require.NoError(t, err)

	// Block 9 does not exist yet, so the read waits on the peer.
	done := make(chan error, 1)
	go func() {
		_, err := dst.Get(ctx, 9)
		done <- err
	}()
	require.Eventually(t, func() bool { return dst.Peers() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, sa.Close())
	waitDone(t, b)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, feed.ErrPeerUnavailable)
	case <-time.After(5 * time.Second):
		t.Fatal("read did not fail after the peer left")
	}
}

func TestSessionSelfPair(t *testing.T) {
	t.Parallel()

	f := newSourceFeed(t, 3)
	a, b := NewSession(), NewSession()
	require.NoError(t, a.Attach(ChannelMetadata, f))
	require.NoError(t, b.Attach(ChannelMetadata, f))
	connect(t, a, b)

	require.Eventually(t, func() bool { return f.Peers() == 2 }, time.Second, time.Millisecond)
	_, err := f.Append([]byte("more"))
	require.NoError(t, err)

	a.Close()
	waitDone(t, a)
	waitDone(t, b)
	assert.NoError(t, a.Err())
	assert.NoError(t, b.Err())
	assert.Equal(t, uint64(4), f.Length())
	assert.Equal(t, 0, f.Peers())
}

func TestSessionVersionMismatch(t *testing.T) {
	t.Parallel()

	s := NewSession()
	st := NewStream(s)
	t.Cleanup(func() { _ = st.Close() })
	go func() { _, _ = io.Copy(io.Discard, st) }()

	frame, err := encodeFrame(0, TypeHandshake, Handshake{Version: 99})
	require.NoError(t, err)
	_, _ = st.Write(frame)

	waitDone(t, s)
	assert.ErrorIs(t, s.Err(), ErrVersion)
}

func TestSessionAttachAfterEnd(t *testing.T) {
	t.Parallel()

	s := NewSession()
	st := NewStream(s)
	require.NoError(t, st.Close())
	assert.ErrorIs(t, s.Attach(ChannelMetadata, newSourceFeed(t, 1)), ErrSessionClosed)
}

func TestSessionRejectsOutOfRangeHave(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		have Have
	}{
		{"start beyond max length", Have{Ranges: []Range{{Start: 1 << 60, Length: 1}}}},
		{"length beyond max length", Have{Ranges: []Range{{Start: 0, Length: 1 << 34}}}},
		{"end overflows", Have{Ranges: []Range{{Start: math.MaxUint64 - 1, Length: 5}}}},
		{"end just past max length", Have{Ranges: []Range{{Start: feed.MaxLength - 1, Length: 2}}}},
		{"feed length beyond max length", Have{FeedLength: feed.MaxLength + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newSourceFeed(t, 1)
			s := NewSession()
			require.NoError(t, s.Attach(ChannelMetadata, src))
			st := NewStream(s)
			t.Cleanup(func() { _ = st.Close() })
			go func() { _, _ = io.Copy(io.Discard, st) }()

			discovery, _ := src.DiscoveryKey()
			for _, msg := range []struct {
				typ  MessageType
				body any
			}{
				{TypeHandshake, Handshake{Version: ProtocolVersion}},
				{TypeOpen, Open{DiscoveryKey: discovery[:]}},
				{TypeHave, tt.have},
			} {
				frame, err := encodeFrame(ChannelMetadata, msg.typ, msg.body)
				require.NoError(t, err)
				_, _ = st.Write(frame)
			}

			waitDone(t, s)
			assert.ErrorIs(t, s.Err(), ErrMalformedFrame)
		})
	}
}

func TestSessionAcceptsHaveAtMaxLength(t *testing.T) {
	t.Parallel()

	src := newSourceFeed(t, 1)
	s := NewSession()
	require.NoError(t, s.Attach(ChannelMetadata, src))
	st := NewStream(s)
	t.Cleanup(func() { _ = st.Close() })
	go func() { _, _ = io.Copy(io.Discard, st) }()

	discovery, _ := src.DiscoveryKey()
	for _, msg := range []struct {
		typ  MessageType
		body any
	}{
		{TypeHandshake, Handshake{Version: ProtocolVersion}},
		{TypeOpen, Open{DiscoveryKey: discovery[:]}},
		{TypeHave, Have{Ranges: []Range{{Start: feed.MaxLength - 1, Length: 1}}, FeedLength: feed.MaxLength}},
	} {
		frame, err := encodeFrame(ChannelMetadata, msg.typ, msg.body)
		require.NoError(t, err)
		_, err = st.Write(frame)
		require.NoError(t, err)
	}

	// Closing our side ends the session cleanly once every frame was read.
	require.NoError(t, st.CloseWrite())
	waitDone(t, s)
	assert.NoError(t, s.Err())
}
