package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/meigma/drive/feed"
)

// ErrDiscoveryMismatch is returned when the two sides of a channel opened
// different feeds.
var ErrDiscoveryMismatch = errors.New("protocol: discovery key mismatch")

// channel carries one feed inside a session. It implements feed.Peer for
// the remote side of that feed.
//
// Lock order is feed, then channel: feed.Peer methods run with the feed
// lock held and take ch.mu, so ch.mu is never held while calling the feed.
type channel struct {
	s  *Session
	id uint8

	mu              sync.Mutex
	feed            *feed.Feed
	remoteDiscovery []byte
	remoteHave      feed.Bitfield
	remoteLength    uint64
	pending         []uint64 // requests received before the feed attached
	remoteClosed    bool
}

// Interface compliance.
var _ feed.Peer = (*channel)(nil)

func newChannel(s *Session, id uint8) *channel {
	return &channel{s: s, id: id}
}

// HasBlock implements feed.Peer.
func (ch *channel) HasBlock(index uint64) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return !ch.remoteClosed && ch.remoteHave.Get(index)
}

// Request implements feed.Peer.
func (ch *channel) Request(index uint64) {
	ch.s.send(ch.id, TypeRequest, Request{Index: index})
}

// Cancel implements feed.Peer.
func (ch *channel) Cancel(index uint64) {
	ch.s.send(ch.id, TypeCancel, Cancel{Index: index})
}

// Announce implements feed.Peer.
func (ch *channel) Announce(index uint64) {
	ch.s.send(ch.id, TypeHave, Have{Ranges: []Range{{Start: index, Length: 1}}})
}

// Length implements feed.Peer.
func (ch *channel) Length() uint64 {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.remoteClosed {
		return 0
	}
	return ch.remoteLength
}

func (ch *channel) attached() *feed.Feed {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.feed
}

// attach binds f to the channel, opens it towards the remote and replays
// requests that arrived early.
func (ch *channel) attach(f *feed.Feed) error {
	discovery, ok := f.DiscoveryKey()
	if !ok {
		return fmt.Errorf("protocol: feed %s has no key yet", f.Name())
	}

	ch.mu.Lock()
	if ch.feed != nil {
		ch.mu.Unlock()
		return nil
	}
	remote := ch.remoteDiscovery
	ch.mu.Unlock()
	if remote != nil && !bytes.Equal(remote, discovery[:]) {
		return fmt.Errorf("%w on channel %d", ErrDiscoveryMismatch, ch.id)
	}

	f.AddPeer(ch)
	ch.s.send(ch.id, TypeOpen, Open{DiscoveryKey: discovery[:]})
	ch.s.send(ch.id, TypeHave, Have{Ranges: fromFeedRanges(f.Ranges()), FeedLength: f.Length()})

	ch.mu.Lock()
	ch.feed = f
	pending := ch.pending
	ch.pending = nil
	wanted := ch.remoteHave.Ranges(ch.remoteLength)
	ch.mu.Unlock()

	// Have frames that arrived between AddPeer and publishing the feed
	// did not trigger requests.
	f.PeerUpdated(ch)
	if ch.s.downloadAll {
		for _, r := range wanted {
			f.Want(r.Start, r.Start+r.Length)
		}
	}
	for _, index := range pending {
		ch.serve(f, index)
	}
	return nil
}

// detach unregisters the channel from its feed.
func (ch *channel) detach() {
	if f := ch.attached(); f != nil {
		f.RemovePeer(ch)
	}
}

func (ch *channel) onOpen(msg Open) error {
	ch.mu.Lock()
	ch.remoteDiscovery = msg.DiscoveryKey
	f := ch.feed
	ch.mu.Unlock()
	if f == nil {
		return nil
	}
	discovery, _ := f.DiscoveryKey()
	if !bytes.Equal(msg.DiscoveryKey, discovery[:]) {
		return fmt.Errorf("%w on channel %d", ErrDiscoveryMismatch, ch.id)
	}
	return nil
}

func (ch *channel) onHave(msg Have) error {
	if msg.FeedLength > feed.MaxLength {
		return fmt.Errorf("%w: have on channel %d: length %d", ErrMalformedFrame, ch.id, msg.FeedLength)
	}
	for _, r := range msg.Ranges {
		if r.Length > feed.MaxLength || r.Start > feed.MaxLength-r.Length {
			return fmt.Errorf("%w: have on channel %d: range %d+%d", ErrMalformedFrame, ch.id, r.Start, r.Length)
		}
	}

	ch.mu.Lock()
	var end uint64
	for _, r := range msg.Ranges {
		ch.remoteHave.SetRange(r.Start, r.Length)
		end = max(end, r.Start+r.Length)
	}
	ch.remoteLength = max(ch.remoteLength, msg.FeedLength, end)
	f := ch.feed
	ch.mu.Unlock()
	if f == nil {
		return nil
	}
	if ch.s.downloadAll {
		for _, r := range msg.Ranges {
			f.Want(r.Start, r.Start+r.Length)
		}
	}
	f.PeerUpdated(ch)
	return nil
}

func (ch *channel) onRequest(msg Request) {
	ch.mu.Lock()
	f := ch.feed
	if f == nil {
		ch.pending = append(ch.pending, msg.Index)
	}
	ch.mu.Unlock()
	if f != nil {
		ch.serve(f, msg.Index)
	}
}

func (ch *channel) onCancel(msg Cancel) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	for i, index := range ch.pending {
		if index == msg.Index {
			ch.pending = append(ch.pending[:i], ch.pending[i+1:]...)
			return
		}
	}
}

func (ch *channel) onData(msg Data) error {
	f := ch.attached()
	if f == nil {
		// Never requested; nothing to verify it against.
		return nil
	}
	value, proof, err := msg.block()
	if err != nil {
		return err
	}
	if err := f.Put(msg.Index, value, proof); err != nil {
		if errors.Is(err, feed.ErrClosed) {
			return nil
		}
		return fmt.Errorf("protocol: channel %d block %d: %w", ch.id, msg.Index, err)
	}
	return nil
}

func (ch *channel) onClose() {
	ch.mu.Lock()
	ch.remoteClosed = true
	f := ch.feed
	ch.mu.Unlock()
	if f != nil {
		f.RemovePeer(ch)
	}
}

// serve answers a request with the block and its proof. Blocks that are
// missing or cannot be proven are skipped; the remote re-requests them from
// another peer.
func (ch *channel) serve(f *feed.Feed, index uint64) {
	value, err := f.Block(index)
	if err != nil {
		ch.s.log().Debug("request for missing block", "channel", ch.id, "index", index, "error", err)
		return
	}
	proof, err := f.Proof(index)
	if err != nil {
		ch.s.log().Debug("cannot prove block", "channel", ch.id, "index", index, "error", err)
		return
	}
	ch.s.send(ch.id, TypeData, newData(index, value, proof))
}
