package feed

import "context"

// Peer is a remote replica a feed can fetch blocks from and announce blocks
// to. Methods are called with the feed lock held and must not block or call
// back into the feed.
type Peer interface {
	// HasBlock reports whether the remote announced block index.
	HasBlock(index uint64) bool

	// Request asks the remote for block index and its proof.
	Request(index uint64)

	// Cancel withdraws an earlier request.
	Cancel(index uint64)

	// Announce tells the remote that block index is now present locally.
	Announce(index uint64)

	// Length returns the feed length the remote last announced.
	Length() uint64
}

// AddPeer registers p as a source for missing blocks and immediately asks it
// for any wanted blocks it already announced.
func (f *Feed) AddPeer(p Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.peers = append(f.peers, p)
	f.log().Debug("peer added", "feed", f.name, "peers", len(f.peers))
	f.requestFromLocked(p)
}

// RemovePeer unregisters p. Requests in flight to p are re-sent to other
// peers; when no peer remains every waiter fails with ErrPeerUnavailable.
func (f *Feed) RemovePeer(p Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	for i, q := range f.peers {
		if q == p {
			f.peers = append(f.peers[:i], f.peers[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}
	f.log().Debug("peer removed", "feed", f.name, "peers", len(f.peers))

	var orphaned []uint64
	for index, q := range f.inflight {
		if q == p {
			delete(f.inflight, index)
			orphaned = append(orphaned, index)
		}
	}
	if len(f.peers) == 0 {
		f.failWaitersLocked(ErrPeerUnavailable)
		clear(f.wanted)
		return
	}
	for _, index := range orphaned {
		f.requestLocked(index)
	}
}

// PeerUpdated re-evaluates wanted blocks after p announced new blocks.
func (f *Feed) PeerUpdated(p Peer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.requestFromLocked(p)
}

// Update fetches the last block announced by the peer furthest ahead, which
// extends the local length to the verified remote length. It returns at
// once when no peer is ahead or the feed is writable.
func (f *Feed) Update(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	var latest uint64
	if !f.writable {
		for _, p := range f.peers {
			latest = max(latest, p.Length())
		}
	}
	length := f.length
	f.mu.Unlock()
	if latest <= length {
		return nil
	}
	f.log().Debug("updating", "feed", f.name, "length", length, "remote", latest)
	_, err := f.Get(ctx, latest-1)
	return err
}

// Peers returns the number of registered peers.
func (f *Feed) Peers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.peers)
}

// requestFromLocked sends p every wanted block it can serve that is not
// already in flight.
func (f *Feed) requestFromLocked(p Peer) {
	for index := range f.wanted {
		if _, busy := f.inflight[index]; busy || f.have.Get(index) {
			continue
		}
		if p.HasBlock(index) {
			f.inflight[index] = p
			p.Request(index)
		}
	}
}

// requestLocked asks the first peer that announced index for it.
// Peers are scanned from a rotating start so load spreads across them.
func (f *Feed) requestLocked(index uint64) {
	if f.have.Get(index) {
		return
	}
	if _, busy := f.inflight[index]; busy {
		return
	}
	n := len(f.peers)
	for k := range n {
		p := f.peers[(f.nextPeer+k)%n]
		if p.HasBlock(index) {
			f.nextPeer = (f.nextPeer + k + 1) % n
			f.inflight[index] = p
			p.Request(index)
			return
		}
	}
}

// failWaitersLocked wakes every waiter with err.
func (f *Feed) failWaitersLocked(err error) {
	for index, chans := range f.waiters {
		for _, ch := range chans {
			ch <- err
		}
		delete(f.waiters, index)
	}
}
