package feed

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meigma/drive/storage"
)

const (
	indexRecordSize = 16 // byte offset + size per block
	nodeRecordSize  = 40 // hash + size per tree node
)

// Storage holds the three stores backing a feed. Nil fields default to
// in-memory stores.
type Storage struct {
	Data  storage.Storage // block bytes, concatenated
	Tree  storage.Storage // hash tree nodes by flat index
	Index storage.Storage // per-block byte offset and size
}

// OpenStorage opens "<prefix>/data", "<prefix>/tree" and "<prefix>/index"
// through p.
func OpenStorage(p storage.Provider, prefix string) (Storage, error) {
	var s Storage
	var err error
	if s.Data, err = p(prefix + "/data"); err != nil {
		return Storage{}, err
	}
	if s.Tree, err = p(prefix + "/tree"); err != nil {
		s.Data.Close()
		return Storage{}, err
	}
	if s.Index, err = p(prefix + "/index"); err != nil {
		s.Data.Close()
		s.Tree.Close()
		return Storage{}, err
	}
	return s, nil
}

func (s *Storage) fill() {
	if s.Data == nil {
		s.Data = &storage.Memory{}
	}
	if s.Tree == nil {
		s.Tree = &storage.Memory{}
	}
	if s.Index == nil {
		s.Index = &storage.Memory{}
	}
}

// MaxLength is the largest number of blocks a feed may hold. Proofs and
// announcements for longer feeds are rejected.
const MaxLength = 1 << 24

// Feed is an append-only log of blocks verified by a BLAKE3 hash tree.
//
// A writable feed appends blocks locally. A clone, opened from a key, fills
// in blocks received from peers after verifying each one against the key;
// clones may hold any subset of blocks. Feed is safe for concurrent use.
type Feed struct {
	mu sync.Mutex

	name      string
	key       []byte
	discovery Hash
	secretKey ed25519.PrivateKey
	writable  bool
	signed    bool
	sealed    bool

	length     uint64
	byteLength uint64
	roots      []Node
	signature  []byte
	have       Bitfield
	nodes      Bitfield
	store      Storage

	peers    []Peer
	nextPeer int
	wanted   map[uint64]struct{}
	inflight map[uint64]Peer
	waiters  map[uint64][]chan error
	closed   bool

	logger *slog.Logger
}

// Create returns a new writable feed. Feeds are signed unless WithSigned(false)
// is given; name only labels log output.
func Create(name string, store Storage, opts ...Option) (*Feed, error) {
	cfg := config{signed: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	f := newFeed(name, store, cfg.logger)
	f.writable = true
	f.signed = cfg.signed
	if cfg.signed {
		sk := cfg.secretKey
		if sk == nil {
			var err error
			if _, sk, err = ed25519.GenerateKey(rand.Reader); err != nil {
				return nil, fmt.Errorf("feed: generate key: %w", err)
			}
		}
		if len(sk) != ed25519.PrivateKeySize {
			return nil, ErrInvalidKey
		}
		f.secretKey = sk
		f.key = []byte(sk.Public().(ed25519.PublicKey))
		f.discovery = DiscoveryKey(f.key)
	}
	f.log().Debug("feed created", "feed", name, "signed", cfg.signed)
	return f, nil
}

// Clone returns a read-only feed for key. Blocks arrive through Put.
func Clone(name string, key []byte, store Storage, opts ...Option) (*Feed, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	f := newFeed(name, store, cfg.logger)
	f.key = append([]byte(nil), key...)
	f.discovery = DiscoveryKey(f.key)
	return f, nil
}

func newFeed(name string, store Storage, logger *slog.Logger) *Feed {
	store.fill()
	return &Feed{
		name:     name,
		store:    store,
		wanted:   make(map[uint64]struct{}),
		inflight: make(map[uint64]Peer),
		waiters:  make(map[uint64][]chan error),
		logger:   logger,
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (f *Feed) log() *slog.Logger {
	if f.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return f.logger
}

// Name returns the label given at creation.
func (f *Feed) Name() string {
	return f.name
}

// Key returns the feed key: the Ed25519 public key of a signed feed, or the
// tree hash of a sealed one. It is nil for an unsealed unsigned feed.
func (f *Feed) Key() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.key == nil {
		return nil
	}
	return append([]byte(nil), f.key...)
}

// DiscoveryKey returns the discovery key derived from Key, and false while
// the feed has no key.
func (f *Feed) DiscoveryKey() (Hash, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discovery, f.key != nil
}

// Writable reports whether Append is accepted.
func (f *Feed) Writable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writable && !f.sealed && !f.closed
}

// Signed reports whether the feed is signed. Clones report true once a
// signed proof has been verified.
func (f *Feed) Signed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signed
}

// Sealed reports whether the feed has been sealed and can no longer grow.
func (f *Feed) Sealed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sealed
}

// Length returns the number of blocks in the feed. For clones this is the
// length of the latest verified tree.
func (f *Feed) Length() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length
}

// ByteLength returns the total size of all blocks.
func (f *Feed) ByteLength() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byteLength
}

// TreeHash returns the hash committing to the current roots. It changes
// with every append and identifies one exact version of the feed.
func (f *Feed) TreeHash() Hash {
	f.mu.Lock()
	defer f.mu.Unlock()
	return treeHash(f.roots)
}

// Has reports whether block index is present locally.
func (f *Feed) Has(index uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.have.Get(index)
}

// CountRange returns how many blocks in [start, end) are present locally.
func (f *Feed) CountRange(start, end uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.have.Count(start, end)
}

// Ranges returns the runs of locally present blocks.
func (f *Feed) Ranges() []Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.have.Ranges(f.length)
}

// Append adds blocks to the end of the feed and returns the index of the
// first one. Signed feeds are re-signed once per call.
func (f *Feed) Append(blocks ...[]byte) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}
	if !f.writable || f.sealed {
		return 0, ErrNotWritable
	}
	if uint64(len(blocks)) > MaxLength-f.length {
		return 0, fmt.Errorf("%w: feed %s is full", ErrNotWritable, f.name)
	}
	first := f.length
	for _, block := range blocks {
		if err := f.appendLocked(block); err != nil {
			return 0, err
		}
	}
	if f.signed && len(blocks) > 0 {
		tree := treeHash(f.roots)
		f.signature = ed25519.Sign(f.secretKey, tree[:])
	}
	for i := first; i < f.length; i++ {
		f.completeLocked(i)
	}
	return first, nil
}

func (f *Feed) appendLocked(block []byte) error {
	index := f.length
	if err := f.writeBlock(index, f.byteLength, block); err != nil {
		return err
	}
	leaf := leafNode(index, block)
	if err := f.putNode(leaf); err != nil {
		return err
	}
	f.roots = append(f.roots, leaf)
	for len(f.roots) >= 2 {
		left, right := f.roots[len(f.roots)-2], f.roots[len(f.roots)-1]
		if treeParent(left.Index) != treeParent(right.Index) {
			break
		}
		parent := parentNode(left, right)
		if err := f.putNode(parent); err != nil {
			return err
		}
		f.roots = append(f.roots[:len(f.roots)-2], parent)
	}
	f.length++
	f.byteLength += uint64(len(block))
	f.have.Set(index)
	return nil
}

// Seal freezes an unsigned feed. Its key becomes the tree hash of the
// current roots and Append fails from then on. Sealing twice is a no-op.
func (f *Feed) Seal() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if f.sealed {
		return append([]byte(nil), f.key...), nil
	}
	if !f.writable {
		return nil, ErrNotWritable
	}
	if f.signed {
		return nil, ErrSigned
	}
	tree := treeHash(f.roots)
	f.key = tree[:]
	f.discovery = DiscoveryKey(f.key)
	f.sealed = true
	f.log().Debug("feed sealed", "feed", f.name, "length", f.length, "key", tree.String())
	return append([]byte(nil), f.key...), nil
}

// Get returns block index, waiting for a peer to supply it when it is not
// present locally. It fails with ErrPeerUnavailable when the last peer
// disconnects while waiting, and with ctx.Err() when ctx ends.
func (f *Feed) Get(ctx context.Context, index uint64) ([]byte, error) {
	if err := f.wait(ctx, []uint64{index}); err != nil {
		return nil, err
	}
	return f.readBlock(index)
}

// Download waits until every block in [start, end) is present locally,
// requesting missing blocks from peers.
func (f *Feed) Download(ctx context.Context, start, end uint64) error {
	f.mu.Lock()
	var missing []uint64
	for i := start; i < end; i++ {
		if !f.have.Get(i) {
			missing = append(missing, i)
		}
	}
	f.mu.Unlock()
	if len(missing) == 0 {
		return nil
	}
	return f.wait(ctx, missing)
}

// Want marks [start, end) as wanted without waiting. Missing blocks are
// requested as peers announce them.
func (f *Feed) Want(start, end uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for i := start; i < end; i++ {
		if f.have.Get(i) {
			continue
		}
		f.wanted[i] = struct{}{}
		f.requestLocked(i)
	}
}

// wait registers a waiter for every index and blocks until all arrive.
func (f *Feed) wait(ctx context.Context, indices []uint64) error {
	chans := make(map[uint64]chan error, len(indices))
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	for _, index := range indices {
		if f.have.Get(index) {
			continue
		}
		ch := make(chan error, 1)
		chans[index] = ch
		f.waiters[index] = append(f.waiters[index], ch)
		f.wanted[index] = struct{}{}
		f.requestLocked(index)
	}
	f.mu.Unlock()

	for index, ch := range chans {
		select {
		case err := <-ch:
			delete(chans, index)
			if err != nil {
				f.abandon(chans)
				return err
			}
		case <-ctx.Done():
			f.abandon(chans)
			return ctx.Err()
		}
	}
	return nil
}

// abandon removes waiters that will no longer be read and withdraws
// requests nobody else waits for.
func (f *Feed) abandon(chans map[uint64]chan error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for index, ch := range chans {
		list := f.waiters[index]
		for i, c := range list {
			if c == ch {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) > 0 {
			f.waiters[index] = list
			continue
		}
		delete(f.waiters, index)
		delete(f.wanted, index)
		if p, ok := f.inflight[index]; ok {
			delete(f.inflight, index)
			p.Cancel(index)
		}
	}
}

// completeLocked records that block index became present: it wakes waiters
// and announces the block to every peer.
func (f *Feed) completeLocked(index uint64) {
	delete(f.wanted, index)
	delete(f.inflight, index)
	for _, ch := range f.waiters[index] {
		ch <- nil
	}
	delete(f.waiters, index)
	for _, p := range f.peers {
		p.Announce(index)
	}
}

// Proof builds the proof for a locally present block against the current
// roots. It fails with ErrBlockMissing when the block or a node on its path
// is not stored.
func (f *Feed) Proof(index uint64) (*Proof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if f.key == nil {
		return nil, fmt.Errorf("%w: feed has no key", ErrVerification)
	}
	if !f.have.Get(index) || index >= f.length {
		return nil, ErrBlockMissing
	}
	isRoot := make(map[uint64]bool, len(f.roots))
	for _, r := range f.roots {
		isRoot[r.Index] = true
	}
	p := &Proof{
		Index:     index,
		Roots:     append([]Node(nil), f.roots...),
		Signature: append([]byte(nil), f.signature...),
	}
	for cur := 2 * index; !isRoot[cur]; cur = treeParent(cur) {
		n, err := f.getNode(treeSibling(cur))
		if err != nil {
			return nil, err
		}
		p.Nodes = append(p.Nodes, n)
	}
	return p, nil
}

// Block returns block index if it is present locally, without waiting.
func (f *Feed) Block(index uint64) ([]byte, error) {
	if !f.Has(index) {
		return nil, ErrBlockMissing
	}
	return f.readBlock(index)
}

// Put verifies data as block index against the feed key and stores it.
// Blocks already present are ignored.
func (f *Feed) Put(index uint64, data []byte, proof *Proof) error {
	if proof == nil || proof.Index != index {
		return fmt.Errorf("%w: proof does not match block %d", ErrVerification, index)
	}
	f.mu.Lock()
	key := f.key
	present := f.have.Get(index)
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if present {
		return nil
	}
	if key == nil {
		return fmt.Errorf("%w: feed has no key", ErrVerification)
	}
	v, err := verifyProof(key, data, proof)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.have.Get(index) {
		return nil
	}
	if f.writable && v.length > f.length {
		return fmt.Errorf("%w: remote is ahead of the writer", ErrVerification)
	}
	if err := f.writeBlock(index, v.byteOffset, data); err != nil {
		return err
	}
	for _, n := range v.nodes {
		if err := f.putNode(n); err != nil {
			return err
		}
	}
	if v.length > f.length || f.roots == nil {
		f.length = v.length
		f.byteLength = v.byteLength
		f.roots = append([]Node(nil), proof.Roots...)
		f.signature = append([]byte(nil), proof.Signature...)
		f.signed = !v.sealed
	}
	if v.sealed {
		f.sealed = true
	}
	f.have.Set(index)
	f.completeLocked(index)
	return nil
}

// Close fails every waiter with ErrClosed and closes the backing stores.
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.failWaitersLocked(ErrClosed)
	f.peers = nil
	f.mu.Unlock()

	return errors.Join(f.store.Data.Close(), f.store.Tree.Close(), f.store.Index.Close())
}

func (f *Feed) writeBlock(index, offset uint64, data []byte) error {
	if len(data) > 0 {
		if _, err := f.store.Data.WriteAt(data, int64(offset)); err != nil { //nolint:gosec // offsets stay below 2^63
			return fmt.Errorf("feed: write block %d: %w", index, err)
		}
	}
	var rec [indexRecordSize]byte
	binary.BigEndian.PutUint64(rec[:8], offset)
	binary.BigEndian.PutUint64(rec[8:], uint64(len(data)))
	if _, err := f.store.Index.WriteAt(rec[:], int64(index*indexRecordSize)); err != nil { //nolint:gosec // offsets stay below 2^63
		return fmt.Errorf("feed: write index %d: %w", index, err)
	}
	return nil
}

func (f *Feed) readBlock(index uint64) ([]byte, error) {
	var rec [indexRecordSize]byte
	if err := storage.ReadFull(f.store.Index, rec[:], int64(index*indexRecordSize)); err != nil { //nolint:gosec // offsets stay below 2^63
		return nil, fmt.Errorf("feed: read index %d: %w", index, err)
	}
	offset := binary.BigEndian.Uint64(rec[:8])
	size := binary.BigEndian.Uint64(rec[8:])
	data := make([]byte, size)
	if err := storage.ReadFull(f.store.Data, data, int64(offset)); err != nil { //nolint:gosec // offsets stay below 2^63
		return nil, fmt.Errorf("feed: read block %d: %w", index, err)
	}
	return data, nil
}

func (f *Feed) putNode(n Node) error {
	if f.nodes.Get(n.Index) {
		return nil
	}
	var rec [nodeRecordSize]byte
	copy(rec[:32], n.Hash[:])
	binary.BigEndian.PutUint64(rec[32:], n.Size)
	if _, err := f.store.Tree.WriteAt(rec[:], int64(n.Index*nodeRecordSize)); err != nil { //nolint:gosec // offsets stay below 2^63
		return fmt.Errorf("feed: write node %d: %w", n.Index, err)
	}
	f.nodes.Set(n.Index)
	return nil
}

func (f *Feed) getNode(index uint64) (Node, error) {
	if !f.nodes.Get(index) {
		return Node{}, fmt.Errorf("%w: tree node %d", ErrBlockMissing, index)
	}
	var rec [nodeRecordSize]byte
	if err := storage.ReadFull(f.store.Tree, rec[:], int64(index*nodeRecordSize)); err != nil { //nolint:gosec // offsets stay below 2^63
		return Node{}, fmt.Errorf("feed: read node %d: %w", index, err)
	}
	n := Node{Index: index, Size: binary.BigEndian.Uint64(rec[32:])}
	copy(n.Hash[:], rec[:32])
	return n, nil
}
