package transfer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/blocksync/pkg/digest"
	"github.com/marmos91/blocksync/pkg/transfer"
)

// fakeSource replays a fixed instruction stream and serves block bodies
// from an in-memory map once requested, exercising Drive without any real
// Index or filesystem involved.
type fakeSource struct {
	events  []transfer.IndexEvent
	nextIdx int

	bodies    map[digest.Digest][]byte
	requested []digest.Digest
	delayFeed map[digest.Digest]int // number of GetNextBlock calls to withhold
}

func (s *fakeSource) NextFromIndex() (transfer.IndexEvent, bool, error) {
	if s.nextIdx >= len(s.events) {
		return transfer.IndexEvent{}, false, nil
	}
	e := s.events[s.nextIdx]
	s.nextIdx++
	return e, true, nil
}

func (s *fakeSource) RequestBlock(hash digest.Digest) error {
	s.requested = append(s.requested, hash)
	return nil
}

func (s *fakeSource) GetNextBlock() (digest.Digest, []byte, bool, error) {
	if len(s.requested) == 0 {
		return digest.Digest{}, nil, false, nil
	}
	hash := s.requested[0]
	if n := s.delayFeed[hash]; n > 0 {
		s.delayFeed[hash] = n - 1
		return digest.Digest{}, nil, false, nil
	}
	s.requested = s.requested[1:]
	body, ok := s.bodies[hash]
	if !ok {
		return digest.Digest{}, nil, false, nil
	}
	return hash, body, true, nil
}

// fakeSink records every call it receives and decides "missing" purely
// from an explicit set, so tests can drive backpressure scenarios
// directly instead of depending on a real Index's dedup behavior.
type fakeSink struct {
	newFiles  []string
	newBlocks []digest.Digest
	fed       []digest.Digest

	missing      map[digest.Digest]bool
	requestQueue []digest.Digest
}

func newFakeSink() *fakeSink {
	return &fakeSink{missing: make(map[digest.Digest]bool)}
}

func (s *fakeSink) NewFile(path string, modified time.Time) error {
	s.newFiles = append(s.newFiles, path)
	return nil
}

func (s *fakeSink) NewBlock(hash digest.Digest, size uint64) error {
	s.newBlocks = append(s.newBlocks, hash)
	s.missing[hash] = true
	s.requestQueue = append(s.requestQueue, hash)
	return nil
}

func (s *fakeSink) FeedBlock(hash digest.Digest, bytes []byte) error {
	if digest.Of(bytes) != hash {
		return transfer.ErrBadDigest
	}
	s.fed = append(s.fed, hash)
	delete(s.missing, hash)
	return nil
}

func (s *fakeSink) NextRequestedBlock() (digest.Digest, bool) {
	if len(s.requestQueue) == 0 {
		return digest.Digest{}, false
	}
	h := s.requestQueue[0]
	s.requestQueue = s.requestQueue[1:]
	return h, true
}

func (s *fakeSink) IsMissingBlocks() bool {
	return len(s.missing) > 0
}

func TestDriveConvergesOnSimpleStream(t *testing.T) {
	h1 := digest.Of([]byte("block one"))
	h2 := digest.Of([]byte("block two"))

	source := &fakeSource{
		events: []transfer.IndexEvent{
			transfer.NewFileEvent("f1.txt", time.Now()),
			transfer.NewBlockEvent(h1, 9),
			transfer.NewBlockEvent(h2, 9),
			transfer.EndEvent(),
		},
		bodies: map[digest.Digest][]byte{
			h1: []byte("block one"),
			h2: []byte("block two"),
		},
		delayFeed: map[digest.Digest]int{},
	}
	sink := newFakeSink()

	err := transfer.Drive(context.Background(), sink, source)
	require.NoError(t, err)
	require.Equal(t, []string{"f1.txt"}, sink.newFiles)
	require.ElementsMatch(t, []digest.Digest{h1, h2}, sink.fed)
	require.False(t, sink.IsMissingBlocks())
}

// TestDriveBackpressure reproduces spec §8 scenario 6: a Sink that stays
// "missing" until two specific digests are fed, behind 1000 index events,
// still converges, and FeedBlock is invoked exactly twice with the
// matching digests.
func TestDriveBackpressure(t *testing.T) {
	h1 := digest.Of([]byte("needed block A"))
	h2 := digest.Of([]byte("needed block B"))

	events := []transfer.IndexEvent{transfer.NewFileEvent("big.bin", time.Now())}
	for i := 0; i < 500; i++ {
		events = append(events, transfer.NewBlockEvent(digest.Of([]byte{byte(i), byte(i >> 8)}), 2))
	}
	for i := 500; i < 1000; i++ {
		events = append(events, transfer.NewBlockEvent(digest.Of([]byte{byte(i), byte(i >> 8), 1}), 3))
	}
	events = append(events, transfer.NewBlockEvent(h1, 14), transfer.NewBlockEvent(h2, 14))
	events = append(events, transfer.EndEvent())

	source := &fakeSource{
		events: events,
		bodies: map[digest.Digest][]byte{
			h1: []byte("needed block A"),
			h2: []byte("needed block B"),
		},
		delayFeed: map[digest.Digest]int{},
	}

	sink := &trackingSink{target: map[digest.Digest]bool{h1: true, h2: true}}
	err := transfer.Drive(context.Background(), sink, source)
	require.NoError(t, err)
	require.Equal(t, 2, sink.feedCalls)
	require.ElementsMatch(t, []digest.Digest{h1, h2}, sink.fedHashes)
}

// trackingSink treats every non-target block as already locally available
// (never missing, never requested), so only h1/h2 ever enter the request
// queue — modeling the "1000 index events, only two genuinely needed"
// scenario.
type trackingSink struct {
	target       map[digest.Digest]bool
	missing      map[digest.Digest]bool
	requestQueue []digest.Digest
	feedCalls    int
	fedHashes    []digest.Digest
}

func (s *trackingSink) NewFile(path string, modified time.Time) error { return nil }

func (s *trackingSink) NewBlock(hash digest.Digest, size uint64) error {
	if !s.target[hash] {
		return nil
	}
	if s.missing == nil {
		s.missing = make(map[digest.Digest]bool)
	}
	s.missing[hash] = true
	s.requestQueue = append(s.requestQueue, hash)
	return nil
}

func (s *trackingSink) FeedBlock(hash digest.Digest, bytes []byte) error {
	if digest.Of(bytes) != hash {
		return transfer.ErrBadDigest
	}
	s.feedCalls++
	s.fedHashes = append(s.fedHashes, hash)
	delete(s.missing, hash)
	return nil
}

func (s *trackingSink) NextRequestedBlock() (digest.Digest, bool) {
	if len(s.requestQueue) == 0 {
		return digest.Digest{}, false
	}
	h := s.requestQueue[0]
	s.requestQueue = s.requestQueue[1:]
	return h, true
}

func (s *trackingSink) IsMissingBlocks() bool {
	return len(s.missing) > 0
}

func TestDriveCancellation(t *testing.T) {
	source := &fakeSource{
		events: []transfer.IndexEvent{
			transfer.NewFileEvent("f.txt", time.Now()),
		},
		bodies:    map[digest.Digest][]byte{},
		delayFeed: map[digest.Digest]int{},
	}
	sink := newFakeSink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := transfer.Drive(ctx, sink, source)
	require.ErrorIs(t, err, transfer.ErrCanceled)
}

// TestDriveCancellationPropagatesThroughErrgroup runs Drive as one member
// of an errgroup alongside a goroutine that cancels the shared context
// partway through a stalled transfer, mirroring how a caller driving
// several concurrent sessions off one errgroup observes a single stuck
// Drive call without blocking the others indefinitely.
func TestDriveCancellationPropagatesThroughErrgroup(t *testing.T) {
	h := digest.Of([]byte("will never arrive"))
	source := &fakeSource{
		events: []transfer.IndexEvent{
			transfer.NewFileEvent("stalled.bin", time.Now()),
			transfer.NewBlockEvent(h, 17),
			transfer.EndEvent(),
		},
		bodies:    map[digest.Digest][]byte{},
		delayFeed: map[digest.Digest]int{},
	}
	sink := newFakeSink()

	g, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)

	g.Go(func() error {
		return transfer.Drive(ctx, sink, source)
	})
	g.Go(func() error {
		cancel()
		return nil
	})

	err := g.Wait()
	require.ErrorIs(t, err, transfer.ErrCanceled)
}
