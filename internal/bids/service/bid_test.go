package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	biderrors "carbid/internal/bids/errors"
	"carbid/internal/bids/repository"
	"carbid/internal/bids/serializer"
	"carbid/internal/bids/validator"
	"carbid/internal/cache"
	"carbid/internal/rooms"
	"carbid/pkg/config"
	"carbid/pkg/kafka"
	"carbid/pkg/logger"
	"carbid/pkg/model"
)

// fakeLedger is an in-memory ledger with the same accept/reject semantics as
// the database implementation. It fails the test if two bid transactions for
// the same auction ever overlap.
type fakeLedger struct {
	t *testing.T

	mu       sync.Mutex
	highest  map[int64]decimal.Decimal
	inflight map[int64]int
	lastUser map[int64]int64
	failErr  error
	failOnce bool
	block    chan struct{}
	nextID   int64
}

func newFakeLedger(t *testing.T) *fakeLedger {
	return &fakeLedger{
		t:        t,
		highest:  make(map[int64]decimal.Decimal),
		inflight: make(map[int64]int),
		lastUser: make(map[int64]int64),
	}
}

func (f *fakeLedger) createAuction(auctionID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highest[auctionID] = decimal.Zero
}

func (f *fakeLedger) TryAcceptBid(_ context.Context, auctionID, userID int64, amount decimal.Decimal) (repository.BidResult, error) {
	f.mu.Lock()
	f.inflight[auctionID]++
	if f.inflight[auctionID] > 1 {
		f.mu.Unlock()
		f.t.Errorf("overlapping bid transactions for auction %d", auctionID)
		return repository.BidResult{}, errors.New("overlap")
	}
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer func() {
		f.inflight[auctionID]--
		f.mu.Unlock()
	}()

	if f.failErr != nil {
		err := f.failErr
		if f.failOnce {
			f.failErr = nil
		}
		return repository.BidResult{}, err
	}

	current, ok := f.highest[auctionID]
	if !ok {
		return repository.BidResult{}, fmt.Errorf("auction %d: %w", auctionID, biderrors.ErrAuctionNotFound)
	}

	if !amount.GreaterThan(current) {
		return repository.BidResult{Outcome: repository.OutcomeRejected, HighestBid: current}, nil
	}

	f.highest[auctionID] = amount
	f.lastUser[auctionID] = userID
	f.nextID++
	return repository.BidResult{
		Outcome:    repository.OutcomeAccepted,
		HighestBid: amount,
		Bid: &model.Bid{
			ID:        f.nextID,
			AuctionID: auctionID,
			UserID:    userID,
			BidAmount: amount,
			Timestamp: time.Now(),
		},
	}, nil
}

func (f *fakeLedger) HighestBid(_ context.Context, auctionID int64) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.highest[auctionID]
	if !ok {
		return decimal.Zero, fmt.Errorf("auction %d: %w", auctionID, biderrors.ErrAuctionNotFound)
	}
	return current, nil
}

// fakeConn records every message sent to one client.
type fakeConn struct {
	id string

	mu       sync.Mutex
	messages []model.ServerMessage
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event any) {
	msg, ok := event.(model.ServerMessage)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *fakeConn) received() []model.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.ServerMessage(nil), c.messages...)
}

// waitFor polls until the connection has received at least n messages.
func (c *fakeConn) waitFor(t *testing.T, n int) []model.ServerMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := c.received(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("connection %s received %d messages, want at least %d", c.id, len(c.received()), n)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (p *fakePublisher) Publish(_ context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

type testEnv struct {
	service BidService
	ledger  *fakeLedger
	mirror  *cache.MemoryMirror
	rooms   *rooms.Registry
	pub     *fakePublisher
}

func newTestEnv(t *testing.T, queueDepth int) *testEnv {
	log := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	cfg := &config.Config{
		BidQueueDepth:     queueDepth,
		BidProcessTimeout: 5 * time.Second,
		Log:               log,
	}

	ledger := newFakeLedger(t)
	mirror := cache.NewMemoryMirror()
	registry := rooms.NewRegistry(log)
	pub := &fakePublisher{}

	svc := NewBidService(
		serializer.New(queueDepth, log),
		ledger,
		mirror,
		registry,
		validator.NewBidValidator(log),
		pub,
		cfg,
	)

	return &testEnv{service: svc, ledger: ledger, mirror: mirror, rooms: registry, pub: pub}
}

func placeBid(env *testEnv, conn *fakeConn, auctionID, userID int64, amount int64) {
	env.service.PlaceBid(conn, model.PlaceBidRequest{
		UserID:    userID,
		AuctionID: auctionID,
		BidAmount: decimal.NewFromInt(amount),
	})
}

func TestJoinAuction_ConfirmsAndSubscribes(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(7)
	conn := &fakeConn{id: "a"}

	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 7})

	msgs := conn.waitFor(t, 1)
	if msgs[0].Message != "Joined auction 7" {
		t.Fatalf("confirmation = %q", msgs[0].Message)
	}
	if n := env.rooms.RoomSize(7); n != 1 {
		t.Fatalf("RoomSize = %d after join", n)
	}
}

func TestJoinAuction_InvalidPayload(t *testing.T) {
	env := newTestEnv(t, 16)
	conn := &fakeConn{id: "a"}

	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 0})

	msgs := conn.waitFor(t, 1)
	if msgs[0].Error != ErrMsgInvalidPayload {
		t.Fatalf("error = %q", msgs[0].Error)
	}
	if n := env.rooms.RoomSize(0); n != 0 {
		t.Fatal("invalid join still subscribed the connection")
	}
}

func TestPlaceBid_AcceptRejectAcceptSequence(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(1)
	conn := &fakeConn{id: "a"}

	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 1})
	conn.waitFor(t, 1)

	placeBid(env, conn, 1, 2, 50)
	placeBid(env, conn, 1, 2, 30)
	placeBid(env, conn, 1, 2, 80)

	// Join confirmation, accept broadcast, reject, accept broadcast.
	msgs := conn.waitFor(t, 4)

	if msgs[1].Message != "New bid: 50" || msgs[1].AuctionID != 1 {
		t.Fatalf("first outcome = %+v", msgs[1])
	}
	if msgs[2].Error != ErrMsgBidTooLow {
		t.Fatalf("second outcome = %+v", msgs[2])
	}
	if msgs[3].Message != "New bid: 80" || msgs[3].AuctionID != 1 {
		t.Fatalf("third outcome = %+v", msgs[3])
	}

	highest, err := env.ledger.HighestBid(context.Background(), 1)
	if err != nil {
		t.Fatalf("HighestBid: %v", err)
	}
	if !highest.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("ledger highest = %s, want 80", highest)
	}
}

func TestPlaceBid_EqualBidRejected(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(1)
	conn := &fakeConn{id: "a"}

	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 1})
	placeBid(env, conn, 1, 2, 50)
	placeBid(env, conn, 1, 2, 50)

	msgs := conn.waitFor(t, 3)
	if msgs[2].Error != ErrMsgBidTooLow {
		t.Fatalf("equal bid outcome = %+v", msgs[2])
	}
}

func TestPlaceBid_BroadcastsToAllRoomMembers(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(7)
	bidder := &fakeConn{id: "bidder"}
	watcher := &fakeConn{id: "watcher"}

	env.service.JoinAuction(bidder, model.JoinAuctionRequest{AuctionID: 7})
	env.service.JoinAuction(watcher, model.JoinAuctionRequest{AuctionID: 7})

	placeBid(env, bidder, 7, 3, 120)

	for _, conn := range []*fakeConn{bidder, watcher} {
		msgs := conn.waitFor(t, 2)
		last := msgs[len(msgs)-1]
		if last.Message != "New bid: 120" || last.AuctionID != 7 {
			t.Fatalf("connection %s got %+v", conn.id, last)
		}
	}
}

func TestPlaceBid_RejectionIsSenderOnly(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(7)
	bidder := &fakeConn{id: "bidder"}
	watcher := &fakeConn{id: "watcher"}

	env.service.JoinAuction(bidder, model.JoinAuctionRequest{AuctionID: 7})
	env.service.JoinAuction(watcher, model.JoinAuctionRequest{AuctionID: 7})

	placeBid(env, bidder, 7, 3, 100)
	bidder.waitFor(t, 2)
	watcher.waitFor(t, 2)

	placeBid(env, bidder, 7, 3, 40)
	msgs := bidder.waitFor(t, 3)
	if msgs[2].Error != ErrMsgBidTooLow {
		t.Fatalf("bidder outcome = %+v", msgs[2])
	}

	// The watcher must never see the rejection.
	time.Sleep(20 * time.Millisecond)
	if msgs := watcher.received(); len(msgs) != 2 {
		t.Fatalf("watcher received %d messages, want 2: %+v", len(msgs), msgs)
	}
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	env := newTestEnv(t, 16)
	conn := &fakeConn{id: "a"}

	placeBid(env, conn, 99, 2, 50)

	msgs := conn.waitFor(t, 1)
	if msgs[0].Error != ErrMsgPlaceBidFailed {
		t.Fatalf("outcome = %+v", msgs[0])
	}
}

func TestPlaceBid_DefaultsUserID(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(5)
	conn := &fakeConn{id: "a"}
	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 5})

	env.service.PlaceBid(conn, model.PlaceBidRequest{
		AuctionID: 5,
		BidAmount: decimal.NewFromInt(10),
	})

	conn.waitFor(t, 2)

	env.ledger.mu.Lock()
	user := env.ledger.lastUser[5]
	env.ledger.mu.Unlock()
	if user != 1 {
		t.Fatalf("recorded user = %d, want default 1", user)
	}
}

func TestPlaceBid_InvalidPayload(t *testing.T) {
	env := newTestEnv(t, 16)
	conn := &fakeConn{id: "a"}

	env.service.PlaceBid(conn, model.PlaceBidRequest{
		UserID:    2,
		AuctionID: 1,
		BidAmount: decimal.NewFromInt(-5),
	})

	msgs := conn.waitFor(t, 1)
	if msgs[0].Error != ErrMsgInvalidPayload {
		t.Fatalf("outcome = %+v", msgs[0])
	}
}

func TestPlaceBid_QueueFullRejectsSubmitter(t *testing.T) {
	env := newTestEnv(t, 1)
	env.ledger.createAuction(1)
	env.ledger.block = make(chan struct{})
	conn := &fakeConn{id: "a"}

	placeBid(env, conn, 1, 2, 50)

	// The first bid is inside the blocked ledger call and still occupies its
	// queue slot, so the next submission hits the depth bound immediately.
	deadline := time.Now().Add(time.Second)
	for {
		placeBid(env, conn, 1, 2, 60)
		if msgs := conn.received(); len(msgs) > 0 && msgs[0].Error == ErrMsgPlaceBidFailed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no queue-full rejection before deadline")
		}
		time.Sleep(2 * time.Millisecond)
	}

	close(env.ledger.block)
}

func TestPlaceBid_InfrastructureErrorAdvancesQueue(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(1)
	env.ledger.failErr = errors.New("connection reset")
	env.ledger.failOnce = true
	conn := &fakeConn{id: "a"}
	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 1})

	placeBid(env, conn, 1, 2, 50)
	placeBid(env, conn, 1, 2, 60)

	msgs := conn.waitFor(t, 3)
	if msgs[1].Error != ErrMsgPlaceBidFailed {
		t.Fatalf("first outcome = %+v", msgs[1])
	}
	if msgs[2].Message != "New bid: 60" {
		t.Fatalf("second outcome = %+v", msgs[2])
	}
}

// hangingLedger blocks its first transaction until the caller's deadline
// fires, then behaves normally.
type hangingLedger struct {
	mu    sync.Mutex
	calls int
}

func (l *hangingLedger) TryAcceptBid(ctx context.Context, auctionID, userID int64, amount decimal.Decimal) (repository.BidResult, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()

	if first {
		<-ctx.Done()
		return repository.BidResult{}, ctx.Err()
	}
	return repository.BidResult{Outcome: repository.OutcomeAccepted, HighestBid: amount}, nil
}

func (l *hangingLedger) HighestBid(_ context.Context, _ int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func TestPlaceBid_StuckTransactionTimesOutAndQueueAdvances(t *testing.T) {
	log := logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
	cfg := &config.Config{
		BidQueueDepth:     16,
		BidProcessTimeout: 20 * time.Millisecond,
		Log:               log,
	}
	registry := rooms.NewRegistry(log)
	svc := NewBidService(
		serializer.New(16, log),
		&hangingLedger{},
		cache.NewMemoryMirror(),
		registry,
		validator.NewBidValidator(log),
		nil,
		cfg,
	)

	conn := &fakeConn{id: "a"}
	svc.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 1})

	svc.PlaceBid(conn, model.PlaceBidRequest{UserID: 2, AuctionID: 1, BidAmount: decimal.NewFromInt(50)})
	svc.PlaceBid(conn, model.PlaceBidRequest{UserID: 2, AuctionID: 1, BidAmount: decimal.NewFromInt(60)})

	msgs := conn.waitFor(t, 3)
	if msgs[1].Error != ErrMsgPlaceBidFailed {
		t.Fatalf("stuck bid outcome = %+v", msgs[1])
	}
	if msgs[2].Message != "New bid: 60" {
		t.Fatalf("follow-up bid outcome = %+v", msgs[2])
	}
}

func TestPlaceBid_UpdatesMirrorOnAccept(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(4)
	conn := &fakeConn{id: "a"}
	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 4})

	placeBid(env, conn, 4, 2, 75)
	conn.waitFor(t, 2)

	amount, ok, err := env.mirror.Get(context.Background(), 4)
	if err != nil || !ok {
		t.Fatalf("mirror after accept: ok=%v err=%v", ok, err)
	}
	if !amount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("mirrored amount = %s, want 75", amount)
	}
}

func TestPlaceBid_PublishesBidEvent(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(4)
	conn := &fakeConn{id: "a"}
	env.service.JoinAuction(conn, model.JoinAuctionRequest{AuctionID: 4})

	placeBid(env, conn, 4, 2, 75)
	conn.waitFor(t, 2)

	deadline := time.Now().Add(time.Second)
	for env.pub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no event published for accepted bid")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEndAuction_AnnouncesWinnerAndClosesRoom(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(7)
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	env.service.JoinAuction(a, model.JoinAuctionRequest{AuctionID: 7})
	env.service.JoinAuction(b, model.JoinAuctionRequest{AuctionID: 7})

	placeBid(env, a, 7, 2, 200)
	a.waitFor(t, 2)
	b.waitFor(t, 2)

	env.service.EndAuction(a, model.AuctionEndRequest{AuctionID: 7})

	for _, conn := range []*fakeConn{a, b} {
		msgs := conn.waitFor(t, 3)
		if msgs[2].Message != "Auction ended. Winning bid: 200" {
			t.Fatalf("connection %s got %+v", conn.id, msgs[2])
		}
	}
	if n := env.rooms.RoomSize(7); n != 0 {
		t.Fatalf("room size = %d after end", n)
	}

	// A join after the end starts a fresh room.
	c := &fakeConn{id: "c"}
	env.service.JoinAuction(c, model.JoinAuctionRequest{AuctionID: 7})
	if n := env.rooms.RoomSize(7); n != 1 {
		t.Fatalf("fresh room size = %d", n)
	}
}

func TestEndAuction_UnknownAuction(t *testing.T) {
	env := newTestEnv(t, 16)
	conn := &fakeConn{id: "a"}

	env.service.EndAuction(conn, model.AuctionEndRequest{AuctionID: 99})

	msgs := conn.waitFor(t, 1)
	if msgs[0].Error != ErrMsgEndAuctionFailed {
		t.Fatalf("outcome = %+v", msgs[0])
	}
}

func TestHighestBid_FallsBackToLedgerAndRepopulates(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(3)
	env.ledger.mu.Lock()
	env.ledger.highest[3] = decimal.NewFromInt(90)
	env.ledger.mu.Unlock()

	ctx := context.Background()

	amount, err := env.service.HighestBid(ctx, 3)
	if err != nil {
		t.Fatalf("HighestBid: %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("amount = %s, want 90", amount)
	}

	// The miss repopulated the mirror.
	cached, ok, _ := env.mirror.Get(ctx, 3)
	if !ok || !cached.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("mirror after fallback: ok=%v amount=%s", ok, cached)
	}
}

func TestHighestBid_PrefersMirror(t *testing.T) {
	env := newTestEnv(t, 16)
	env.ledger.createAuction(3)
	env.mirror.Set(context.Background(), 3, decimal.NewFromInt(42))

	amount, err := env.service.HighestBid(context.Background(), 3)
	if err != nil {
		t.Fatalf("HighestBid: %v", err)
	}
	if !amount.Equal(decimal.NewFromInt(42)) {
		t.Fatalf("amount = %s, want mirrored 42", amount)
	}
}
