package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
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
	"carbid/pkg/model"
)

// Wire messages, kept byte-compatible with the original client protocol.
const (
	MsgJoined       = "Joined auction %d"
	MsgNewBid       = "New bid: %s"
	MsgAuctionEnded = "Auction ended. Winning bid: %s"

	ErrMsgBidTooLow        = "Bid too low"
	ErrMsgPlaceBidFailed   = "Failed to place bid"
	ErrMsgEndAuctionFailed = "Failed to end auction"
	ErrMsgInvalidPayload   = "Invalid message payload"
)

// EventPublisher pushes bid events to the notification stream. Publication is
// best-effort; a publish failure never affects the bid outcome.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// BidService routes real-time auction commands through admission-passed
// connections: join, place bid, end auction. Replies and broadcasts go back
// through the rooms.Subscriber handles; the service never owns a connection.
type BidService interface {
	JoinAuction(conn rooms.Subscriber, req model.JoinAuctionRequest)
	PlaceBid(conn rooms.Subscriber, req model.PlaceBidRequest)
	EndAuction(conn rooms.Subscriber, req model.AuctionEndRequest)
	HighestBid(ctx context.Context, auctionID int64) (decimal.Decimal, error)
}

type bidService struct {
	serializer *serializer.Serializer
	ledger     repository.LedgerRepository
	mirror     cache.Mirror
	rooms      *rooms.Registry
	validator  *validator.BidValidator
	publisher  EventPublisher
	cfg        *config.Config
}

func NewBidService(
	ser *serializer.Serializer,
	ledger repository.LedgerRepository,
	mirror cache.Mirror,
	registry *rooms.Registry,
	bidValidator *validator.BidValidator,
	publisher EventPublisher,
	cfg *config.Config,
) BidService {
	return &bidService{
		serializer: ser,
		ledger:     ledger,
		mirror:     mirror,
		rooms:      registry,
		validator:  bidValidator,
		publisher:  publisher,
		cfg:        cfg,
	}
}

func (s *bidService) JoinAuction(conn rooms.Subscriber, req model.JoinAuctionRequest) {
	if err := s.validator.ValidateJoinAuction(&req); err != nil {
		s.cfg.Log.Warn("Invalid joinAuction payload", "conn_id", conn.ID(), "error", err)
		conn.Send(model.ServerMessage{Error: ErrMsgInvalidPayload})
		return
	}

	s.rooms.Join(req.AuctionID, conn)
	conn.Send(model.ServerMessage{Message: fmt.Sprintf(MsgJoined, req.AuctionID)})
}

func (s *bidService) PlaceBid(conn rooms.Subscriber, req model.PlaceBidRequest) {
	if req.UserID == 0 {
		req.UserID = 1
	}

	if err := s.validator.ValidatePlaceBid(&req); err != nil {
		s.cfg.Log.Warn("Invalid placeBid payload", "conn_id", conn.ID(), "error", err)
		conn.Send(model.ServerMessage{Error: ErrMsgInvalidPayload})
		return
	}

	err := s.serializer.Submit(req.AuctionID, func() {
		s.processBid(conn, req)
	})
	if err != nil {
		if errors.Is(err, biderrors.ErrQueueFull) {
			s.cfg.Log.Warn("Bid queue full",
				"auction_id", req.AuctionID,
				"user_id", req.UserID,
			)
		}
		conn.Send(model.ServerMessage{Error: ErrMsgPlaceBidFailed})
	}
}

// processBid executes one dequeued bid to a terminal outcome. Whatever
// happens here, the serializer advances to the next queued bid afterwards.
func (s *bidService) processBid(conn rooms.Subscriber, req model.PlaceBidRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BidProcessTimeout)
	defer cancel()

	res, err := s.ledger.TryAcceptBid(ctx, req.AuctionID, req.UserID, req.BidAmount)
	if err != nil {
		if errors.Is(err, biderrors.ErrAuctionNotFound) {
			s.cfg.Log.Warn("Bid on unknown auction",
				"auction_id", req.AuctionID,
				"user_id", req.UserID,
			)
		} else {
			s.cfg.Log.Error("Bid transaction failed",
				"auction_id", req.AuctionID,
				"user_id", req.UserID,
				"error", err,
			)
		}
		conn.Send(model.ServerMessage{Error: ErrMsgPlaceBidFailed})
		return
	}

	if res.Outcome == repository.OutcomeRejected {
		conn.Send(model.ServerMessage{Error: ErrMsgBidTooLow})
		return
	}

	// Mirror before broadcast: a reader that saw the announcement must never
	// find a stale-low cache value.
	if err := s.mirror.Set(ctx, req.AuctionID, res.HighestBid); err != nil {
		s.cfg.Log.Warn("Cache mirror update failed",
			"auction_id", req.AuctionID,
			"error", err,
		)
	}

	s.rooms.Broadcast(req.AuctionID, model.ServerMessage{
		Message:   fmt.Sprintf(MsgNewBid, res.HighestBid),
		AuctionID: req.AuctionID,
	})

	s.publish(EventBidAccepted, req.AuctionID, req.UserID, res.HighestBid)

	s.cfg.Log.Info("Bid accepted",
		"auction_id", req.AuctionID,
		"user_id", req.UserID,
		"amount", res.HighestBid,
	)
}

func (s *bidService) EndAuction(conn rooms.Subscriber, req model.AuctionEndRequest) {
	if err := s.validator.ValidateAuctionEnd(&req); err != nil {
		s.cfg.Log.Warn("Invalid auctionEnd payload", "conn_id", conn.ID(), "error", err)
		conn.Send(model.ServerMessage{Error: ErrMsgInvalidPayload})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BidProcessTimeout)
	defer cancel()

	highest, err := s.HighestBid(ctx, req.AuctionID)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve winning bid",
			"auction_id", req.AuctionID,
			"error", err,
		)
		conn.Send(model.ServerMessage{Error: ErrMsgEndAuctionFailed})
		return
	}

	s.rooms.EndAuction(req.AuctionID, model.ServerMessage{
		Message: fmt.Sprintf(MsgAuctionEnded, highest),
	})

	s.publish(EventAuctionEnded, req.AuctionID, 0, highest)
}

// HighestBid reads the cache mirror first and falls back to the ledger on a
// miss, opportunistically repopulating the mirror from the committed value.
func (s *bidService) HighestBid(ctx context.Context, auctionID int64) (decimal.Decimal, error) {
	amount, ok, err := s.mirror.Get(ctx, auctionID)
	if err != nil {
		s.cfg.Log.Warn("Cache mirror read failed, falling back to ledger",
			"auction_id", auctionID,
			"error", err,
		)
	}
	if ok {
		return amount, nil
	}

	amount, err = s.ledger.HighestBid(ctx, auctionID)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.mirror.Set(ctx, auctionID, amount); err != nil {
		s.cfg.Log.Warn("Cache mirror repopulation failed",
			"auction_id", auctionID,
			"error", err,
		)
	}
	return amount, nil
}

func (s *bidService) publish(eventType string, auctionID, userID int64, amount decimal.Decimal) {
	if s.publisher == nil {
		return
	}

	msg, err := kafka.NewMessage(
		strconv.FormatInt(auctionID, 10),
		eventType,
		"bidstream",
		BidEvent{
			Type:      eventType,
			AuctionID: auctionID,
			UserID:    userID,
			Amount:    amount,
			Timestamp: time.Now(),
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to build bid event", "auction_id", auctionID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Warn("Failed to publish bid event",
			"auction_id", auctionID,
			"event_type", eventType,
			"error", err,
		)
	}
}
