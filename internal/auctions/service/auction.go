package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	aucerrors "carbid/internal/auctions/errors"
	"carbid/internal/auctions/repository"
	"carbid/internal/auctions/validator"
	"carbid/pkg/config"
	apperrors "carbid/pkg/errors"
	"carbid/pkg/model"
)

type AuctionService interface {
	CreateAuction(ctx context.Context, auction *model.Auction) error
	GetAuction(ctx context.Context, id int64) (*model.Auction, error)
	ListAuctions(ctx context.Context, limit int, offset int64) ([]*model.Auction, int64, error)

	CreateCar(ctx context.Context, car *model.Car) error
	GetCar(ctx context.Context, id int64) (*model.Car, error)
	ListCars(ctx context.Context, limit int, offset int64) ([]*model.Car, error)

	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, limit int, offset int64) ([]*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type auctionService struct {
	auctions  repository.AuctionRepository
	cars      repository.CarRepository
	users     repository.UserRepository
	validator *validator.AuctionValidator
	cfg       *config.Config
}

func NewAuctionService(
	auctions repository.AuctionRepository,
	cars repository.CarRepository,
	users repository.UserRepository,
	av *validator.AuctionValidator,
	cfg *config.Config,
) AuctionService {
	return &auctionService{
		auctions:  auctions,
		cars:      cars,
		users:     users,
		validator: av,
		cfg:       cfg,
	}
}

func (s *auctionService) CreateAuction(ctx context.Context, auction *model.Auction) error {
	if err := s.validate(auction); err != nil {
		return err
	}
	if auction.CurrentHighestBid.IsNegative() {
		return apperrors.InvalidInput("current_highest_bid cannot be negative")
	}

	if err := s.auctions.Create(ctx, auction); err != nil {
		if errors.Is(err, aucerrors.ErrForeignKey) {
			return apperrors.InvalidInput(fmt.Sprintf("car %d does not exist", auction.CarID))
		}
		s.cfg.Log.Error("Failed to create auction", "error", err)
		return apperrors.Internal("Failed to create auction", err)
	}

	s.cfg.Log.Info("Auction created", "id", auction.ID, "name", auction.Name, "car_id", auction.CarID)
	return nil
}

func (s *auctionService) GetAuction(ctx context.Context, id int64) (*model.Auction, error) {
	auction, err := s.auctions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, aucerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Auction", fmt.Sprint(id))
		}
		return nil, apperrors.Internal("Failed to retrieve auction", err)
	}
	return auction, nil
}

func (s *auctionService) ListAuctions(ctx context.Context, limit int, offset int64) ([]*model.Auction, int64, error) {
	var count int64
	var auctions []*model.Auction
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.auctions.Count(ctx)
	}()
	go func() {
		defer wg.Done()
		auctions, errFind = s.auctions.FindAll(ctx, limit, offset)
	}()
	wg.Wait()

	if errFind != nil {
		return nil, 0, apperrors.Internal("Failed to list auctions", errFind)
	}
	if errCount != nil {
		return nil, 0, apperrors.Internal("Failed to count auctions", errCount)
	}
	return auctions, count, nil
}

func (s *auctionService) CreateCar(ctx context.Context, car *model.Car) error {
	if err := s.validate(car); err != nil {
		return err
	}
	if err := s.cars.Create(ctx, car); err != nil {
		s.cfg.Log.Error("Failed to create car", "error", err)
		return apperrors.Internal("Failed to create car", err)
	}
	s.cfg.Log.Info("Car created", "id", car.ID, "make", car.Make, "model", car.Model)
	return nil
}

func (s *auctionService) GetCar(ctx context.Context, id int64) (*model.Car, error) {
	car, err := s.cars.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, aucerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Car", fmt.Sprint(id))
		}
		return nil, apperrors.Internal("Failed to retrieve car", err)
	}
	return car, nil
}

func (s *auctionService) ListCars(ctx context.Context, limit int, offset int64) ([]*model.Car, error) {
	cars, err := s.cars.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list cars", err)
	}
	return cars, nil
}

func (s *auctionService) CreateUser(ctx context.Context, user *model.User) error {
	if err := s.validate(user); err != nil {
		return err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, aucerrors.ErrDuplicate) {
			return apperrors.Conflict(fmt.Sprintf("user with email %s already exists", user.Email))
		}
		s.cfg.Log.Error("Failed to create user", "error", err)
		return apperrors.Internal("Failed to create user", err)
	}
	s.cfg.Log.Info("User created", "id", user.ID, "email", user.Email)
	return nil
}

func (s *auctionService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, aucerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", fmt.Sprint(id))
		}
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	return user, nil
}

func (s *auctionService) ListUsers(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	users, err := s.users.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.Internal("Failed to list users", err)
	}
	return users, nil
}

func (s *auctionService) DeleteUser(ctx context.Context, id int64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, aucerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("User", fmt.Sprint(id))
		}
		return apperrors.Internal("Failed to delete user", err)
	}
	s.cfg.Log.Info("User deleted", "id", id)
	return nil
}

func (s *auctionService) validate(v any) error {
	err := s.validator.Validate(v)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		return apperrors.Validation("Validation failed", invalid.Details())
	}
	return apperrors.InvalidInput(err.Error())
}
