package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	aucerrors "carbid/internal/auctions/errors"
	"carbid/internal/auctions/validator"
	"carbid/pkg/config"
	apperrors "carbid/pkg/errors"
	"carbid/pkg/logger"
	"carbid/pkg/model"
)

type mockAuctionRepository struct {
	createFunc   func(ctx context.Context, auction *model.Auction) error
	findByIDFunc func(ctx context.Context, id int64) (*model.Auction, error)
	findAllFunc  func(ctx context.Context, limit int, offset int64) ([]*model.Auction, error)
	countFunc    func(ctx context.Context) (int64, error)
}

func (m *mockAuctionRepository) Create(ctx context.Context, auction *model.Auction) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, auction)
	}
	return nil
}

func (m *mockAuctionRepository) FindByID(ctx context.Context, id int64) (*model.Auction, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Auction{ID: id}, nil
}

func (m *mockAuctionRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Auction{}, nil
}

func (m *mockAuctionRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

type mockCarRepository struct {
	createFunc   func(ctx context.Context, car *model.Car) error
	findByIDFunc func(ctx context.Context, id int64) (*model.Car, error)
}

func (m *mockCarRepository) Create(ctx context.Context, car *model.Car) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, car)
	}
	return nil
}

func (m *mockCarRepository) FindByID(ctx context.Context, id int64) (*model.Car, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return &model.Car{ID: id}, nil
}

func (m *mockCarRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Car, error) {
	return []*model.Car{}, nil
}

type mockUserRepository struct {
	createFunc func(ctx context.Context, user *model.User) error
	deleteFunc func(ctx context.Context, id int64) error
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	return &model.User{ID: id}, nil
}

func (m *mockUserRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	return []*model.User{}, nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard}),
	}
}

func newService(auctions *mockAuctionRepository, cars *mockCarRepository, users *mockUserRepository) AuctionService {
	cfg := testConfig()
	return NewAuctionService(auctions, cars, users, validator.NewAuctionValidator(cfg.Log), cfg)
}

func validAuction() *model.Auction {
	return &model.Auction{
		Name:      "Vintage roadster",
		StartTime: time.Now(),
		EndTime:   time.Now().Add(24 * time.Hour),
		CarID:     1,
	}
}

func TestCreateAuction(t *testing.T) {
	svc := newService(&mockAuctionRepository{
		createFunc: func(_ context.Context, auction *model.Auction) error {
			auction.ID = 7
			return nil
		},
	}, &mockCarRepository{}, &mockUserRepository{})

	auction := validAuction()
	if err := svc.CreateAuction(context.Background(), auction); err != nil {
		t.Fatalf("CreateAuction: %v", err)
	}
	if auction.ID != 7 {
		t.Fatalf("auction ID = %d after create", auction.ID)
	}
}

func TestCreateAuction_ValidationFailure(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{}, &mockUserRepository{})

	auction := validAuction()
	auction.Name = ""

	err := svc.CreateAuction(context.Background(), auction)
	if err == nil {
		t.Fatal("nameless auction accepted")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("error = %v, want validation error", err)
	}
}

func TestCreateAuction_EndBeforeStart(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{}, &mockUserRepository{})

	auction := validAuction()
	auction.EndTime = auction.StartTime.Add(-time.Hour)

	if err := svc.CreateAuction(context.Background(), auction); err == nil {
		t.Fatal("auction ending before its start accepted")
	}
}

func TestCreateAuction_NegativeOpeningBid(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{}, &mockUserRepository{})

	auction := validAuction()
	auction.CurrentHighestBid = decimal.NewFromInt(-1)

	err := svc.CreateAuction(context.Background(), auction)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidInput {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestCreateAuction_UnknownCar(t *testing.T) {
	svc := newService(&mockAuctionRepository{
		createFunc: func(_ context.Context, _ *model.Auction) error {
			return aucerrors.ErrForeignKey
		},
	}, &mockCarRepository{}, &mockUserRepository{})

	err := svc.CreateAuction(context.Background(), validAuction())
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInvalidInput {
		t.Fatalf("error = %v, want invalid input for missing car", err)
	}
}

func TestGetAuction_NotFound(t *testing.T) {
	svc := newService(&mockAuctionRepository{
		findByIDFunc: func(_ context.Context, _ int64) (*model.Auction, error) {
			return nil, aucerrors.ErrNotFound
		},
	}, &mockCarRepository{}, &mockUserRepository{})

	_, err := svc.GetAuction(context.Background(), 99)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestListAuctions(t *testing.T) {
	svc := newService(&mockAuctionRepository{
		countFunc: func(_ context.Context) (int64, error) {
			time.Sleep(5 * time.Millisecond)
			return 42, nil
		},
		findAllFunc: func(_ context.Context, limit int, offset int64) ([]*model.Auction, error) {
			time.Sleep(5 * time.Millisecond)
			return []*model.Auction{{ID: 1, Name: "First"}}, nil
		},
	}, &mockCarRepository{}, &mockUserRepository{})

	// Count and page run concurrently; repeated runs surface data races.
	for i := 0; i < 10; i++ {
		auctions, count, err := svc.ListAuctions(context.Background(), 10, 0)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if count != 42 {
			t.Fatalf("iteration %d: count = %d, want 42", i, count)
		}
		if len(auctions) != 1 || auctions[0].Name != "First" {
			t.Fatalf("iteration %d: auctions = %+v", i, auctions)
		}
	}
}

func TestListAuctions_RepositoryFailure(t *testing.T) {
	svc := newService(&mockAuctionRepository{
		findAllFunc: func(_ context.Context, _ int, _ int64) ([]*model.Auction, error) {
			return nil, errors.New("connection refused")
		},
	}, &mockCarRepository{}, &mockUserRepository{})

	_, _, err := svc.ListAuctions(context.Background(), 10, 0)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeInternal {
		t.Fatalf("error = %v, want internal", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{}, &mockUserRepository{
		createFunc: func(_ context.Context, _ *model.User) error {
			return aucerrors.ErrDuplicate
		},
	})

	err := svc.CreateUser(context.Background(), &model.User{Name: "Ada", Email: "ada@example.com"})
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("error = %v, want conflict", err)
	}
}

func TestCreateUser_InvalidEmail(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{}, &mockUserRepository{})

	if err := svc.CreateUser(context.Background(), &model.User{Name: "Ada", Email: "not-an-email"}); err == nil {
		t.Fatal("invalid email accepted")
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{}, &mockUserRepository{
		deleteFunc: func(_ context.Context, _ int64) error {
			return aucerrors.ErrNotFound
		},
	})

	err := svc.DeleteUser(context.Background(), 99)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestCreateCar(t *testing.T) {
	svc := newService(&mockAuctionRepository{}, &mockCarRepository{
		createFunc: func(_ context.Context, car *model.Car) error {
			car.ID = 3
			return nil
		},
	}, &mockUserRepository{})

	car := &model.Car{Make: "Toyota", Model: "Supra", Year: 1998}
	if err := svc.CreateCar(context.Background(), car); err != nil {
		t.Fatalf("CreateCar: %v", err)
	}
	if car.ID != 3 {
		t.Fatalf("car ID = %d after create", car.ID)
	}
}
