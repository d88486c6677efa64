package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/amortization"
	"github.com/loanflow/loan-engine/internal/config"
	"github.com/loanflow/loan-engine/internal/coordinator"
	"github.com/loanflow/loan-engine/internal/domain"
	"github.com/loanflow/loan-engine/internal/lifecycle"
	"github.com/loanflow/loan-engine/internal/notifier"
	"github.com/loanflow/loan-engine/internal/payment"
	"github.com/loanflow/loan-engine/internal/repository"
	customError "github.com/loanflow/loan-engine/pkg/errors"
)

const scheduleCacheKeyFormat = "schedule:%s"

// ApplicationService wires the lifecycle engine, the amortization
// engine and the bulk coordinator to the persistence, payment and
// notification collaborators.
type ApplicationService struct {
	appRepo     repository.ApplicationRepository
	productRepo repository.ProductRepository
	engine      *lifecycle.Engine
	coord       *coordinator.Coordinator
	cache       *coordinator.Cache
	gateway     payment.Gateway
	notifier    notifier.Notifier
	redis       *redis.Client
	config      *config.Config
	logger      *zap.Logger
}

func NewApplicationService(
	appRepo repository.ApplicationRepository,
	productRepo repository.ProductRepository,
	gateway payment.Gateway,
	notif notifier.Notifier,
	redisClient *redis.Client,
	cfg *config.Config,
	logger *zap.Logger,
) *ApplicationService {
	engine := lifecycle.NewEngine()
	cache := coordinator.NewCache()

	return &ApplicationService{
		appRepo:     appRepo,
		productRepo: productRepo,
		engine:      engine,
		coord:       coordinator.NewCoordinator(cache, remoteStore{appRepo}, engine, logger),
		cache:       cache,
		gateway:     gateway,
		notifier:    notif,
		redis:       redisClient,
		config:      cfg,
		logger:      logger,
	}
}

// remoteStore adapts the repository to the coordinator's store boundary.
type remoteStore struct {
	repo repository.ApplicationRepository
}

func (s remoteStore) PatchStatus(ctx context.Context, id uuid.UUID, app *domain.LoanApplication) (*domain.LoanApplication, error) {
	return s.repo.PatchStatus(ctx, id, app)
}

// SubmitApplication creates a pending application against a product,
// snapshotting the product's current interest rate.
func (s *ApplicationService) SubmitApplication(ctx context.Context, request *domain.SubmitApplicationRequest) (*domain.LoanApplication, error) {
	product, err := s.productRepo.GetByLoanID(ctx, request.LoanID)
	if err != nil {
		return nil, err
	}

	if request.Amount.GreaterThan(product.MaxLoanLimit) {
		return nil, customError.WrapAmountExceedsLimit(request.Amount.String(), product.MaxLoanLimit.String())
	}

	tenure := request.TenureYears
	if tenure == 0 {
		tenure = product.DurationYears
	}
	if tenure <= 0 {
		tenure = s.config.Business.DefaultTenureYears
	}

	now := time.Now()
	app := &domain.LoanApplication{
		ID:           uuid.New(),
		LoanID:       product.LoanID,
		BorrowerID:   request.BorrowerID,
		Amount:       request.Amount,
		InterestRate: product.InterestRate,
		TenureYears:  tenure,
		Status:       domain.StatusPending,
		FeeStatus:    domain.FeeStatusUnpaid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.appRepo.Create(ctx, app); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.cache.Put(app)
	s.logger.Info("application submitted",
		zap.String("application_id", app.ID.String()),
		zap.String("loan_id", app.LoanID),
		zap.String("borrower_id", app.BorrowerID))

	return app, nil
}

// GetApplication returns the application with its derived presentation
// state for the timeline display.
func (s *ApplicationService) GetApplication(ctx context.Context, id uuid.UUID) (*domain.ApplicationResponse, error) {
	app, err := s.appRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	state, err := lifecycle.PresentationState(app.Status, app.FeeStatus)
	if err != nil {
		return nil, err
	}

	return &domain.ApplicationResponse{Application: app, Presentation: &state}, nil
}

// ListApplications fetches matching applications and refreshes the
// optimistic cache the board views operate on.
func (s *ApplicationService) ListApplications(ctx context.Context, filter domain.ApplicationFilter) ([]*domain.LoanApplication, error) {
	apps, err := s.appRepo.Fetch(ctx, filter)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if filter == (domain.ApplicationFilter{}) {
		s.cache.Load(apps)
	} else {
		for _, app := range apps {
			s.cache.Put(app)
		}
	}

	return apps, nil
}

// TransitionStatus applies a single reviewed status change and notifies
// subscribers on success.
func (s *ApplicationService) TransitionStatus(ctx context.Context, id uuid.UUID, newStatus domain.Status, role domain.Role) (*domain.LoanApplication, error) {
	if s.cache.Get(id) == nil {
		app, err := s.appRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.cache.Put(app)
	}

	updated, event, err := s.coord.ApplyTransition(ctx, id, newStatus, role)
	if err != nil {
		return nil, err
	}

	if event != nil {
		s.publishStatusChanged(ctx, event)
		s.invalidateScheduleCache(ctx, id)
	}

	return updated, nil
}

// BulkTransition applies a batch of status changes and notifies for
// every item that settled.
func (s *ApplicationService) BulkTransition(ctx context.Context, ids []uuid.UUID, newStatus domain.Status, role domain.Role) (*coordinator.BulkResult, error) {
	// Warm the cache for items the board has not loaded yet.
	for _, id := range ids {
		if s.cache.Get(id) != nil {
			continue
		}
		app, err := s.appRepo.GetByID(ctx, id)
		if err != nil {
			continue
		}
		s.cache.Put(app)
	}

	result := s.coord.ApplyBulkTransition(ctx, ids, newStatus, role)

	for _, event := range result.Events {
		s.publishStatusChanged(ctx, event)
		s.invalidateScheduleCache(ctx, event.ApplicationID)
	}

	return result, nil
}

// ConfirmFeePayment verifies the provider payment and marks the fee
// paid, which locks the application status for good.
func (s *ApplicationService) ConfirmFeePayment(ctx context.Context, id uuid.UUID, paymentID string) (*domain.LoanApplication, error) {
	app, err := s.appRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	transactionRef, err := s.gateway.VerifyPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if err := s.engine.MarkFeePaid(app, transactionRef); err != nil {
		return nil, err
	}

	updated, err := s.appRepo.PatchFeeStatus(ctx, id, app)
	if err != nil {
		return nil, err
	}

	s.cache.Put(updated)
	s.logger.Info("application fee paid",
		zap.String("application_id", id.String()),
		zap.String("transaction_ref", transactionRef))

	return updated, nil
}

// CancelApplication removes a pending application on the borrower's
// request. Anything past pending must go through review instead.
func (s *ApplicationService) CancelApplication(ctx context.Context, id uuid.UUID, role domain.Role) error {
	if role != domain.RoleBorrower && role != domain.RoleAdmin {
		return customError.WrapForbiddenRole(string(role))
	}

	if err := s.appRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(id)
	s.invalidateScheduleCache(ctx, id)
	return nil
}

// GetSchedule computes the repayment schedule from the application's
// approved terms, with a redis-side cache keyed by application id.
func (s *ApplicationService) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	app, err := s.appRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if app.Status != domain.StatusApproved {
		return nil, customError.WrapInvalidTransition(string(app.Status), "schedule display requires approval")
	}

	cacheKey := fmt.Sprintf(scheduleCacheKeyFormat, id)
	if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
		var resp domain.ScheduleResponse
		if err := json.Unmarshal([]byte(cached), &resp); err == nil {
			return &resp, nil
		}
	}

	rows, err := amortization.ComputeSchedule(app.Amount, app.InterestRate, app.TenureYears)
	if err != nil {
		return nil, err
	}

	resp := &domain.ScheduleResponse{
		ApplicationID: id.String(),
		EMI:           rows[0].EMI,
		TotalMonths:   len(rows),
		Schedule:      rows,
	}

	if payload, err := json.Marshal(resp); err == nil {
		if err := s.redis.Set(ctx, cacheKey, payload, s.config.GetScheduleCacheTTL()).Err(); err != nil {
			s.logger.Warn("schedule cache write failed",
				zap.String("application_id", id.String()),
				zap.Error(err))
		}
	}

	return resp, nil
}

func (s *ApplicationService) publishStatusChanged(ctx context.Context, event *domain.StatusChangedEvent) {
	if err := s.notifier.PublishStatusChanged(ctx, event); err != nil {
		// Notification delivery is best effort; the transition itself
		// already committed.
		s.logger.Warn("status changed event not delivered",
			zap.String("application_id", event.ApplicationID.String()),
			zap.Error(err))
	}
}

func (s *ApplicationService) invalidateScheduleCache(ctx context.Context, id uuid.UUID) {
	key := fmt.Sprintf(scheduleCacheKeyFormat, id)
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("schedule cache invalidation failed",
			zap.String("application_id", id.String()),
			zap.Error(err))
	}
}
