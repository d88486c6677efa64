package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loanflow/loan-engine/internal/amortization"
	"github.com/loanflow/loan-engine/internal/config"
	"github.com/loanflow/loan-engine/internal/domain"
	customError "github.com/loanflow/loan-engine/pkg/errors"
	"github.com/loanflow/loan-engine/tests/mocks"
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			DefaultTenureYears:  1,
			ReminderAfterDays:   7,
			ScheduleCacheTTL:    "24h",
			NotificationChannel: "loan-engine:status-changed",
		},
	}
}

type serviceFixture struct {
	service     *ApplicationService
	appRepo     *mocks.MockApplicationRepository
	productRepo *mocks.MockProductRepository
	gateway     *mocks.MockPaymentGateway
	notifier    *mocks.MockNotifier
	redisMock   redismock.ClientMock
}

func newFixture() *serviceFixture {
	appRepo := &mocks.MockApplicationRepository{}
	productRepo := &mocks.MockProductRepository{}
	gateway := &mocks.MockPaymentGateway{}
	notif := &mocks.MockNotifier{}
	redisClient, redisMock := redismock.NewClientMock()

	svc := NewApplicationService(appRepo, productRepo, gateway, notif, redisClient, testConfig(), zap.NewNop())

	return &serviceFixture{
		service:     svc,
		appRepo:     appRepo,
		productRepo: productRepo,
		gateway:     gateway,
		notifier:    notif,
		redisMock:   redisMock,
	}
}

func testProduct() *domain.LoanProduct {
	return &domain.LoanProduct{
		LoanID:        "LOAN123",
		Name:          "Working Capital",
		InterestRate:  decimal.NewFromInt(10),
		MaxLoanLimit:  decimal.NewFromInt(500000),
		DurationYears: 1,
		FeeAmount:     decimal.NewFromInt(500),
	}
}

func pendingApplication() *domain.LoanApplication {
	return &domain.LoanApplication{
		ID:           uuid.New(),
		LoanID:       "LOAN123",
		BorrowerID:   "BORROWER1",
		Amount:       decimal.NewFromInt(100000),
		InterestRate: decimal.NewFromInt(10),
		TenureYears:  1,
		Status:       domain.StatusPending,
		FeeStatus:    domain.FeeStatusUnpaid,
		CreatedAt:    time.Now().AddDate(0, 0, -2),
	}
}

func TestSubmitApplication(t *testing.T) {
	tests := []struct {
		name        string
		request     *domain.SubmitApplicationRequest
		setupMocks  func(*serviceFixture)
		expectedErr error
		validateApp func(*testing.T, *domain.LoanApplication)
	}{
		{
			name: "success with product tenure",
			request: &domain.SubmitApplicationRequest{
				LoanID:     "LOAN123",
				BorrowerID: "BORROWER1",
				Amount:     decimal.NewFromInt(100000),
			},
			setupMocks: func(f *serviceFixture) {
				f.productRepo.On("GetByLoanID", mock.Anything, "LOAN123").Return(testProduct(), nil)
				f.appRepo.On("Create", mock.Anything, mock.MatchedBy(func(app *domain.LoanApplication) bool {
					return app.Status == domain.StatusPending && app.FeeStatus == domain.FeeStatusUnpaid
				})).Return(nil)
			},
			validateApp: func(t *testing.T, app *domain.LoanApplication) {
				assert.Equal(t, domain.StatusPending, app.Status)
				assert.Equal(t, domain.FeeStatusUnpaid, app.FeeStatus)
				assert.Equal(t, 1, app.TenureYears)
				// Rate is snapshotted from the product at submission time.
				assert.True(t, app.InterestRate.Equal(decimal.NewFromInt(10)))
				assert.Nil(t, app.ApprovedAt)
			},
		},
		{
			name: "amount exceeds product limit",
			request: &domain.SubmitApplicationRequest{
				LoanID:     "LOAN123",
				BorrowerID: "BORROWER1",
				Amount:     decimal.NewFromInt(600000),
			},
			setupMocks: func(f *serviceFixture) {
				f.productRepo.On("GetByLoanID", mock.Anything, "LOAN123").Return(testProduct(), nil)
			},
			expectedErr: customError.ErrAmountExceedsLimit,
		},
		{
			name: "unknown product",
			request: &domain.SubmitApplicationRequest{
				LoanID:     "MISSING",
				BorrowerID: "BORROWER1",
				Amount:     decimal.NewFromInt(1000),
			},
			setupMocks: func(f *serviceFixture) {
				f.productRepo.On("GetByLoanID", mock.Anything, "MISSING").
					Return(nil, customError.WrapProductNotFound("MISSING"))
			},
			expectedErr: customError.ErrProductNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setupMocks(f)

			app, err := f.service.SubmitApplication(context.Background(), tt.request)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr))
				assert.Nil(t, app)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, app)
			if tt.validateApp != nil {
				tt.validateApp(t, app)
			}
			f.appRepo.AssertExpectations(t)
			f.productRepo.AssertExpectations(t)
		})
	}
}

func TestTransitionStatus_PublishesEvent(t *testing.T) {
	f := newFixture()
	app := pendingApplication()

	approved := app.Clone()
	approved.Status = domain.StatusApproved
	now := time.Now()
	approved.ApprovedAt = &now

	f.appRepo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
	f.appRepo.On("PatchStatus", mock.Anything, app.ID, mock.MatchedBy(func(a *domain.LoanApplication) bool {
		return a.Status == domain.StatusApproved && a.ApprovedAt != nil
	})).Return(approved, nil)
	f.notifier.On("PublishStatusChanged", mock.Anything, mock.MatchedBy(func(e *domain.StatusChangedEvent) bool {
		return e.ApplicationID == app.ID &&
			e.OldStatus == domain.StatusPending &&
			e.NewStatus == domain.StatusApproved
	})).Return(nil)
	f.redisMock.ExpectDel(fmt.Sprintf("schedule:%s", app.ID)).SetVal(1)

	updated, err := f.service.TransitionStatus(context.Background(), app.ID, domain.StatusApproved, domain.RoleManager)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, updated.Status)
	f.appRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestTransitionStatus_LockedApplication(t *testing.T) {
	f := newFixture()
	app := pendingApplication()
	app.Status = domain.StatusApproved
	app.FeeStatus = domain.FeeStatusPaid

	f.appRepo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.service.TransitionStatus(context.Background(), app.ID, domain.StatusRejected, domain.RoleAdmin)

	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrApplicationLocked))
	f.appRepo.AssertNotCalled(t, "PatchStatus", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "PublishStatusChanged", mock.Anything, mock.Anything)
}

func TestConfirmFeePayment(t *testing.T) {
	tests := []struct {
		name        string
		status      domain.Status
		setupMocks  func(*serviceFixture, *domain.LoanApplication)
		expectedErr error
	}{
		{
			name:   "success on approved application",
			status: domain.StatusApproved,
			setupMocks: func(f *serviceFixture, app *domain.LoanApplication) {
				f.gateway.On("VerifyPayment", mock.Anything, "12345").Return("12345", nil)
				paid := app.Clone()
				paid.FeeStatus = domain.FeeStatusPaid
				paid.TransactionRef = "12345"
				f.appRepo.On("PatchFeeStatus", mock.Anything, app.ID, mock.MatchedBy(func(a *domain.LoanApplication) bool {
					return a.FeeStatus == domain.FeeStatusPaid && a.TransactionRef == "12345"
				})).Return(paid, nil)
			},
		},
		{
			name:   "pending application rejects payment",
			status: domain.StatusPending,
			setupMocks: func(f *serviceFixture, app *domain.LoanApplication) {
				f.gateway.On("VerifyPayment", mock.Anything, "12345").Return("12345", nil)
			},
			expectedErr: customError.ErrIllegalFeePayment,
		},
		{
			name:   "provider refuses payment",
			status: domain.StatusApproved,
			setupMocks: func(f *serviceFixture, app *domain.LoanApplication) {
				f.gateway.On("VerifyPayment", mock.Anything, "12345").
					Return("", customError.WrapPaymentNotApproved("12345", "pending"))
			},
			expectedErr: customError.ErrPaymentNotApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			app := pendingApplication()
			app.Status = tt.status
			if tt.status == domain.StatusApproved {
				now := time.Now()
				app.ApprovedAt = &now
			}

			f.appRepo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
			tt.setupMocks(f, app)

			updated, err := f.service.ConfirmFeePayment(context.Background(), app.ID, "12345")

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectedErr))
				f.appRepo.AssertNotCalled(t, "PatchFeeStatus", mock.Anything, mock.Anything, mock.Anything)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.FeeStatusPaid, updated.FeeStatus)
			assert.Equal(t, "12345", updated.TransactionRef)
			f.appRepo.AssertExpectations(t)
			f.gateway.AssertExpectations(t)
		})
	}
}

func TestGetSchedule(t *testing.T) {
	f := newFixture()
	app := pendingApplication()
	app.Status = domain.StatusApproved
	now := time.Now()
	app.ApprovedAt = &now

	rows, err := amortization.ComputeSchedule(app.Amount, app.InterestRate, app.TenureYears)
	require.NoError(t, err)
	expected := &domain.ScheduleResponse{
		ApplicationID: app.ID.String(),
		EMI:           rows[0].EMI,
		TotalMonths:   len(rows),
		Schedule:      rows,
	}
	payload, err := json.Marshal(expected)
	require.NoError(t, err)

	cacheKey := fmt.Sprintf("schedule:%s", app.ID)
	f.appRepo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
	f.redisMock.ExpectGet(cacheKey).RedisNil()
	f.redisMock.ExpectSet(cacheKey, payload, 24*time.Hour).SetVal("OK")

	resp, err := f.service.GetSchedule(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Equal(t, 12, resp.TotalMonths)
	assert.True(t, resp.EMI.Equal(decimal.NewFromFloat(8791.59)))
	assert.True(t, resp.Schedule[11].Balance.IsZero())
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestGetSchedule_CacheHit(t *testing.T) {
	f := newFixture()
	app := pendingApplication()
	app.Status = domain.StatusApproved

	cached := &domain.ScheduleResponse{
		ApplicationID: app.ID.String(),
		EMI:           decimal.NewFromFloat(8791.59),
		TotalMonths:   12,
	}
	payload, err := json.Marshal(cached)
	require.NoError(t, err)

	f.appRepo.On("GetByID", mock.Anything, app.ID).Return(app, nil)
	f.redisMock.ExpectGet(fmt.Sprintf("schedule:%s", app.ID)).SetVal(string(payload))

	resp, err := f.service.GetSchedule(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Equal(t, 12, resp.TotalMonths)
	assert.True(t, resp.EMI.Equal(decimal.NewFromFloat(8791.59)))
	assert.NoError(t, f.redisMock.ExpectationsWereMet())
}

func TestGetSchedule_RequiresApproval(t *testing.T) {
	f := newFixture()
	app := pendingApplication()

	f.appRepo.On("GetByID", mock.Anything, app.ID).Return(app, nil)

	_, err := f.service.GetSchedule(context.Background(), app.ID)

	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrInvalidTransition))
}

func TestCancelApplication(t *testing.T) {
	f := newFixture()
	app := pendingApplication()

	f.appRepo.On("Delete", mock.Anything, app.ID).Return(nil)
	f.redisMock.ExpectDel(fmt.Sprintf("schedule:%s", app.ID)).SetVal(0)

	err := f.service.CancelApplication(context.Background(), app.ID, domain.RoleBorrower)

	require.NoError(t, err)
	f.appRepo.AssertExpectations(t)
}

func TestCancelApplication_ManagerForbidden(t *testing.T) {
	f := newFixture()

	err := f.service.CancelApplication(context.Background(), uuid.New(), domain.RoleManager)

	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrForbiddenRole))
	f.appRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestBulkTransition_MixedBatch(t *testing.T) {
	f := newFixture()

	eligible := pendingApplication()
	locked := pendingApplication()
	locked.Status = domain.StatusApproved
	locked.FeeStatus = domain.FeeStatusPaid

	approved := eligible.Clone()
	approved.Status = domain.StatusApproved
	now := time.Now()
	approved.ApprovedAt = &now

	f.appRepo.On("GetByID", mock.Anything, eligible.ID).Return(eligible, nil)
	f.appRepo.On("GetByID", mock.Anything, locked.ID).Return(locked, nil)
	f.appRepo.On("PatchStatus", mock.Anything, eligible.ID, mock.Anything).Return(approved, nil)
	f.notifier.On("PublishStatusChanged", mock.Anything, mock.Anything).Return(nil)
	f.redisMock.ExpectDel(fmt.Sprintf("schedule:%s", eligible.ID)).SetVal(0)

	result, err := f.service.BulkTransition(context.Background(),
		[]uuid.UUID{eligible.ID, locked.ID}, domain.StatusApproved, domain.RoleManager)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{eligible.ID}, result.Succeeded)
	require.Contains(t, result.Failed, locked.ID)
	assert.True(t, errors.Is(result.Failed[locked.ID], customError.ErrApplicationLocked))

	// The locked item never produced a status patch.
	f.appRepo.AssertNumberOfCalls(t, "PatchStatus", 1)
}
