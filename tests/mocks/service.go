package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/loanflow/loan-engine/internal/coordinator"
	"github.com/loanflow/loan-engine/internal/domain"
)

type MockApplicationService struct {
	mock.Mock
}

func (m *MockApplicationService) SubmitApplication(ctx context.Context, request *domain.SubmitApplicationRequest) (*domain.LoanApplication, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanApplication), args.Error(1)
}

func (m *MockApplicationService) GetApplication(ctx context.Context, id uuid.UUID) (*domain.ApplicationResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApplicationResponse), args.Error(1)
}

func (m *MockApplicationService) ListApplications(ctx context.Context, filter domain.ApplicationFilter) ([]*domain.LoanApplication, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanApplication), args.Error(1)
}

func (m *MockApplicationService) TransitionStatus(ctx context.Context, id uuid.UUID, newStatus domain.Status, role domain.Role) (*domain.LoanApplication, error) {
	args := m.Called(ctx, id, newStatus, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanApplication), args.Error(1)
}

func (m *MockApplicationService) BulkTransition(ctx context.Context, ids []uuid.UUID, newStatus domain.Status, role domain.Role) (*coordinator.BulkResult, error) {
	args := m.Called(ctx, ids, newStatus, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coordinator.BulkResult), args.Error(1)
}

func (m *MockApplicationService) ConfirmFeePayment(ctx context.Context, id uuid.UUID, paymentID string) (*domain.LoanApplication, error) {
	args := m.Called(ctx, id, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanApplication), args.Error(1)
}

func (m *MockApplicationService) CancelApplication(ctx context.Context, id uuid.UUID, role domain.Role) error {
	args := m.Called(ctx, id, role)
	return args.Error(0)
}

func (m *MockApplicationService) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}
