package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/loanflow/loan-engine/internal/coordinator"
	"github.com/loanflow/loan-engine/internal/domain"
	"github.com/loanflow/loan-engine/pkg/response"
)

// roleHeader carries the acting role; session handling lives in the
// gateway in front of this service.
const roleHeader = "X-Actor-Role"

// ApplicationService is the surface the HTTP layer needs from the
// application service.
type ApplicationService interface {
	SubmitApplication(ctx context.Context, request *domain.SubmitApplicationRequest) (*domain.LoanApplication, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*domain.ApplicationResponse, error)
	ListApplications(ctx context.Context, filter domain.ApplicationFilter) ([]*domain.LoanApplication, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, newStatus domain.Status, role domain.Role) (*domain.LoanApplication, error)
	BulkTransition(ctx context.Context, ids []uuid.UUID, newStatus domain.Status, role domain.Role) (*coordinator.BulkResult, error)
	ConfirmFeePayment(ctx context.Context, id uuid.UUID, paymentID string) (*domain.LoanApplication, error)
	CancelApplication(ctx context.Context, id uuid.UUID, role domain.Role) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error)
}

type ApplicationHandler struct {
	service   ApplicationService
	validator *validator.Validate
}

func NewApplicationHandler(service ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		service:   service,
		validator: newValidator(),
	}
}

// Submit handles POST /applications
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var request domain.SubmitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	app, err := h.service.SubmitApplication(r.Context(), &request)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Created(w, app)
}

// Get handles GET /applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, resp)
}

// List handles GET /applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ApplicationFilter{
		Status:     domain.Status(r.URL.Query().Get("status")),
		FeeStatus:  domain.FeeStatus(r.URL.Query().Get("feeStatus")),
		BorrowerID: r.URL.Query().Get("borrowerId"),
		LoanID:     r.URL.Query().Get("loanId"),
	}

	if filter.Status != "" && !filter.Status.Valid() {
		response.BadRequest(w, "unknown status filter", nil)
		return
	}
	if filter.FeeStatus != "" && !filter.FeeStatus.Valid() {
		response.BadRequest(w, "unknown fee status filter", nil)
		return
	}

	apps, err := h.service.ListApplications(r.Context(), filter)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, apps)
}

// Transition handles PATCH /applications/{id}/status
func (h *ApplicationHandler) Transition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	var request domain.TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	app, err := h.service.TransitionStatus(r.Context(), id, request.NewStatus, actorRole(r))
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, app)
}

// BulkTransition handles POST /applications/status
func (h *ApplicationHandler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	var request domain.BulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	result, err := h.service.BulkTransition(r.Context(), request.ApplicationIDs, request.NewStatus, actorRole(r))
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, newBulkSummary(result))
}

// ConfirmFee handles POST /applications/{id}/fee/confirm
func (h *ApplicationHandler) ConfirmFee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	var request domain.ConfirmFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}

	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	app, err := h.service.ConfirmFeePayment(r.Context(), id, request.PaymentID)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, app)
}

// Cancel handles DELETE /applications/{id}
func (h *ApplicationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelApplication(r.Context(), id, actorRole(r)); err != nil {
		response.BusinessError(w, err)
		return
	}

	response.NoContent(w)
}

// Schedule handles GET /applications/{id}/schedule
func (h *ApplicationHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.applicationID(w, r)
	if !ok {
		return
	}

	schedule, err := h.service.GetSchedule(r.Context(), id)
	if err != nil {
		response.BusinessError(w, err)
		return
	}

	response.Success(w, schedule)
}

func (h *ApplicationHandler) applicationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		response.BadRequest(w, "invalid application id", err)
		return uuid.Nil, false
	}
	return id, true
}

func actorRole(r *http.Request) domain.Role {
	role := domain.Role(r.Header.Get(roleHeader))
	if role == "" {
		role = domain.RoleBorrower
	}
	return role
}

// BulkSummary is the partial-success payload: callers retry only the
// failed subset.
type BulkSummary struct {
	Succeeded []uuid.UUID       `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

func newBulkSummary(result *coordinator.BulkResult) BulkSummary {
	summary := BulkSummary{
		Succeeded: result.Succeeded,
		Failed:    make(map[string]string, len(result.Failed)),
	}
	if summary.Succeeded == nil {
		summary.Succeeded = []uuid.UUID{}
	}
	for id, err := range result.Failed {
		summary.Failed[id.String()] = err.Error()
	}
	return summary
}
