package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/repository"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
)

type accountRepository interface {
	FindAccountByID(ctx context.Context, id string) (*models.AdminAccount, error)
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.AdminAccount, int, error)
	CreateAccount(ctx context.Context, account *models.AdminAccount, courseCodes []string) error
	UpdateAccount(ctx context.Context, account *models.AdminAccount, courseCodes []string) error
	DeactivateAccount(ctx context.Context, id string) error
	ListAssignedCourses(ctx context.Context, accountID string) ([]string, error)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AccountService manages administrative accounts. Role attachment rules are
// enforced here; the one-dean-per-faculty and one-hod-per-department
// invariants are enforced by the store and surfaced as conflicts.
type AccountService struct {
	repo       accountRepository
	audit      auditEmitter
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	bcryptCost int
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(repo accountRepository, audit auditEmitter, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger, bcryptCost int) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger, bcryptCost: bcryptCost}
}

// List returns accounts with pagination metadata.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.AccountResponse, *models.Pagination, error) {
	accounts, total, err := s.repo.ListAccounts(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.FromError(err)
	}

	responses := make([]models.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		var courses []string
		if account.Role == models.RoleStaff {
			if courses, err = s.repo.ListAssignedCourses(ctx, account.ID); err != nil {
				return nil, nil, appErrors.FromError(err)
			}
		}
		responses = append(responses, models.NewAccountResponse(account, courses))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	pagination := models.NewPagination(page, pageSize, total)
	return responses, &pagination, nil
}

// Get returns one account by identifier.
func (s *AccountService) Get(ctx context.Context, id string) (*models.AccountResponse, error) {
	account, err := s.repo.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.FromError(err)
	}

	var courses []string
	if account.Role == models.RoleStaff {
		if courses, err = s.repo.ListAssignedCourses(ctx, account.ID); err != nil {
			return nil, appErrors.FromError(err)
		}
	}
	resp := models.NewAccountResponse(*account, courses)
	return &resp, nil
}

// Create provisions a new administrative account.
func (s *AccountService) Create(ctx context.Context, actor models.ClaimsBundle, req models.CreateAccountRequest) (*models.AccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	role, err := parseAdminRole(req.Role)
	if err != nil {
		return nil, err
	}
	if err := validateAttachments(role, req.FacultyID, req.DepartmentID); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	account := &models.AdminAccount{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         role,
		FacultyID:    req.FacultyID,
		DepartmentID: req.DepartmentID,
		Active:       true,
	}

	if err := s.repo.CreateAccount(ctx, account, req.Courses); err != nil {
		s.emitAccountAudit(actor, models.AuditActionAccountCreate, account.Username, models.AuditOutcomeFailure, auditReason(err))
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflictingAssignment, "the role attachment or username is already taken")
		}
		return nil, appErrors.FromError(err)
	}

	s.emitAccountAudit(actor, models.AuditActionAccountCreate, account.ID, models.AuditOutcomeSuccess, "")
	s.invalidateDashboards(ctx)

	resp := models.NewAccountResponse(*account, req.Courses)
	return &resp, nil
}

// Update mutates an existing account. Password changes rehash; role changes
// revalidate attachments.
func (s *AccountService) Update(ctx context.Context, actor models.ClaimsBundle, id string, req models.UpdateAccountRequest) (*models.AccountResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}

	account, err := s.repo.FindAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.FromError(err)
	}

	if req.FullName != nil {
		account.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Role != nil {
		role, err := parseAdminRole(*req.Role)
		if err != nil {
			return nil, err
		}
		account.Role = role
	}
	if req.FacultyID != nil {
		account.FacultyID = req.FacultyID
	}
	if req.DepartmentID != nil {
		account.DepartmentID = req.DepartmentID
	}
	if req.Active != nil {
		account.Active = *req.Active
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		account.PasswordHash = string(hash)
	}

	if err := validateAttachments(account.Role, account.FacultyID, account.DepartmentID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAccount(ctx, account, req.Courses); err != nil {
		s.emitAccountAudit(actor, models.AuditActionAccountUpdate, id, models.AuditOutcomeFailure, auditReason(err))
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrConflictingAssignment, "the role attachment is already taken")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.FromError(err)
	}

	s.emitAccountAudit(actor, models.AuditActionAccountUpdate, id, models.AuditOutcomeSuccess, "")
	s.invalidateDashboards(ctx)

	courses := req.Courses
	if courses == nil && account.Role == models.RoleStaff {
		if courses, err = s.repo.ListAssignedCourses(ctx, account.ID); err != nil {
			return nil, appErrors.FromError(err)
		}
	}
	resp := models.NewAccountResponse(*account, courses)
	return &resp, nil
}

// Deactivate soft-deletes an account, releasing its role attachment.
func (s *AccountService) Deactivate(ctx context.Context, actor models.ClaimsBundle, id string) error {
	if err := s.repo.DeactivateAccount(ctx, id); err != nil {
		s.emitAccountAudit(actor, models.AuditActionAccountDelete, id, models.AuditOutcomeFailure, auditReason(err))
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.FromError(err)
	}

	s.emitAccountAudit(actor, models.AuditActionAccountDelete, id, models.AuditOutcomeSuccess, "")
	s.invalidateDashboards(ctx)
	return nil
}

func (s *AccountService) emitAccountAudit(actor models.ClaimsBundle, action, resourceID, outcome, reason string) {
	id := resourceID
	s.audit.Emit(models.AuditEvent{
		Username:   principalName(actor),
		RoleName:   string(actor.Role),
		Action:     action,
		Resource:   "accounts",
		ResourceID: &id,
		Outcome:    outcome,
		Reason:     reason,
	})
}

// invalidateDashboards clears cached dashboard payloads; scope membership
// may have changed with the account.
func (s *AccountService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "dash:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func parseAdminRole(raw string) (models.Role, error) {
	role, err := models.ParseRole(raw)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	for _, allowed := range models.AdminRoles {
		if role == allowed {
			return role, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "role is not assignable to accounts")
}

// validateAttachments ensures the role carries the organisational attachment
// its scope requires.
func validateAttachments(role models.Role, facultyID, departmentID *int64) error {
	switch role {
	case models.RoleDean:
		if facultyID == nil {
			return appErrors.Clone(appErrors.ErrValidation, "dean accounts require a faculty_id")
		}
	case models.RoleHOD:
		if departmentID == nil {
			return appErrors.Clone(appErrors.ErrValidation, "hod accounts require a department_id")
		}
	case models.RoleStaff:
		if facultyID == nil || departmentID == nil {
			return appErrors.Clone(appErrors.ErrValidation, "staff accounts require a faculty_id and department_id")
		}
	}
	return nil
}

func auditReason(err error) string {
	if errors.Is(err, repository.ErrUniqueViolation) {
		return "conflicting role assignment"
	}
	if errors.Is(err, sql.ErrNoRows) {
		return "account not found"
	}
	return "storage failure"
}
