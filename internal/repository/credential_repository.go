package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
)

// ErrUniqueViolation marks writes rejected by a uniqueness constraint, in
// particular the one-dean-per-faculty and one-hod-per-department indexes.
var ErrUniqueViolation = errors.New("unique constraint violation")

const pqUniqueViolation = "23505"

// CredentialRepository provides access to the credential store: admin
// accounts in the RBAC database and student identities in the warehouse.
type CredentialRepository struct {
	rbac      *sqlx.DB
	warehouse *sqlx.DB
}

// NewCredentialRepository creates a new instance of CredentialRepository.
func NewCredentialRepository(rbac, warehouse *sqlx.DB) *CredentialRepository {
	return &CredentialRepository{rbac: rbac, warehouse: warehouse}
}

// FindStudentByAccessNumber returns the student dimension record for an
// access number. The lookup is exact; callers normalise case first.
func (r *CredentialRepository) FindStudentByAccessNumber(ctx context.Context, accessNumber string) (*models.Student, error) {
	const query = `SELECT student_id, access_number, reg_no, first_name, last_name, program_id FROM dim_student WHERE access_number = $1 LIMIT 1`
	var student models.Student
	if err := r.warehouse.GetContext(ctx, &student, query, accessNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by access number: %w", err)
	}
	return &student, nil
}

// FindAccountByUsername returns an active admin account by case-insensitive
// username.
func (r *CredentialRepository) FindAccountByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	const query = `SELECT id, username, password_hash, full_name, role, faculty_id, department_id, active, created_at, updated_at FROM app_users WHERE LOWER(username) = LOWER($1) AND active LIMIT 1`
	var account models.AdminAccount
	if err := r.rbac.GetContext(ctx, &account, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by username: %w", err)
	}
	return &account, nil
}

// FindAccountByID returns an admin account by identifier.
func (r *CredentialRepository) FindAccountByID(ctx context.Context, id string) (*models.AdminAccount, error) {
	const query = `SELECT id, username, password_hash, full_name, role, faculty_id, department_id, active, created_at, updated_at FROM app_users WHERE id = $1 LIMIT 1`
	var account models.AdminAccount
	if err := r.rbac.GetContext(ctx, &account, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// ListAccounts returns admin accounts matching the filter with total count.
func (r *CredentialRepository) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.AdminAccount, int, error) {
	baseQuery := `FROM app_users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(username) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, username, password_hash, full_name, role, faculty_id, department_id, active, created_at, updated_at %s ORDER BY username ASC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var accounts []models.AdminAccount
	if err := r.rbac.SelectContext(ctx, &accounts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.rbac.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	return accounts, total, nil
}

// CreateAccount inserts an account and its assigned courses in one
// transaction. The partial unique indexes reject a second active dean for a
// faculty or hod for a department atomically; such failures surface as
// ErrUniqueViolation.
func (r *CredentialRepository) CreateAccount(ctx context.Context, account *models.AdminAccount, courseCodes []string) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	tx, err := r.rbac.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO app_users (id, username, password_hash, full_name, role, faculty_id, department_id, active, created_at, updated_at) VALUES (:id, :username, :password_hash, :full_name, :role, :faculty_id, :department_id, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, account); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("create account: %w", err)
	}

	if err := replaceCoursesTx(ctx, tx, account.ID, courseCodes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("commit create account: %w", err)
	}
	return nil
}

// UpdateAccount updates mutable fields and replaces assigned courses in one
// transaction. A nil courseCodes leaves the assignment set untouched.
func (r *CredentialRepository) UpdateAccount(ctx context.Context, account *models.AdminAccount, courseCodes []string) error {
	account.UpdatedAt = time.Now().UTC()

	tx, err := r.rbac.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update account: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE app_users SET full_name = :full_name, role = :role, faculty_id = :faculty_id, department_id = :department_id, active = :active, password_hash = :password_hash, updated_at = :updated_at WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, account)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("update account: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	if courseCodes != nil {
		if err := replaceCoursesTx(ctx, tx, account.ID, courseCodes); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return ErrUniqueViolation
		}
		return fmt.Errorf("commit update account: %w", err)
	}
	return nil
}

// DeactivateAccount performs a soft delete. Deactivation also releases the
// account's dean/hod attachment for reassignment.
func (r *CredentialRepository) DeactivateAccount(ctx context.Context, id string) error {
	const query = `UPDATE app_users SET active = FALSE, updated_at = $2 WHERE id = $1`
	result, err := r.rbac.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAssignedCourses returns the course codes assigned to a staff account.
func (r *CredentialRepository) ListAssignedCourses(ctx context.Context, accountID string) ([]string, error) {
	const query = `SELECT course_code FROM app_user_courses WHERE user_id = $1 ORDER BY course_code`
	var codes []string
	if err := r.rbac.SelectContext(ctx, &codes, query, accountID); err != nil {
		return nil, fmt.Errorf("list assigned courses: %w", err)
	}
	return codes, nil
}

func replaceCoursesTx(ctx context.Context, tx *sqlx.Tx, accountID string, courseCodes []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM app_user_courses WHERE user_id = $1`, accountID); err != nil {
		return fmt.Errorf("clear assigned courses: %w", err)
	}
	for _, code := range courseCodes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO app_user_courses (user_id, course_code) VALUES ($1, $2) ON CONFLICT DO NOTHING`, accountID, code); err != nil {
			return fmt.Errorf("assign course %s: %w", code, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
