package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/scope"
)

func TestStudentsByDepartmentEmptyScopeSkipsWarehouse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	rows, err := repo.StudentsByDepartment(context.Background(), scope.EmptyScope())
	require.NoError(t, err)
	assert.Empty(t, rows)
	// No query expectations were registered: the warehouse is never touched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentsByDepartmentScoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	bundle := models.ClaimsBundle{Role: models.RoleDean}
	facultyID := int64(4)
	bundle.FacultyID = &facultyID
	pred, err := scope.Compute(bundle, nil)
	require.NoError(t, err)

	resultRows := sqlmock.NewRows([]string{"department_id", "department_name", "faculty_name", "student_count"}).
		AddRow(int64(7), "Computing", "Science & Technology", 120)
	mock.ExpectQuery(`SELECT dd\.department_id.+FROM dim_student ds JOIN dim_program dp.+WHERE 1=1 AND df\.faculty_id = \$1 GROUP BY`).
		WithArgs(facultyID).
		WillReturnRows(resultRows)

	rows, err := repo.StudentsByDepartment(context.Background(), pred)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Computing", rows[0].DepartmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeDistributionStaffCourses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	bundle := models.ClaimsBundle{Role: models.RoleStaff, AssignedCourses: []string{"CSC101"}}
	pred, err := scope.Compute(bundle, nil)
	require.NoError(t, err)

	resultRows := sqlmock.NewRows([]string{"bucket", "count"}).AddRow("A", 14).AddRow("B", 22)
	mock.ExpectQuery(`SELECT CASE WHEN fg\.score.+fe_s\.course_code IN \(\$1\)`).
		WithArgs("CSC101").
		WillReturnRows(resultRows)

	rows, err := repo.GradeDistribution(context.Background(), pred)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopStudentsUnscoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	pred, err := scope.Compute(models.ClaimsBundle{Role: models.RoleAnalyst}, nil)
	require.NoError(t, err)

	resultRows := sqlmock.NewRows([]string{"student_id", "access_number", "full_name", "average_grade", "course_count"}).
		AddRow("S0001", "A12345", "Grace Akello", 91.4, 6)
	mock.ExpectQuery(`SELECT ds\.student_id, ds\.access_number.+WHERE 1=1 GROUP BY.+LIMIT 5`).
		WillReturnRows(resultRows)

	rows, err := repo.TopStudents(context.Background(), pred, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A12345", rows[0].AccessNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGradesOverTimeStudentScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	bundle := models.ClaimsBundle{Role: models.RoleStudent, PrincipalID: "S0001"}
	pred, err := scope.Compute(bundle, nil)
	require.NoError(t, err)

	resultRows := sqlmock.NewRows([]string{"semester_id", "semester_name", "average_grade", "grade_count"}).
		AddRow(int64(1), "2025 Sem 1", 78.5, 5)
	mock.ExpectQuery(`SELECT dsem\.semester_id.+WHERE 1=1 AND ds\.student_id = \$1 GROUP BY`).
		WithArgs("S0001").
		WillReturnRows(resultRows)

	rows, err := repo.GradesOverTime(context.Background(), pred)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 78.5, rows[0].AverageGrade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceTrendHodScope(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	departmentID := int64(7)
	bundle := models.ClaimsBundle{Role: models.RoleHOD, DepartmentID: &departmentID}
	pred, err := scope.Compute(bundle, nil)
	require.NoError(t, err)

	resultRows := sqlmock.NewRows([]string{"semester_id", "semester_name", "session_count", "attendance_rate", "student_count", "course_count"}).
		AddRow(int64(1), "2025 Sem 1", 340, 88.2, 45, 6)
	mock.ExpectQuery(`SELECT dsem\.semester_id, dsem\.semester_name, COUNT\(\*\) AS session_count.+FROM dim_student ds JOIN fact_attendance fa.+JOIN dim_semester dsem.+WHERE 1=1 AND dd\.department_id = \$1 GROUP BY`).
		WithArgs(departmentID).
		WillReturnRows(resultRows)

	rows, err := repo.AttendanceTrend(context.Background(), pred)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 88.2, rows[0].AttendanceRate)
	assert.Equal(t, 45, rows[0].StudentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceTrendEmptyScopeSkipsWarehouse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	rows, err := repo.AttendanceTrend(context.Background(), scope.EmptyScope())
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentTrendSemesterFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	pred, err := scope.Compute(models.ClaimsBundle{Role: models.RoleFinance}, map[string]string{"semester_id": "2"})
	require.NoError(t, err)

	resultRows := sqlmock.NewRows([]string{"semester_id", "semester_name", "completed_amount", "completed_count", "pending_count"}).
		AddRow(int64(2), "2025 Sem 2", 48250.0, 310, 42)
	mock.ExpectQuery(`SELECT dsem\.semester_id, dsem\.semester_name, COALESCE\(SUM\(CASE WHEN fp\.status = 'Completed'.+FROM dim_student ds JOIN fact_payment fp.+WHERE 1=1 AND fp\.semester_id = \$1 GROUP BY`).
		WithArgs(int64(2)).
		WillReturnRows(resultRows)

	rows, err := repo.PaymentTrend(context.Background(), pred)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 48250.0, rows[0].CompletedAmount)
	assert.Equal(t, 42, rows[0].PendingCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDepartmentsFacultyFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	facultyID := int64(4)
	resultRows := sqlmock.NewRows([]string{"department_id", "department_name", "faculty_id"}).
		AddRow(int64(7), "Computing", facultyID)
	mock.ExpectQuery(`SELECT department_id, department_name, faculty_id FROM dim_department WHERE faculty_id = \$1 ORDER BY department_name`).
		WithArgs(facultyID).
		WillReturnRows(resultRows)

	rows, err := repo.ListDepartments(context.Background(), &facultyID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Computing", rows[0].DepartmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFaculties(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWarehouseRepository(db)

	rows := sqlmock.NewRows([]string{"faculty_id", "faculty_name"}).
		AddRow(int64(1), "Business").
		AddRow(int64(2), "Science & Technology")
	mock.ExpectQuery("SELECT faculty_id, faculty_name FROM dim_faculty").WillReturnRows(rows)

	faculties, err := repo.ListFaculties(context.Background())
	require.NoError(t, err)
	assert.Len(t, faculties, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
