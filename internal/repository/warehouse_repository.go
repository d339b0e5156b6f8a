package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/scope"
)

// WarehouseRepository assembles scoped analytics queries against the star
// schema. Every method takes a rendered scope predicate; an empty predicate
// short-circuits without a database round trip.
type WarehouseRepository struct {
	db *sqlx.DB
}

// NewWarehouseRepository creates a new instance of WarehouseRepository.
func NewWarehouseRepository(db *sqlx.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// compose appends the scope clause to a template. The template ends with its
// own WHERE 1=1 so scope fragments always attach with AND.
func compose(template string, clause scope.Clause, tail string) string {
	var b strings.Builder
	b.WriteString(template)
	b.WriteString(clause.Join)
	b.WriteString(" WHERE 1=1")
	for _, w := range clause.Where {
		b.WriteString(" AND ")
		b.WriteString(w)
	}
	if tail != "" {
		b.WriteString(" ")
		b.WriteString(tail)
	}
	return b.String()
}

// StatsSummary returns the headline aggregates visible under the predicate.
func (r *WarehouseRepository) StatsSummary(ctx context.Context, pred scope.Predicate) (*models.StatsSummary, error) {
	if pred.IsEmpty() {
		return &models.StatsSummary{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fe"})
	query := compose(
		`SELECT COUNT(DISTINCT ds.student_id) AS total_students, COUNT(DISTINCT fe.course_code) AS total_courses FROM dim_student ds JOIN fact_enrollment fe ON fe.student_id = ds.student_id`,
		clause, "")

	var summary models.StatsSummary
	if err := r.db.GetContext(ctx, &summary, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("stats summary: %w", err)
	}

	gradeClause := pred.SQL(scope.SQLOptions{FactAlias: "fg"})
	gradeQuery := compose(
		`SELECT COALESCE(AVG(fg.score), 0) AS average_grade FROM dim_student ds JOIN fact_grade fg ON fg.student_id = ds.student_id`,
		gradeClause, "")
	if err := r.db.GetContext(ctx, &summary.AverageGrade, gradeQuery, gradeClause.Args...); err != nil {
		return nil, fmt.Errorf("stats average grade: %w", err)
	}

	payClause := pred.SQL(scope.SQLOptions{FactAlias: "fp"})
	payQuery := compose(
		`SELECT COALESCE(SUM(CASE WHEN fp.status = 'completed' THEN fp.amount ELSE 0 END), 0) AS completed_payments, COALESCE(SUM(CASE WHEN fp.status = 'pending' THEN fp.amount ELSE 0 END), 0) AS pending_payments FROM dim_student ds JOIN fact_payment fp ON fp.student_id = ds.student_id`,
		payClause, "")
	var payments struct {
		Completed float64 `db:"completed_payments"`
		Pending   float64 `db:"pending_payments"`
	}
	if err := r.db.GetContext(ctx, &payments, payQuery, payClause.Args...); err != nil {
		return nil, fmt.Errorf("stats payments: %w", err)
	}
	summary.CompletedPayments = payments.Completed
	summary.PendingPayments = payments.Pending

	return &summary, nil
}

// StudentsByDepartment counts students per department within scope. The
// template pre-joins the full dimension chain, so those joins are declared
// existing and the scope only contributes WHERE fragments.
func (r *WarehouseRepository) StudentsByDepartment(ctx context.Context, pred scope.Predicate) ([]models.StudentsByDepartment, error) {
	if pred.IsEmpty() {
		return []models.StudentsByDepartment{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{
		ExistingJoins: scope.Joins{Program: true, Department: true, Faculty: true},
	})
	query := compose(
		`SELECT dd.department_id, dd.department_name, df.faculty_name, COUNT(DISTINCT ds.student_id) AS student_count FROM dim_student ds JOIN dim_program dp ON ds.program_id = dp.program_id JOIN dim_department dd ON dp.department_id = dd.department_id JOIN dim_faculty df ON dd.faculty_id = df.faculty_id`,
		clause,
		"GROUP BY dd.department_id, dd.department_name, df.faculty_name ORDER BY student_count DESC")

	rows := []models.StudentsByDepartment{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("students by department: %w", err)
	}
	return rows, nil
}

// GradeDistribution buckets grades into letter bands within scope.
func (r *WarehouseRepository) GradeDistribution(ctx context.Context, pred scope.Predicate) ([]models.GradeDistributionBin, error) {
	if pred.IsEmpty() {
		return []models.GradeDistributionBin{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fg"})
	query := compose(
		`SELECT CASE WHEN fg.score >= 80 THEN 'A' WHEN fg.score >= 70 THEN 'B' WHEN fg.score >= 60 THEN 'C' WHEN fg.score >= 50 THEN 'D' ELSE 'F' END AS bucket, COUNT(*) AS count FROM dim_student ds JOIN fact_grade fg ON fg.student_id = ds.student_id`,
		clause,
		"GROUP BY bucket ORDER BY bucket")

	rows := []models.GradeDistributionBin{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("grade distribution: %w", err)
	}
	return rows, nil
}

// GradesOverTime returns the average grade per semester within scope.
func (r *WarehouseRepository) GradesOverTime(ctx context.Context, pred scope.Predicate) ([]models.GradeTrendPoint, error) {
	if pred.IsEmpty() {
		return []models.GradeTrendPoint{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fg"})
	query := compose(
		`SELECT dsem.semester_id, dsem.semester_name, COALESCE(AVG(fg.score), 0) AS average_grade, COUNT(*) AS grade_count FROM dim_student ds JOIN fact_grade fg ON fg.student_id = ds.student_id JOIN dim_semester dsem ON fg.semester_id = dsem.semester_id`,
		clause,
		"GROUP BY dsem.semester_id, dsem.semester_name ORDER BY dsem.semester_id")

	rows := []models.GradeTrendPoint{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("grades over time: %w", err)
	}
	return rows, nil
}

// AttendanceByCourse aggregates attendance rates per course within scope.
func (r *WarehouseRepository) AttendanceByCourse(ctx context.Context, pred scope.Predicate) ([]models.AttendanceByCourse, error) {
	if pred.IsEmpty() {
		return []models.AttendanceByCourse{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fa"})
	query := compose(
		`SELECT dc.course_code, dc.course_name, COUNT(*) AS session_count, COALESCE(AVG(CASE WHEN fa.present THEN 1.0 ELSE 0.0 END) * 100, 0) AS attendance_rate FROM dim_student ds JOIN fact_attendance fa ON fa.student_id = ds.student_id JOIN dim_course dc ON fa.course_code = dc.course_code`,
		clause,
		"GROUP BY dc.course_code, dc.course_name ORDER BY dc.course_code")

	rows := []models.AttendanceByCourse{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("attendance by course: %w", err)
	}
	return rows, nil
}

// AttendanceTrend aggregates attendance per semester within scope.
func (r *WarehouseRepository) AttendanceTrend(ctx context.Context, pred scope.Predicate) ([]models.AttendanceTrendPoint, error) {
	if pred.IsEmpty() {
		return []models.AttendanceTrendPoint{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fa"})
	query := compose(
		`SELECT dsem.semester_id, dsem.semester_name, COUNT(*) AS session_count, COALESCE(AVG(CASE WHEN fa.present THEN 1.0 ELSE 0.0 END) * 100, 0) AS attendance_rate, COUNT(DISTINCT fa.student_id) AS student_count, COUNT(DISTINCT fa.course_code) AS course_count FROM dim_student ds JOIN fact_attendance fa ON fa.student_id = ds.student_id JOIN dim_semester dsem ON fa.semester_id = dsem.semester_id`,
		clause,
		"GROUP BY dsem.semester_id, dsem.semester_name ORDER BY dsem.semester_id")

	rows := []models.AttendanceTrendPoint{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("attendance trend: %w", err)
	}
	return rows, nil
}

// PaymentStatus aggregates payments per status within scope.
func (r *WarehouseRepository) PaymentStatus(ctx context.Context, pred scope.Predicate) ([]models.PaymentStatusSummary, error) {
	if pred.IsEmpty() {
		return []models.PaymentStatusSummary{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fp"})
	query := compose(
		`SELECT fp.status, COUNT(*) AS count, COALESCE(SUM(fp.amount), 0) AS total_amount FROM dim_student ds JOIN fact_payment fp ON fp.student_id = ds.student_id`,
		clause,
		"GROUP BY fp.status ORDER BY fp.status")

	rows := []models.PaymentStatusSummary{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("payment status: %w", err)
	}
	return rows, nil
}

// PaymentTrend aggregates payment totals per semester within scope.
func (r *WarehouseRepository) PaymentTrend(ctx context.Context, pred scope.Predicate) ([]models.PaymentTrendPoint, error) {
	if pred.IsEmpty() {
		return []models.PaymentTrendPoint{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fp"})
	query := compose(
		`SELECT dsem.semester_id, dsem.semester_name, COALESCE(SUM(CASE WHEN fp.status = 'Completed' THEN fp.amount ELSE 0 END), 0) AS completed_amount, COUNT(CASE WHEN fp.status = 'Completed' THEN 1 END) AS completed_count, COUNT(CASE WHEN fp.status = 'Pending' THEN 1 END) AS pending_count FROM dim_student ds JOIN fact_payment fp ON fp.student_id = ds.student_id JOIN dim_semester dsem ON fp.semester_id = dsem.semester_id`,
		clause,
		"GROUP BY dsem.semester_id, dsem.semester_name ORDER BY dsem.semester_id")

	rows := []models.PaymentTrendPoint{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("payment trend: %w", err)
	}
	return rows, nil
}

// TopStudents returns the grade leaderboard within scope, best first.
func (r *WarehouseRepository) TopStudents(ctx context.Context, pred scope.Predicate, limit int) ([]models.TopStudent, error) {
	if pred.IsEmpty() {
		return []models.TopStudent{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fg"})
	query := compose(
		`SELECT ds.student_id, ds.access_number, ds.first_name || ' ' || ds.last_name AS full_name, COALESCE(AVG(fg.score), 0) AS average_grade, COUNT(DISTINCT fg.course_code) AS course_count FROM dim_student ds JOIN fact_grade fg ON fg.student_id = ds.student_id`,
		clause,
		fmt.Sprintf("GROUP BY ds.student_id, ds.access_number, ds.first_name, ds.last_name ORDER BY average_grade DESC LIMIT %d", limit))

	rows := []models.TopStudent{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	return rows, nil
}

// EnrollmentSummary counts enrollments per course within scope. Feeds the
// report exports as well as the dashboard.
func (r *WarehouseRepository) EnrollmentSummary(ctx context.Context, pred scope.Predicate) ([]models.EnrollmentSummary, error) {
	if pred.IsEmpty() {
		return []models.EnrollmentSummary{}, nil
	}

	clause := pred.SQL(scope.SQLOptions{FactAlias: "fe"})
	query := compose(
		`SELECT dc.course_code, dc.course_name, COUNT(*) AS enrollment_count FROM dim_student ds JOIN fact_enrollment fe ON fe.student_id = ds.student_id JOIN dim_course dc ON fe.course_code = dc.course_code`,
		clause,
		"GROUP BY dc.course_code, dc.course_name ORDER BY enrollment_count DESC")

	rows := []models.EnrollmentSummary{}
	if err := r.db.SelectContext(ctx, &rows, query, clause.Args...); err != nil {
		return nil, fmt.Errorf("enrollment summary: %w", err)
	}
	return rows, nil
}

// ListFaculties returns all faculty dimension rows.
func (r *WarehouseRepository) ListFaculties(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT faculty_id, faculty_name FROM dim_faculty ORDER BY faculty_name`
	rows := []models.Faculty{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list faculties: %w", err)
	}
	return rows, nil
}

// ListDepartments returns department dimension rows, optionally restricted
// to a single faculty.
func (r *WarehouseRepository) ListDepartments(ctx context.Context, facultyID *int64) ([]models.Department, error) {
	query := `SELECT department_id, department_name, faculty_id FROM dim_department`
	args := []interface{}{}
	if facultyID != nil {
		query += ` WHERE faculty_id = $1`
		args = append(args, *facultyID)
	}
	query += ` ORDER BY department_name`
	rows := []models.Department{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return rows, nil
}

// warehouse tables reported by TableCounts. Fixed list; never derived from
// request input.
var statusTables = []string{
	"dim_student", "dim_program", "dim_department", "dim_faculty", "dim_course", "dim_semester",
	"fact_enrollment", "fact_grade", "fact_attendance", "fact_payment",
}

// TableCounts returns row counts for the warehouse tables, for the system
// status view.
func (r *WarehouseRepository) TableCounts(ctx context.Context) ([]models.TableCount, error) {
	counts := make([]models.TableCount, 0, len(statusTables))
	for _, table := range statusTables {
		var count int64
		if err := r.db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts = append(counts, models.TableCount{Table: table, Count: count})
	}
	return counts, nil
}
