package models

import "time"

// StatsSummary carries headline warehouse aggregates for the stats endpoint.
type StatsSummary struct {
	TotalStudents     int     `db:"total_students" json:"total_students"`
	TotalCourses      int     `db:"total_courses" json:"total_courses"`
	AverageGrade      float64 `db:"average_grade" json:"average_grade"`
	CompletedPayments float64 `db:"completed_payments" json:"completed_payments"`
	PendingPayments   float64 `db:"pending_payments" json:"pending_payments"`
}

// StudentsByDepartment is one row of the students-by-department report.
type StudentsByDepartment struct {
	DepartmentID   int64  `db:"department_id" json:"department_id"`
	DepartmentName string `db:"department_name" json:"department_name"`
	FacultyName    string `db:"faculty_name" json:"faculty_name"`
	StudentCount   int    `db:"student_count" json:"student_count"`
}

// GradeDistributionBin buckets grades into letter bands.
type GradeDistributionBin struct {
	Bucket string `db:"bucket" json:"bucket"`
	Count  int    `db:"count" json:"count"`
}

// GradeTrendPoint is one semester's average grade.
type GradeTrendPoint struct {
	SemesterID   int64   `db:"semester_id" json:"semester_id"`
	SemesterName string  `db:"semester_name" json:"semester_name"`
	AverageGrade float64 `db:"average_grade" json:"average_grade"`
	GradeCount   int     `db:"grade_count" json:"grade_count"`
}

// AttendanceByCourse aggregates attendance per course.
type AttendanceByCourse struct {
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseName     string  `db:"course_name" json:"course_name"`
	SessionCount   int     `db:"session_count" json:"session_count"`
	AttendanceRate float64 `db:"attendance_rate" json:"attendance_rate"`
}

// AttendanceTrendPoint is one semester's attendance aggregates.
type AttendanceTrendPoint struct {
	SemesterID     int64   `db:"semester_id" json:"semester_id"`
	SemesterName   string  `db:"semester_name" json:"semester_name"`
	SessionCount   int     `db:"session_count" json:"session_count"`
	AttendanceRate float64 `db:"attendance_rate" json:"attendance_rate"`
	StudentCount   int     `db:"student_count" json:"student_count"`
	CourseCount    int     `db:"course_count" json:"course_count"`
}

// PaymentStatusSummary aggregates payments per status.
type PaymentStatusSummary struct {
	Status      string  `db:"status" json:"status"`
	Count       int     `db:"count" json:"count"`
	TotalAmount float64 `db:"total_amount" json:"total_amount"`
}

// PaymentTrendPoint is one semester's payment totals.
type PaymentTrendPoint struct {
	SemesterID      int64   `db:"semester_id" json:"semester_id"`
	SemesterName    string  `db:"semester_name" json:"semester_name"`
	CompletedAmount float64 `db:"completed_amount" json:"completed_amount"`
	CompletedCount  int     `db:"completed_count" json:"completed_count"`
	PendingCount    int     `db:"pending_count" json:"pending_count"`
}

// TopStudent is one row of the top-students leaderboard.
type TopStudent struct {
	StudentID    string  `db:"student_id" json:"student_id"`
	AccessNumber string  `db:"access_number" json:"access_number"`
	FullName     string  `db:"full_name" json:"full_name"`
	AverageGrade float64 `db:"average_grade" json:"average_grade"`
	CourseCount  int     `db:"course_count" json:"course_count"`
}

// EnrollmentSummary is one row of the enrollment-summary export.
type EnrollmentSummary struct {
	CourseCode      string `db:"course_code" json:"course_code"`
	CourseName      string `db:"course_name" json:"course_name"`
	EnrollmentCount int    `db:"enrollment_count" json:"enrollment_count"`
}

// Faculty is a warehouse dimension row used by attachment pickers.
type Faculty struct {
	FacultyID   int64  `db:"faculty_id" json:"faculty_id"`
	FacultyName string `db:"faculty_name" json:"faculty_name"`
}

// Department is a warehouse dimension row used by attachment pickers.
type Department struct {
	DepartmentID   int64  `db:"department_id" json:"department_id"`
	DepartmentName string `db:"department_name" json:"department_name"`
	FacultyID      int64  `db:"faculty_id" json:"faculty_id"`
}

// TableCount pairs a warehouse table with its row count for system status.
type TableCount struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

// SystemMetrics is the runtime snapshot exposed on the system status view.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// SystemStatus combines dependency health, warehouse table counts, and
// runtime metrics for the sysadmin status endpoint.
type SystemStatus struct {
	RBACDatabase      string        `json:"rbac_database"`
	WarehouseDatabase string        `json:"warehouse_database"`
	Cache             string        `json:"cache"`
	Tables            []TableCount  `json:"tables"`
	Metrics           SystemMetrics `json:"metrics"`
}
