package scope

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
)

func TestSQLUnscopedRendersNothing(t *testing.T) {
	clause := Unscoped().SQL(SQLOptions{FactAlias: "fg"})
	assert.Empty(t, clause.Join)
	assert.Empty(t, clause.Where)
	assert.Empty(t, clause.Args)
}

func TestSQLEmptyRendersTautologicalFalse(t *testing.T) {
	clause := EmptyScope().SQL(SQLOptions{})
	assert.Equal(t, []string{"1 = 0"}, clause.Where)
	assert.Empty(t, clause.Args)
}

func TestSQLDeanJoinChainAndBinding(t *testing.T) {
	p, err := Compute(models.ClaimsBundle{Role: models.RoleDean, FacultyID: intPtr(4)}, map[string]string{"semester_id": "2"})
	require.NoError(t, err)

	clause := p.SQL(SQLOptions{FactAlias: "fg", ArgOffset: 1})
	assert.Contains(t, clause.Join, "JOIN dim_program dp ON ds.program_id = dp.program_id")
	assert.Contains(t, clause.Join, "JOIN dim_department dd ON dp.department_id = dd.department_id")
	assert.Contains(t, clause.Join, "JOIN dim_faculty df ON dd.faculty_id = df.faculty_id")
	assert.Equal(t, []string{"df.faculty_id = $2", "fg.semester_id = $3"}, clause.Where)
	assert.Equal(t, []interface{}{int64(4), int64(2)}, clause.Args)
}

func TestSQLOmitsUnneededJoins(t *testing.T) {
	p, err := Compute(models.ClaimsBundle{Role: models.RoleStudent, PrincipalID: "S-001"}, nil)
	require.NoError(t, err)

	clause := p.SQL(SQLOptions{FactAlias: "fg"})
	assert.Empty(t, clause.Join, "student scope needs no dimension joins")
	assert.Equal(t, []string{"ds.student_id = $1"}, clause.Where)
}

func TestSQLSkipsJoinsTheTemplateAlreadyHas(t *testing.T) {
	p, err := Compute(models.ClaimsBundle{Role: models.RoleHOD, DepartmentID: intPtr(12)}, nil)
	require.NoError(t, err)

	clause := p.SQL(SQLOptions{ExistingJoins: Joins{Program: true, Department: true}})
	assert.Empty(t, clause.Join)
	assert.Equal(t, []string{"dd.department_id = $1"}, clause.Where)
}

func TestSQLStaffEnrollmentSubquery(t *testing.T) {
	p, err := Compute(models.ClaimsBundle{Role: models.RoleStaff, AssignedCourses: []string{"CSC101", "MTH202"}}, nil)
	require.NoError(t, err)

	clause := p.SQL(SQLOptions{})
	require.Len(t, clause.Where, 1)
	assert.True(t, strings.HasPrefix(clause.Where[0], "ds.student_id IN (SELECT fe_s.student_id FROM fact_enrollment fe_s"))
	assert.Contains(t, clause.Where[0], "IN ($1, $2)")
	assert.Equal(t, []interface{}{"CSC101", "MTH202"}, clause.Args)
}

func TestSQLDropsSemesterWithoutFactAlias(t *testing.T) {
	p, err := Compute(models.ClaimsBundle{Role: models.RoleAnalyst}, map[string]string{"semester_id": "2", "program_id": "5"})
	require.NoError(t, err)

	clause := p.SQL(SQLOptions{})
	assert.Equal(t, []string{"dp.program_id = $1"}, clause.Where)
	assert.Equal(t, []interface{}{int64(5)}, clause.Args)
}
