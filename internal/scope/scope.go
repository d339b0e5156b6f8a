// Package scope computes the visibility predicate for analytical queries.
// Every dashboard and report path narrows its result set through Compute so
// role policy lives in exactly one place.
package scope

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
)

// Logical columns a predicate can constrain. Rendering maps them onto
// concrete table aliases.
const (
	ColFaculty      = "faculty_id"
	ColDepartment   = "department_id"
	ColProgram      = "program_id"
	ColSemester     = "semester_id"
	ColStudent      = "student_id"
	ColAccessNumber = "access_number"
)

// filterColumns are the caller-supplied filters the engine consumes, in
// canonical merge order.
var filterColumns = []string{ColFaculty, ColDepartment, ColProgram, ColSemester}

// Constraint is a single equality restriction. Values are already typed:
// int64 for the numeric dimension ids, string for student identifiers.
type Constraint struct {
	Column string
	Value  interface{}
}

// Joins marks which dimension joins a query needs to evaluate the predicate.
// Unnecessary joins are omitted to avoid fan-out duplication and cost.
type Joins struct {
	Program    bool
	Department bool
	Faculty    bool
	Enrollment bool
}

// Union merges two join sets.
func (j Joins) Union(o Joins) Joins {
	return Joins{
		Program:    j.Program || o.Program,
		Department: j.Department || o.Department,
		Faculty:    j.Faculty || o.Faculty,
		Enrollment: j.Enrollment || o.Enrollment,
	}
}

// Predicate is the scoping engine output: a conjunction of equality
// constraints plus the joins needed to evaluate them. The zero value is the
// unscoped predicate (matches everything). Empty is the distinct
// matches-nothing value; it is a normal result, never an error.
type Predicate struct {
	Empty       bool
	Constraints []Constraint
	Courses     []string
	Joins       Joins
}

// Unscoped returns the matches-everything predicate.
func Unscoped() Predicate {
	return Predicate{}
}

// EmptyScope returns the matches-nothing predicate.
func EmptyScope() Predicate {
	return Predicate{Empty: true}
}

// IsEmpty reports whether the predicate matches no rows.
func (p Predicate) IsEmpty() bool {
	return p.Empty
}

// IsUnscoped reports whether the predicate matches all rows.
func (p Predicate) IsUnscoped() bool {
	return !p.Empty && len(p.Constraints) == 0 && len(p.Courses) == 0
}

// Fingerprint returns a stable string for cache keys. Identical
// (claims, filters) inputs always produce identical fingerprints.
func (p Predicate) Fingerprint() string {
	if p.Empty {
		return "empty"
	}
	if p.IsUnscoped() {
		return "unscoped"
	}
	parts := make([]string, 0, len(p.Constraints)+1)
	for _, c := range p.Constraints {
		switch v := c.Value.(type) {
		case int64:
			parts = append(parts, c.Column+"="+strconv.FormatInt(v, 10))
		case string:
			parts = append(parts, c.Column+"="+v)
		}
	}
	if len(p.Courses) > 0 {
		parts = append(parts, "courses="+strings.Join(p.Courses, ","))
	}
	return strings.Join(parts, "|")
}

// Compute derives the scope predicate for a claims bundle and the caller's
// filter parameters. It is pure and safe for concurrent use.
//
// Role policy: sysadmin/analyst/senate/hr/finance are unscoped; dean is
// pinned to their faculty, hod to their department, staff to students
// enrolled in their assigned courses, student to themselves. A role whose
// required attachment is missing gets the empty scope, never the unscoped
// one. Caller filters are ANDed on and can only narrow: a filter that
// contradicts a base constraint collapses the predicate to empty.
func Compute(bundle models.ClaimsBundle, filters map[string]string) (Predicate, error) {
	p := Predicate{}

	switch bundle.Role {
	case models.RoleSysadmin, models.RoleAnalyst, models.RoleSenate, models.RoleHR, models.RoleFinance:
		// Unscoped base.
	case models.RoleDean:
		if bundle.FacultyID == nil {
			return EmptyScope(), nil
		}
		p.Constraints = append(p.Constraints, Constraint{Column: ColFaculty, Value: *bundle.FacultyID})
	case models.RoleHOD:
		if bundle.DepartmentID == nil {
			return EmptyScope(), nil
		}
		p.Constraints = append(p.Constraints, Constraint{Column: ColDepartment, Value: *bundle.DepartmentID})
	case models.RoleStaff:
		courses := normalizeCourses(bundle.AssignedCourses)
		if len(courses) == 0 {
			return EmptyScope(), nil
		}
		p.Courses = courses
	case models.RoleStudent:
		switch {
		case bundle.PrincipalID != "":
			p.Constraints = append(p.Constraints, Constraint{Column: ColStudent, Value: bundle.PrincipalID})
		case bundle.AccessNumber != "":
			p.Constraints = append(p.Constraints, Constraint{Column: ColAccessNumber, Value: models.NormalizeAccessNumber(bundle.AccessNumber)})
		default:
			return EmptyScope(), nil
		}
	default:
		// Unknown roles never see anything.
		return EmptyScope(), nil
	}

	for _, column := range filterColumns {
		raw, ok := filters[column]
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "all") {
			continue
		}
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			return Predicate{}, appErrors.Clone(appErrors.ErrInvalidFilter, "invalid "+column+" filter")
		}
		if existing, found := p.constraint(column); found {
			if existing.Value != interface{}(value) {
				// Conjunction of two different values on one column can
				// never match; collapse so the assembler short-circuits.
				return EmptyScope(), nil
			}
			continue
		}
		p.Constraints = append(p.Constraints, Constraint{Column: column, Value: value})
	}

	sort.Slice(p.Constraints, func(i, j int) bool {
		return p.Constraints[i].Column < p.Constraints[j].Column
	})
	p.Joins = requiredJoins(p)
	return p, nil
}

func (p Predicate) constraint(column string) (Constraint, bool) {
	for _, c := range p.Constraints {
		if c.Column == column {
			return c, true
		}
	}
	return Constraint{}, false
}

func requiredJoins(p Predicate) Joins {
	var joins Joins
	for _, c := range p.Constraints {
		switch c.Column {
		case ColFaculty:
			joins.Program = true
			joins.Department = true
			joins.Faculty = true
		case ColDepartment:
			joins.Program = true
			joins.Department = true
		case ColProgram:
			joins.Program = true
		}
	}
	if len(p.Courses) > 0 {
		joins.Enrollment = true
	}
	return joins
}

func normalizeCourses(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	courses := make([]string, 0, len(raw))
	for _, code := range raw {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		courses = append(courses, code)
	}
	sort.Strings(courses)
	return courses
}
