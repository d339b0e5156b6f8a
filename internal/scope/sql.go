package scope

import (
	"fmt"
	"strings"
)

// Canonical dimension aliases shared by every query template. Scope joins are
// emitted against these names, so templates that pre-join a dimension must
// use the same alias and declare it in ExistingJoins.
const (
	AliasStudent    = "ds"
	AliasProgram    = "dp"
	AliasDepartment = "dd"
	AliasFaculty    = "df"
)

// SQLOptions tells the renderer how a template anchors the predicate.
type SQLOptions struct {
	// StudentAlias is the alias of dim_student in the template. Defaults to
	// AliasStudent.
	StudentAlias string
	// FactAlias is the alias of the fact table carrying semester_id. When
	// empty, semester constraints are dropped: the template has no semester
	// dimension to constrain.
	FactAlias string
	// ExistingJoins are dimension joins the template already performs; they
	// are not emitted again.
	ExistingJoins Joins
	// ArgOffset is the number of positional parameters the template binds
	// before the scope arguments.
	ArgOffset int
}

// Clause is the rendered predicate: join SQL, WHERE fragments, and their
// positional arguments. All values are parameter-bound.
type Clause struct {
	Join  string
	Where []string
	Args  []interface{}
}

// SQL renders the predicate for direct composition into a query template.
// An empty predicate renders to the tautological-false constraint; callers
// are expected to short-circuit before reaching the warehouse, this keeps
// the fallback safe.
func (p Predicate) SQL(opts SQLOptions) Clause {
	if opts.StudentAlias == "" {
		opts.StudentAlias = AliasStudent
	}

	if p.Empty {
		return Clause{Where: []string{"1 = 0"}}
	}

	var clause Clause
	clause.Join = renderJoins(p.Joins, opts)

	next := func() int { return opts.ArgOffset + len(clause.Args) + 1 }

	for _, c := range p.Constraints {
		column, ok := renderColumn(c.Column, opts)
		if !ok {
			continue
		}
		clause.Args = append(clause.Args, c.Value)
		clause.Where = append(clause.Where, fmt.Sprintf("%s = $%d", column, len(clause.Args)+opts.ArgOffset))
	}

	if len(p.Courses) > 0 {
		placeholders := make([]string, len(p.Courses))
		for i, code := range p.Courses {
			placeholders[i] = fmt.Sprintf("$%d", next())
			clause.Args = append(clause.Args, code)
		}
		clause.Where = append(clause.Where, fmt.Sprintf(
			"%s.student_id IN (SELECT fe_s.student_id FROM fact_enrollment fe_s WHERE fe_s.course_code IN (%s))",
			opts.StudentAlias, strings.Join(placeholders, ", ")))
	}

	return clause
}

func renderColumn(column string, opts SQLOptions) (string, bool) {
	switch column {
	case ColFaculty:
		return AliasFaculty + ".faculty_id", true
	case ColDepartment:
		return AliasDepartment + ".department_id", true
	case ColProgram:
		return AliasProgram + ".program_id", true
	case ColStudent:
		return opts.StudentAlias + ".student_id", true
	case ColAccessNumber:
		return opts.StudentAlias + ".access_number", true
	case ColSemester:
		if opts.FactAlias == "" {
			return "", false
		}
		return opts.FactAlias + ".semester_id", true
	}
	return "", false
}

func renderJoins(joins Joins, opts SQLOptions) string {
	var b strings.Builder
	if joins.Program && !opts.ExistingJoins.Program {
		fmt.Fprintf(&b, " JOIN dim_program %s ON %s.program_id = %s.program_id", AliasProgram, opts.StudentAlias, AliasProgram)
	}
	if joins.Department && !opts.ExistingJoins.Department {
		fmt.Fprintf(&b, " JOIN dim_department %s ON %s.department_id = %s.department_id", AliasDepartment, AliasProgram, AliasDepartment)
	}
	if joins.Faculty && !opts.ExistingJoins.Faculty {
		fmt.Fprintf(&b, " JOIN dim_faculty %s ON %s.faculty_id = %s.faculty_id", AliasFaculty, AliasDepartment, AliasFaculty)
	}
	return b.String()
}
