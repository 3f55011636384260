package schema

import (
	"fmt"
	"strings"
)

// OrderViolation is a table placed before one of the tables it references.
type OrderViolation struct {
	Table  string
	Parent string
}

// OrderError lists every violation found in a migration order.
type OrderError struct {
	Violations []OrderViolation
}

func (e *OrderError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s before %s", v.Table, v.Parent))
	}
	return "invalid table order: " + strings.Join(parts, ", ")
}

// ValidateOrder checks that every table comes strictly after the tables it
// depends on. Dependencies outside specs are ignored.
func ValidateOrder(specs []TableSpec) error {
	pos := make(map[string]int, len(specs))
	for i, s := range specs {
		pos[strings.ToUpper(s.Name)] = i
	}

	var violations []OrderViolation
	for i, s := range specs {
		for _, dep := range s.Dependencies {
			j, ok := pos[strings.ToUpper(dep)]
			if !ok || strings.EqualFold(dep, s.Name) {
				continue
			}
			if j > i {
				violations = append(violations, OrderViolation{Table: s.Name, Parent: dep})
			}
		}
	}
	if len(violations) > 0 {
		return &OrderError{Violations: violations}
	}
	return nil
}

// SpecsFromNames builds an order from plain names when no schema information
// is available.
func SpecsFromNames(names []string) []TableSpec {
	specs := make([]TableSpec, len(names))
	for i, n := range names {
		specs[i] = TableSpec{Name: n, Rank: i}
	}
	return specs
}

// SpecsFromTables converts analyzed tables into an order, keeping their sequence.
func SpecsFromTables(tables []*Table) []TableSpec {
	specs := make([]TableSpec, len(tables))
	for i, t := range tables {
		specs[i] = TableSpec{
			Name:          t.Name,
			Rank:          i,
			Dependencies:  t.Dependencies,
			HasIdentity:   t.HasIdentity(),
			IdentityKnown: true,
			Columns:       t.Columns,
			ForeignKeys:   t.ForeignKeys,
		}
	}
	return specs
}

// ResolveOrder decides the migration order.
//
// With no configured tables every analyzed table is migrated in dependency
// order. Otherwise the configured list is kept as long as it respects the
// foreign keys found in analyzed; a violating list is reordered and a warning
// returned. Configured tables absent from analyzed keep their position and
// carry no schema information.
func ResolveOrder(configured []string, analyzed []*Table) ([]TableSpec, []string) {
	if len(configured) == 0 {
		return SpecsFromTables(analyzed), nil
	}

	byName := make(map[string]*Table, len(analyzed))
	for _, t := range analyzed {
		byName[strings.ToUpper(t.Name)] = t
	}

	var warnings []string
	picked := make([]*Table, 0, len(configured))
	for _, name := range configured {
		t, ok := byName[strings.ToUpper(name)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("table %s not found in source schema", name))
			t = &Table{Name: name}
		} else {
			// keep the configured spelling
			t = &Table{Name: name, Columns: t.Columns, ForeignKeys: t.ForeignKeys, Dependencies: t.Dependencies}
		}
		picked = append(picked, t)
	}

	specs := specsFromPicked(picked, byName)
	if err := ValidateOrder(specs); err != nil {
		warnings = append(warnings, err.Error()+"; reordering by foreign keys")
		specs = specsFromPicked(SortTablesByFKCount(normalizeDeps(picked)), byName)
	}
	return specs, warnings
}

func specsFromPicked(picked []*Table, known map[string]*Table) []TableSpec {
	specs := make([]TableSpec, len(picked))
	for i, t := range picked {
		_, ok := known[strings.ToUpper(t.Name)]
		specs[i] = TableSpec{
			Name:          t.Name,
			Rank:          i,
			Dependencies:  t.Dependencies,
			HasIdentity:   t.HasIdentity(),
			IdentityKnown: ok,
			Columns:       t.Columns,
			ForeignKeys:   t.ForeignKeys,
		}
	}
	return specs
}

// normalizeDeps rewrites dependency names to the spelling used in picked so
// the sort, which matches names exactly, sees them.
func normalizeDeps(picked []*Table) []*Table {
	spelling := make(map[string]string, len(picked))
	for _, t := range picked {
		spelling[strings.ToUpper(t.Name)] = t.Name
	}
	out := make([]*Table, len(picked))
	for i, t := range picked {
		deps := make([]string, 0, len(t.Dependencies))
		for _, d := range t.Dependencies {
			if s, ok := spelling[strings.ToUpper(d)]; ok {
				deps = append(deps, s)
			}
		}
		out[i] = &Table{Name: t.Name, Columns: t.Columns, ForeignKeys: t.ForeignKeys, Dependencies: deps}
	}
	return out
}
