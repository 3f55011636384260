package schema

import (
	"fmt"
	"strings"
)

type Table struct {
	Name         string
	Columns      []*Column
	ForeignKeys  []*ForeignKey
	Dependencies []string // tables referenced through foreign keys
}

// HasIdentity reports whether any column is store-generated (IDENTITY, AUTO_INCREMENT, serial).
func (t *Table) HasIdentity() bool {
	for _, c := range t.Columns {
		if c.IsAutoInc {
			return true
		}
	}
	return false
}

// NaturalKey returns the columns identifying a row of t when only the
// columns in available are supplied: the first single-column unique key,
// else the whole primary key. Store-generated columns never qualify, and
// nil means no key can be formed.
func (t *Table) NaturalKey(available []string) []string {
	has := make(map[string]bool, len(available))
	for _, c := range available {
		has[strings.ToLower(c)] = true
	}
	for _, c := range t.Columns {
		if c.IsUnique && !c.IsAutoInc && has[strings.ToLower(c.Name)] {
			return []string{c.Name}
		}
	}
	var pk []string
	for _, c := range t.Columns {
		if !c.IsPK {
			continue
		}
		if c.IsAutoInc || !has[strings.ToLower(c.Name)] {
			return nil
		}
		pk = append(pk, c.Name)
	}
	return pk
}

type Column struct {
	Name       string
	DataType   string
	Length     int
	IsNullable bool
	IsPK       bool
	IsAutoInc  bool
	IsUnique   bool
	Comment    string // DB schema comment (MS_Description etc.)
}

// String renders the column as "name type(length) NOT NULL PK ...".
func (c *Column) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.DataType != "" {
		b.WriteString(" " + c.DataType)
		if c.Length > 0 {
			fmt.Fprintf(&b, "(%d)", c.Length)
		}
	}
	if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	if c.IsPK {
		b.WriteString(" PK")
	}
	if c.IsUnique {
		b.WriteString(" UNIQUE")
	}
	if c.IsAutoInc {
		b.WriteString(" IDENTITY")
	}
	if c.Comment != "" {
		b.WriteString(" -- " + c.Comment)
	}
	return b.String()
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

func (fk *ForeignKey) String() string {
	return fmt.Sprintf("%s -> %s.%s", fk.Column, fk.RefTable, fk.RefColumn)
}

// TableSpec is one entry of the migration order.
type TableSpec struct {
	Name         string
	Rank         int      // position in the migration order, 0-based
	Dependencies []string // parents that must precede this table
	// HasIdentity is only meaningful when IdentityKnown is set; without
	// schema information the explicit key toggle is attempted anyway.
	HasIdentity   bool
	IdentityKnown bool
	// Columns and ForeignKeys are empty without schema information.
	Columns     []*Column
	ForeignKeys []*ForeignKey
}

// NeedsExplicitKeys reports whether the explicit key insertion toggle should be tried.
func (s TableSpec) NeedsExplicitKeys() bool {
	return !s.IdentityKnown || s.HasIdentity
}

// Names returns the table names of specs in order.
func Names(specs []TableSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}
