package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"records-migrate/internal/dialect"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------
// 1. Schema Analysis Logic
// ---------------------------------------------------------------------

// Analyze reads tables, columns and foreign keys of schemaName and returns the
// tables in dependency order (parents first).
func Analyze(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaName string) ([]*Table, error) {
	target := d.GetSchemaName(schemaName)

	// Normalized keys (UPPERCASE) for case-insensitive matching (Oracle support)
	tableMap := make(map[string]*Table)
	var tables []*Table

	// --- Step 1: Fetch Tables ---
	rows, err := db.QueryContext(ctx, d.GetTablesQuery(target), target)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		t := &Table{Name: name, Dependencies: []string{}}
		tableMap[strings.ToUpper(name)] = t
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	rows.Close()

	// --- Step 2: Fetch Columns ---
	colRows, err := db.QueryContext(ctx, d.GetColumnsQuery(target), target)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var tName, cName, dType, cType, isNull, cKey, extra, isUnique, comment sql.NullString
		var cLen sql.NullString // Use String for safety

		if err := colRows.Scan(&tName, &cName, &dType, &cType, &cLen, &isNull, &cKey, &extra, &isUnique, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", tName.String, err)
		}

		if !tName.Valid || !cName.Valid {
			continue
		}

		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}

		isPK := strings.Contains(cKey.String, "PRI") || strings.Contains(cKey.String, "PRIMARY")

		isAutoInc := false
		if extra.Valid {
			extraLower := strings.ToLower(extra.String)
			isAutoInc = strings.Contains(extraLower, "auto_increment") ||
				strings.Contains(extraLower, "identity") ||
				strings.Contains(extraLower, "nextval")
		}

		isUniqueCol := isUnique.Valid && strings.Contains(isUnique.String, "UNIQUE")

		col := &Column{
			Name:       cName.String,
			DataType:   d.NormalizeType(dType.String),
			IsNullable: isNull.String == "YES" || isNull.String == "Y",
			IsPK:       isPK,
			IsAutoInc:  isAutoInc,
			IsUnique:   isUniqueCol,
			Comment:    comment.String,
		}

		// Handle Length safely
		if cLen.Valid && cLen.String != "" {
			var length int
			if _, err := fmt.Sscanf(cLen.String, "%d", &length); err == nil {
				col.Length = length
			} else {
				var fLength float64
				if _, err := fmt.Sscanf(cLen.String, "%f", &fLength); err == nil {
					col.Length = int(fLength)
				}
			}
		}
		t.Columns = append(t.Columns, col)
	}
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	colRows.Close()

	// --- Step 3: Fetch Foreign Keys ---
	fkRows, err := db.QueryContext(ctx, d.GetForeignKeysQuery(target), target)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var tName, cConst, cName, rTable, rCol sql.NullString
		if err := fkRows.Scan(&tName, &cConst, &cName, &rTable, &rCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}

		if !tName.Valid || !rTable.Valid || strings.EqualFold(tName.String, rTable.String) {
			continue
		}

		t, ok := tableMap[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}
		// Skip references to tables outside the schema
		ref, exists := tableMap[strings.ToUpper(rTable.String)]
		if !exists {
			continue
		}
		if !contains(t.Dependencies, ref.Name) {
			t.Dependencies = append(t.Dependencies, ref.Name)
		}
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Column:    cName.String,
			RefTable:  ref.Name,
			RefColumn: rCol.String,
		})
	}
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign keys: %w", err)
	}

	return SortTablesByFKCount(tables), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// 2. Sorting Algorithm (Topological / Greedy)
// ---------------------------------------------------------------------

// SortTablesByFKCount sorts tables by dependency order.
// It handles circular dependencies by using a scoring system.
// Tables whose dependencies are already satisfied keep their input order.
func SortTablesByFKCount(tables []*Table) []*Table {
	var sorted []*Table
	processed := make(map[string]bool)

	for len(sorted) < len(tables) {
		added := false

		// Pass 1: Add tables whose dependencies are fully satisfied
		for _, t := range tables {
			if processed[t.Name] {
				continue
			}

			allDepsProcessed := true
			for _, depName := range t.Dependencies {
				if !processed[depName] {
					allDepsProcessed = false
					break
				}
			}

			if allDepsProcessed {
				sorted = append(sorted, t)
				processed[t.Name] = true
				added = true
			}
		}

		// Pass 2: If no table added, we have a cycle. Break it using heuristic score.
		if !added {
			var bestTable *Table
			bestScore := -999999

			for _, t := range tables {
				if processed[t.Name] {
					continue
				}

				// Penalty: number of unprocessed FKs
				score := 0
				unprocessedDeps := 0
				for _, dep := range t.Dependencies {
					if !processed[dep] {
						unprocessedDeps++
					}
				}
				score -= (unprocessedDeps * 100)

				// Bonus: table referenced by one of its own unprocessed dependencies
				if inDirectCycle(t, tables, processed) {
					score += 500
				}

				// Tie-breaker: Name (Deterministic)
				if score > bestScore {
					bestScore = score
					bestTable = t
				} else if score == bestScore && (bestTable == nil || t.Name > bestTable.Name) {
					bestTable = t
				}
			}

			if bestTable == nil {
				zap.L().Error("Sort deadlock: remaining tables cannot be sorted")
				break
			}
			sorted = append(sorted, bestTable)
			processed[bestTable.Name] = true
			zap.L().Warn("Breaking circular dependency", zap.String("table", bestTable.Name), zap.Int("score", bestScore))
		}
	}

	return sorted
}

func inDirectCycle(t *Table, tables []*Table, processed map[string]bool) bool {
	for _, depName := range t.Dependencies {
		if processed[depName] {
			continue
		}
		for _, cand := range tables {
			if cand.Name != depName {
				continue
			}
			if contains(cand.Dependencies, t.Name) {
				return true
			}
			break
		}
	}
	return false
}
