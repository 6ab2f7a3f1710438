package pipeline

import (
	"regexp"
	"strings"
)

const minTableRows = 2

var cellSplitRe = regexp.MustCompile(`\t+| {2,}`)

// DetectTables scans extracted text for runs of lines that look like
// table rows: cells separated by pipes, tabs or column-aligned spacing.
// A run needs at least two rows to count; the first row becomes the
// header. Detection is purely structural and deterministic.
func DetectTables(text string) []Table {
	lines := strings.Split(text, "\n")
	tables := make([]Table, 0)

	var current [][]string
	start := 0
	flush := func() {
		if len(current) >= minTableRows {
			tables = append(tables, Table{
				Line:    start,
				Headers: current[0],
				Rows:    current[1:],
			})
		}
		current = nil
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.Count(trimmed, "|") >= 2 && isSeparatorRow(trimmed) {
			// Markdown |---|---| rows divide header from body, not tables
			continue
		}
		cells := splitCells(line)
		if len(cells) < 2 {
			flush()
			continue
		}
		if current == nil {
			start = i
		} else if len(cells) != len(current[len(current)-1]) {
			// Column count changed, treat as a new table
			flush()
			start = i
		}
		current = append(current, cells)
	}
	flush()

	return tables
}

// splitCells breaks a line into table cells, or returns nil when the
// line does not look tabular
func splitCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	if strings.Count(trimmed, "|") >= 2 {
		parts := strings.Split(strings.Trim(trimmed, "|"), "|")
		cells := make([]string, 0, len(parts))
		for _, p := range parts {
			cells = append(cells, strings.TrimSpace(p))
		}
		return cells
	}

	parts := cellSplitRe.Split(trimmed, -1)
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	if len(cells) < 2 {
		return nil
	}
	return cells
}

// isSeparatorRow recognises markdown header separators like |---|---|
func isSeparatorRow(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}
