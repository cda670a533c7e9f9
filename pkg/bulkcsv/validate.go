// Package bulkcsv validates and parses the comma-separated bulk upload
// formats. Rows are newline separated, fields comma separated, with no header
// and no quoting.
package bulkcsv

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind names one upload format.
type Kind string

const (
	Books      Kind = "books"
	Categories Kind = "categories"
	Inventory  Kind = "inventory"
	Readers    Kind = "readers"
)

// OK is the reason returned with a successful validation.
const OK = "good"

const invalidFieldCount = "Invalid number of fields"

// ParseKind maps user input ("books", "inventories", ...) to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "books", "book":
		return Books, true
	case "categories", "category":
		return Categories, true
	case "inventory", "inventories":
		return Inventory, true
	case "readers", "reader":
		return Readers, true
	default:
		return "", false
	}
}

type column struct {
	label string
	max   int // 0 means unbounded
}

var (
	bookColumns = []column{
		{"Title", 100},
		{"Author", 100},
		{"Publisher", 100},
		{"Publish date", 100},
		{"Index number", 50},
		{"Category", 100},
		{"Description", 0},
	}
	categoryColumns = []column{
		{"Category number", 50},
		{"Name", 100},
	}
	inventoryColumns = []column{
		{"Index number", 50},
		{"Status", 1},
		{"Location", 100},
		{"Last borrowed on", 100},
		{"Last borrowed by", 100},
	}
	readerColumns = []column{
		{"Username", 20},
		{"First name", 30},
		{"Last name", 30},
		{"Email", 100},
		{"Password", 25},
		{"Is staff", 1},
		{"Max borrow limit", 10},
	}
)

type row struct {
	line   int
	fields []string
}

// Validate checks every non-blank row of data against the format of kind.
// It stops at the first violation and returns a reason naming the offending
// field and line.
func Validate(kind Kind, data string) (bool, string) {
	rows, err := splitRows(data)
	if err != nil {
		return false, err.Error()
	}
	check, err := checkerFor(kind)
	if err != nil {
		return false, err.Error()
	}
	for _, r := range rows {
		if reason := check(r.fields); reason != "" {
			return false, fmt.Sprintf("%s (row %d)", reason, r.line)
		}
	}
	return true, OK
}

func checkerFor(kind Kind) (func([]string) string, error) {
	switch kind {
	case Books:
		return fixedWidth(bookColumns), nil
	case Categories:
		return fixedWidth(categoryColumns), nil
	case Inventory:
		return checkInventoryRow, nil
	case Readers:
		return fixedWidth(readerColumns), nil
	default:
		return nil, fmt.Errorf("unknown upload kind %q", kind)
	}
}

func fixedWidth(cols []column) func([]string) string {
	return func(fields []string) string {
		if len(fields) != len(cols) {
			return invalidFieldCount
		}
		return checkLengths(cols, fields)
	}
}

// checkInventoryRow accepts exactly five fields, or a shorter row whose
// last_borrowed_on / last_borrowed_by pair is empty. Missing trailing fields
// count as empty; index number, status and location are always required.
func checkInventoryRow(fields []string) string {
	n := len(fields)
	if n < 3 || n > len(inventoryColumns) {
		return invalidFieldCount
	}
	if n != len(inventoryColumns) && (fieldAt(fields, 3) != "" || fieldAt(fields, 4) != "") {
		return invalidFieldCount
	}
	return checkLengths(inventoryColumns[:n], fields)
}

func checkLengths(cols []column, fields []string) string {
	for i, col := range cols {
		if col.max > 0 && utf8.RuneCountInString(fields[i]) > col.max {
			return col.label + " too long"
		}
	}
	return ""
}

func fieldAt(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func splitRows(data string) ([]row, error) {
	if !utf8.ValidString(data) {
		return nil, errors.New("upload is not valid UTF-8")
	}
	data = strings.TrimPrefix(data, "\ufeff")
	lines := strings.Split(data, "\n")
	rows := make([]row, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, row{line: i + 1, fields: strings.Split(line, ",")})
	}
	return rows, nil
}
