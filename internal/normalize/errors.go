package normalize

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSheetCount      = errors.New("unexpected sheet count")
	ErrMissingColumn   = errors.New("missing column")
	ErrNotNumeric      = errors.New("value is not numeric")
	ErrDuplicatePeriod = errors.New("period appears in more than one column")
	ErrSectionBounds   = errors.New("section outside sheet bounds")
	ErrInvalidLayout   = errors.New("invalid layout")
)

// SheetError locates a malformed-input failure. Row is the decoded row
// position plus two (header row, 1-based), which is the spreadsheet row for
// sheets without blank rows. Row 0 means the failure concerns the whole sheet.
type SheetError struct {
	Sheet  string
	Row    int
	Column string
	Err    error
}

func (e *SheetError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sheet %q", e.Sheet)
	if e.Row > 0 {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *SheetError) Unwrap() error {
	return e.Err
}
