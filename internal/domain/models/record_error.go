package models

import "strconv"

// Reasons attached to a RecordError.
const (
	ReasonMissingField      = "missing_field"
	ReasonUnknownCategory   = "unknown_category"
	ReasonAmbiguousCategory = "ambiguous_category"
)

// RecordErrorHeader is the column header of the exported error log.
var RecordErrorHeader = []string{"Index", "Category", "Reason", "Field", "Record"}

// RecordError describes an instrument record that could not be flattened.
//
// Fields:
//   - Index: zero-based position of the record in the source FinInstrm list.
//   - Category: category of the record when it could be determined.
//   - Reason: one of the Reason* constants.
//   - Field: path of the missing field (missing_field only).
//   - Raw: raw XML of the failing record.
type RecordError struct {
	Index    int      `json:"index"`
	Category Category `json:"-"`
	Reason   string   `json:"reason"`
	Field    string   `json:"field,omitempty"`
	Raw      string   `json:"raw"`
}

// Values returns the error entry in RecordErrorHeader order.
func (e RecordError) Values() []string {
	return []string{strconv.Itoa(e.Index), e.Category.String(), e.Reason, e.Field, e.Raw}
}

// FlattenResult holds the categorised rows and error entries of one data file.
type FlattenResult struct {
	New        []InstrumentRow
	Terminated []InstrumentRow
	Modified   []InstrumentRow
	Errors     []RecordError
	Total      int // number of source records
}

// Rows returns the row collection for a category (nil for CategoryUnknown).
func (r *FlattenResult) Rows(c Category) []InstrumentRow {
	switch c {
	case CategoryNew:
		return r.New
	case CategoryTerminated:
		return r.Terminated
	case CategoryModified:
		return r.Modified
	default:
		return nil
	}
}

// Append adds a row to the collection of its category.
func (r *FlattenResult) Append(c Category, row InstrumentRow) {
	switch c {
	case CategoryNew:
		r.New = append(r.New, row)
	case CategoryTerminated:
		r.Terminated = append(r.Terminated, row)
	case CategoryModified:
		r.Modified = append(r.Modified, row)
	}
}
