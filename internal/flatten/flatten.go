package flatten

import (
	"errors"
	"fmt"

	"github.com/guttosm/firdspulse/internal/domain/models"
)

var (
	// ErrUnknownCategory marks a record carrying none of NewRcrd, TermntdRcrd, ModfdRcrd.
	ErrUnknownCategory = errors.New("record has no known category")
	// ErrAmbiguousCategory marks a record carrying more than one category wrapper,
	// including the same wrapper repeated.
	ErrAmbiguousCategory = errors.New("record has more than one category")
)

// MissingFieldError reports a required field absent from a categorised record.
type MissingFieldError struct {
	Category models.Category
	Field    string // path relative to the wrapper, e.g. "FinInstrmGnlAttrbts.Id"
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: missing field %s", e.Category.Key(), e.Field)
}

// Classify returns the single category a record belongs to.
func Classify(rec Record) (models.Category, error) {
	var (
		found models.Category
		n     int
	)
	for _, c := range models.Categories {
		if k := len(rec.wrappers(c)); k > 0 {
			found = c
			n += k
		}
	}
	switch n {
	case 0:
		return models.CategoryUnknown, ErrUnknownCategory
	case 1:
		return found, nil
	default:
		return models.CategoryUnknown, ErrAmbiguousCategory
	}
}

// wrapper returns the category wrapper when it appears exactly once.
func (r Record) wrapper(c models.Category) *Attributes {
	if w := r.wrappers(c); len(w) == 1 {
		return w[0]
	}
	return nil
}

func (r Record) wrappers(c models.Category) []*Attributes {
	switch c {
	case models.CategoryNew:
		return r.NewRcrd
	case models.CategoryTerminated:
		return r.TermntdRcrd
	case models.CategoryModified:
		return r.ModfdRcrd
	default:
		return nil
	}
}

// Row extracts the six header fields of rec under category c.
// The first absent field, in header order, is returned as a *MissingFieldError.
func Row(c models.Category, rec Record) (models.InstrumentRow, error) {
	attrs := rec.wrapper(c)
	if attrs == nil {
		return models.InstrumentRow{}, &MissingFieldError{Category: c, Field: c.Key()}
	}
	g := attrs.General
	if g == nil {
		return models.InstrumentRow{}, &MissingFieldError{Category: c, Field: "FinInstrmGnlAttrbts"}
	}

	fields := []struct {
		name string
		v    *string
	}{
		{"FinInstrmGnlAttrbts.Id", g.ID},
		{"FinInstrmGnlAttrbts.FullNm", g.FullName},
		{"FinInstrmGnlAttrbts.ClssfctnTp", g.ClassificationType},
		{"FinInstrmGnlAttrbts.CmmdtyDerivInd", g.CommodityDerivativeIndicator},
		{"FinInstrmGnlAttrbts.NtnlCcy", g.Currency},
		{"Issr", attrs.Issuer},
	}
	for _, f := range fields {
		if f.v == nil {
			return models.InstrumentRow{}, &MissingFieldError{Category: c, Field: f.name}
		}
	}

	return models.InstrumentRow{
		ID:                           *g.ID,
		FullName:                     *g.FullName,
		ClassificationType:           *g.ClassificationType,
		CommodityDerivativeIndicator: *g.CommodityDerivativeIndicator,
		Currency:                     *g.Currency,
		Issuer:                       *attrs.Issuer,
	}, nil
}

// Flatten classifies every record of doc and extracts its row.
//
// Behavior:
//   - Each record lands in exactly one of New, Terminated, Modified or Errors.
//   - A failing record never stops the records after it.
//   - Every collection keeps source order.
func Flatten(doc *Document) models.FlattenResult {
	var res models.FlattenResult
	if doc == nil {
		return res
	}
	res.Total = len(doc.Records)

	for i, rec := range doc.Records {
		c, err := Classify(rec)
		if err == nil {
			var row models.InstrumentRow
			row, err = Row(c, rec)
			if err == nil {
				res.Append(c, row)
				continue
			}
		}
		res.Errors = append(res.Errors, recordError(i, c, rec, err))
	}
	return res
}

func recordError(index int, c models.Category, rec Record, err error) models.RecordError {
	re := models.RecordError{Index: index, Category: c, Raw: rec.Raw()}

	var mf *MissingFieldError
	switch {
	case errors.As(err, &mf):
		re.Reason = models.ReasonMissingField
		re.Field = mf.Field
	case errors.Is(err, ErrAmbiguousCategory):
		re.Reason = models.ReasonAmbiguousCategory
	default:
		re.Reason = models.ReasonUnknownCategory
	}
	return re
}
