package models

// Category identifies which wrapper element tagged an instrument record.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNew
	CategoryTerminated
	CategoryModified
)

// Categories lists the recognised record categories in export order.
var Categories = []Category{CategoryNew, CategoryTerminated, CategoryModified}

// Key returns the XML wrapper element name for the category (e.g., "NewRcrd").
func (c Category) Key() string {
	switch c {
	case CategoryNew:
		return "NewRcrd"
	case CategoryTerminated:
		return "TermntdRcrd"
	case CategoryModified:
		return "ModfdRcrd"
	default:
		return ""
	}
}

// CollectionName returns the export name of the category's row collection.
func (c Category) CollectionName() string {
	if k := c.Key(); k != "" {
		return "data" + k
	}
	return ""
}

func (c Category) String() string {
	switch c {
	case CategoryNew:
		return "new"
	case CategoryTerminated:
		return "terminated"
	case CategoryModified:
		return "modified"
	default:
		return "unknown"
	}
}

// ParseCategory maps a lowercase category name back to a Category.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if c.String() == s {
			return c
		}
	}
	return CategoryUnknown
}

// InstrumentHeader is the fixed column header of every exported row collection.
var InstrumentHeader = []string{
	"FinInstrmGnlAttrbts.Id",
	"FinInstrmGnlAttrbts.FullNm",
	"FinInstrmGnlAttrbts.ClssfctnTp",
	"FinInstrmGnlAttrbts.CmmdtyDerivInd",
	"FinInstrmGnlAttrbts.NtnlCcy",
	"Issr",
}

// InstrumentRow is one flattened instrument record.
//
// Column order:
//  1. ID                           (FinInstrmGnlAttrbts.Id)
//  2. FullName                     (FinInstrmGnlAttrbts.FullNm)
//  3. ClassificationType           (FinInstrmGnlAttrbts.ClssfctnTp)
//  4. CommodityDerivativeIndicator (FinInstrmGnlAttrbts.CmmdtyDerivInd)
//  5. Currency                     (FinInstrmGnlAttrbts.NtnlCcy)
//  6. Issuer                       (Issr)
type InstrumentRow struct {
	ID                           string `json:"id"`
	FullName                     string `json:"full_name"`
	ClassificationType           string `json:"classification_type"`
	CommodityDerivativeIndicator string `json:"commodity_derivative_indicator"`
	Currency                     string `json:"currency"`
	Issuer                       string `json:"issuer"`
}

// Values returns the row fields in InstrumentHeader order.
func (r InstrumentRow) Values() []string {
	return []string{
		r.ID,
		r.FullName,
		r.ClassificationType,
		r.CommodityDerivativeIndicator,
		r.Currency,
		r.Issuer,
	}
}
