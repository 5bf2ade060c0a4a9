// Package flatten turns the FIRDS DLTINS data XML into category row collections and an error log.
package flatten

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Document is the data file root: BizData > Pyld > Document > FinInstrmRptgRefDataDltaRpt > FinInstrm[].
// Element names match regardless of the ISO 20022 namespaces declared in the file.
type Document struct {
	XMLName xml.Name `xml:"BizData"`
	Records []Record `xml:"Pyld>Document>FinInstrmRptgRefDataDltaRpt>FinInstrm"`
}

// Record is one FinInstrm element. Exactly one wrapper element is expected in total;
// repeats of the same wrapper are kept apart so they can be rejected.
type Record struct {
	NewRcrd     []*Attributes `xml:"NewRcrd"`
	TermntdRcrd []*Attributes `xml:"TermntdRcrd"`
	ModfdRcrd   []*Attributes `xml:"ModfdRcrd"`
	Inner       string        `xml:",innerxml"`
}

// Attributes is the content of a category wrapper.
type Attributes struct {
	General *GeneralAttributes `xml:"FinInstrmGnlAttrbts"`
	Issuer  *string            `xml:"Issr"`
}

// GeneralAttributes holds FinInstrmGnlAttrbts. Nil pointers mark absent elements.
type GeneralAttributes struct {
	ID                           *string `xml:"Id"`
	FullName                     *string `xml:"FullNm"`
	ClassificationType           *string `xml:"ClssfctnTp"`
	CommodityDerivativeIndicator *string `xml:"CmmdtyDerivInd"`
	Currency                     *string `xml:"NtnlCcy"`
}

// Raw returns the record XML as it appeared in the source, without surrounding whitespace.
func (r Record) Raw() string {
	return "<FinInstrm>" + strings.TrimSpace(r.Inner) + "</FinInstrm>"
}

// Parse decodes a data document from r.
func Parse(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode data xml: %w", err)
	}
	return &doc, nil
}

// ParseFile decodes the data document stored at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}
