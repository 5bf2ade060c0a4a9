package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// LinkField is the name of the feed entry carrying the data file URL.
const LinkField = "download_link"

var (
	// ErrNoResultDocument is returned when the feed result holds no doc element.
	ErrNoResultDocument = errors.New("feed has no result document")
	// ErrLinkNotFound is returned when the first result document has no non-blank download_link.
	ErrLinkNotFound = errors.New("download link not found")
)

// Document is the Solr XML response: response > result > doc[] > str[].
type Document struct {
	XMLName xml.Name `xml:"response"`
	Result  Result   `xml:"result"`
}

// Result is the result element of a Solr response.
type Result struct {
	NumFound int   `xml:"numFound,attr"`
	Docs     []Doc `xml:"doc"`
}

// Doc is one published file entry.
type Doc struct {
	Fields []Field `xml:"str"`
}

// Field is a named string entry of a Doc.
type Field struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Get returns the value of the first field called name.
func (d Doc) Get(name string) (string, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// ParseDocument decodes a feed XML document.
func ParseDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed xml: %w", err)
	}
	return &doc, nil
}

// ExtractLink returns the download_link of the first result document.
//
// The first matching entry wins. A blank value counts as not found; no default is guessed.
func ExtractLink(doc *Document) (string, error) {
	if doc == nil || len(doc.Result.Docs) == 0 {
		return "", ErrNoResultDocument
	}
	v, ok := doc.Result.Docs[0].Get(LinkField)
	if !ok {
		return "", ErrLinkNotFound
	}
	link := strings.TrimSpace(v)
	if link == "" {
		return "", fmt.Errorf("%w: %s is blank", ErrLinkNotFound, LinkField)
	}
	return link, nil
}

// ExtractLinkFromFile parses the feed stored at path and returns its download link.
func ExtractLinkFromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open feed %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	doc, err := ParseDocument(f)
	if err != nil {
		return "", err
	}
	return ExtractLink(doc)
}
