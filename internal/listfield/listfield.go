// Package listfield encodes ordered identifier lists (JIRA keys, PR refs) as
// single delimited text cells.
//
// Encoding is lossless only when no element contains the delimiter and the
// list is not a single empty element (which encodes like the empty list), so
// Join rejects such lists instead of escaping them.
package listfield

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates list elements inside one cell.
const Delimiter = ";"

var (
	// ErrDelimiter marks an element containing Delimiter.
	ErrDelimiter = errors.New("list element contains delimiter")
	// ErrEmptyElement marks a list holding only an empty element, which
	// would decode as the empty list.
	ErrEmptyElement = errors.New("list element is empty")
)

// EncodingError reports an element that cannot round-trip.
type EncodingError struct {
	Index   int
	Element string
	Err     error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("element %d %q: %v", e.Index, e.Element, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Split decodes a cell into its elements. The empty cell is the empty list;
// elements are returned verbatim and in order.
func Split(cell string) []string {
	if cell == "" {
		return []string{}
	}
	return strings.Split(cell, Delimiter)
}

// Join encodes items into one cell, or fails with an *EncodingError.
func Join(items []string) (string, error) {
	if err := Validate(items); err != nil {
		return "", err
	}
	return strings.Join(items, Delimiter), nil
}

// Validate checks that items round-trips through Join and Split. Empty
// elements are fine next to others ("A-1;" is ["A-1", ""]).
func Validate(items []string) error {
	if len(items) == 1 && items[0] == "" {
		return &EncodingError{Index: 0, Element: "", Err: ErrEmptyElement}
	}
	for i, it := range items {
		if strings.Contains(it, Delimiter) {
			return &EncodingError{Index: i, Element: it, Err: ErrDelimiter}
		}
	}
	return nil
}

// Normalize returns items, or an empty non-nil slice when items is nil or
// holds a single empty element.
func Normalize(items []string) []string {
	if items == nil || (len(items) == 1 && items[0] == "") {
		return []string{}
	}
	return items
}
