package domain

import (
	"encoding/json"
	"time"
)

// Book is one side of the order book. It distinguishes "no data fetched"
// (unresolved) from an empty resolved side.
type Book struct {
	resolved bool
	swaps    []Swap
}

// UnresolvedBook returns a book whose contents are not known.
func UnresolvedBook() Book {
	return Book{}
}

// ResolvedBook returns a book holding swaps. A nil slice is a resolved, empty
// book.
func ResolvedBook(swaps []Swap) Book {
	if swaps == nil {
		swaps = []Swap{}
	}
	return Book{resolved: true, swaps: swaps}
}

// Resolved reports whether the book's contents are known.
func (b Book) Resolved() bool { return b.resolved }

// Swaps returns the book's swaps and whether the book is resolved.
func (b Book) Swaps() ([]Swap, bool) { return b.swaps, b.resolved }

// Len returns the number of swaps; zero for an unresolved book.
func (b Book) Len() int { return len(b.swaps) }

// MarshalJSON renders an unresolved book as null.
func (b Book) MarshalJSON() ([]byte, error) {
	if !b.resolved {
		return []byte("null"), nil
	}
	return json.Marshal(b.swaps)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (b *Book) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = UnresolvedBook()
		return nil
	}
	var swaps []Swap
	if err := json.Unmarshal(data, &swaps); err != nil {
		return err
	}
	*b = ResolvedBook(swaps)
	return nil
}

// MarketSnapshot is the derived market view for one pair at one refresh. It
// is never mutated after being published; a later refresh replaces it.
type MarketSnapshot struct {
	Pair        Pair        `json:"pair"`
	Buyers      Book        `json:"buyers"`
	Sellers     Book        `json:"sellers"`
	History     []Swap      `json:"history"`
	Decimals    Decimals    `json:"decimals"`
	Symbols     Symbols     `json:"symbols"`
	Orientation Orientation `json:"orientation"`
	Generation  uint64      `json:"generation"`
	RefreshedAt time.Time   `json:"refreshed_at"`
}

// Inverted reports whether the data source's orientation was opposite to the
// requested pair order.
func (s *MarketSnapshot) Inverted() bool {
	return s.Orientation == OrientationInverted
}
