package pagemanager

import (
	"fmt"
)

// --- Page Management ---

const (
	InvalidPageID PageID = 0 // Backing stores number pages from 1
	// DefaultPageSize is the size of a page payload in bytes.
	DefaultPageSize = 8192
)

// PageID represents the number of a page inside one file.
type PageID uint32

// Page is a fixed-size page payload together with the number it has in its file.
// The buffer manager treats the payload as opaque bytes.
type Page struct {
	id   PageID
	data []byte
}

// NewPage creates a new zeroed Page instance.
func NewPage(id PageID, size int) *Page {
	return &Page{
		id:   id,
		data: make([]byte, size),
	}
}

// Reset clears the page number and zeroes the payload so old data cannot leak
// into the next page that lands in this slot.
func (p *Page) Reset() {
	p.id = InvalidPageID
	clear(p.data)
}

// CopyFrom overwrites this page with the number and payload of src.
func (p *Page) CopyFrom(src *Page) error {
	if len(src.data) != len(p.data) {
		return fmt.Errorf("page %d: payload size %d does not match slot size %d", src.id, len(src.data), len(p.data))
	}
	p.id = src.id
	copy(p.data, src.data)
	return nil
}

func (p *Page) GetData() []byte     { return p.data }
func (p *Page) GetPageID() PageID   { return p.id }
func (p *Page) SetPageID(id PageID) { p.id = id }
func (p *Page) Size() int           { return len(p.data) }

// SetData copies newData into the payload, truncating anything that does not fit.
// It returns the number of bytes copied.
func (p *Page) SetData(newData []byte) int { return copy(p.data, newData) }
