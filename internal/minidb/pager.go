package minidb

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	DefaultMaxPages = 100
)

var ErrTableFull = errors.New("table is full")

type DBFile interface {
	io.ReadSeeker
	io.ReaderAt
	io.WriterAt
	io.Closer
	Truncate(size int64) error
}

type pagerImpl struct {
	pageSize int
	maxPages uint32

	// number of tree pages, the metadata page at the start of the file
	// is not counted
	totalPages uint32

	// pages is a dense array where index = PageIndex, pages are never
	// evicted once loaded
	pages []*Page

	// contents of the metadata page, zero value until the file is
	// flushed for the first time
	meta []byte

	file     DBFile
	fileSize int64
}

// NewPager opens the database file and reads the metadata page if the
// file is not empty. Tree page N lives at file offset (N+1)*pageSize.
func NewPager(file DBFile, pageSize int, maxPages uint32) (*pagerImpl, error) {
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	aPager := &pagerImpl{
		pageSize: pageSize,
		maxPages: maxPages,
		file:     file,
		pages:    make([]*Page, 0),
	}

	fileSize, err := aPager.file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	aPager.fileSize = fileSize

	// Basic check to verify file size is a multiple of page size (4096B)
	if fileSize%int64(pageSize) != 0 {
		return nil, fmt.Errorf("db file size is not divisible by page size: %d", fileSize)
	}

	totalPages := fileSize / int64(pageSize)
	if totalPages > 0 {
		aPager.totalPages = uint32(totalPages) - 1

		aPager.meta = make([]byte, pageSize)
		if _, err := aPager.file.ReadAt(aPager.meta, 0); err != nil {
			return nil, fmt.Errorf("reading metadata page: %w", err)
		}
	}

	return aPager, nil
}

func (p *pagerImpl) Close() error {
	return p.file.Close()
}

func (p *pagerImpl) TotalPages() uint32 {
	return p.totalPages
}

func (p *pagerImpl) GetMeta(ctx context.Context) []byte {
	return p.meta
}

// AllocatePage assigns the next sequential page index to a new empty
// leaf page and caches it. Callers replace the leaf node with an
// internal one where needed.
func (p *pagerImpl) AllocatePage(ctx context.Context) (*Page, error) {
	if p.totalPages >= p.maxPages {
		return nil, fmt.Errorf("%w, maximum %d pages", ErrTableFull, p.maxPages)
	}

	aPage := &Page{
		Index:    PageIndex(p.totalPages),
		LeafNode: NewLeafNode(),
	}
	for len(p.pages) < int(aPage.Index)+1 {
		p.pages = append(p.pages, nil)
	}
	p.pages[aPage.Index] = aPage
	p.totalPages += 1

	return aPage, nil
}

func (p *pagerImpl) GetPage(ctx context.Context, pageIdx PageIndex) (*Page, error) {
	if int(pageIdx) < len(p.pages) && p.pages[pageIdx] != nil {
		return p.pages[pageIdx], nil
	}

	if uint32(pageIdx) >= p.totalPages {
		return nil, fmt.Errorf("cannot get page, index: %d, number of pages: %d", pageIdx, p.totalPages)
	}

	// Cache miss, load the page from file
	buf := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(buf, (int64(pageIdx)+1)*int64(p.pageSize)); err != nil {
		return nil, fmt.Errorf("reading page %d: %w", pageIdx, err)
	}

	aPage := &Page{Index: pageIdx}
	switch buf[0] {
	case PageTypeInternal:
		aPage.InternalNode = new(InternalNode)
		if _, err := aPage.InternalNode.Unmarshal(buf); err != nil {
			return nil, fmt.Errorf("unmarshal page %d: %w", pageIdx, err)
		}
	case PageTypeLeaf:
		aPage.LeafNode = new(LeafNode)
		if _, err := aPage.LeafNode.Unmarshal(buf); err != nil {
			return nil, fmt.Errorf("unmarshal page %d: %w", pageIdx, err)
		}
	default:
		return nil, fmt.Errorf("%w: unrecognised page type byte %d", ErrCorruptPage, buf[0])
	}

	for len(p.pages) < int(pageIdx)+1 {
		p.pages = append(p.pages, nil)
	}
	p.pages[pageIdx] = aPage

	return aPage, nil
}

// Flush writes the metadata buffer at the start of the file followed by
// every cached page at its offset. This is the only write path, nothing
// is written through before a flush.
func (p *pagerImpl) Flush(ctx context.Context, meta []byte) error {
	if len(meta) != p.pageSize {
		return fmt.Errorf("metadata buffer must be %d bytes, got %d", p.pageSize, len(meta))
	}

	if _, err := p.file.WriteAt(meta, 0); err != nil {
		return fmt.Errorf("writing metadata page: %w", err)
	}
	p.meta = meta

	for pageIdx := uint32(0); pageIdx < p.totalPages; pageIdx++ {
		if err := p.flushPage(PageIndex(pageIdx)); err != nil {
			return err
		}
	}
	p.fileSize = (int64(p.totalPages) + 1) * int64(p.pageSize)

	return nil
}

func (p *pagerImpl) flushPage(pageIdx PageIndex) error {
	// Pages that were never loaded keep their on disk contents
	if int(pageIdx) >= len(p.pages) || p.pages[pageIdx] == nil {
		return nil
	}
	aPage := p.pages[pageIdx]

	buf := make([]byte, p.pageSize)
	if aPage.LeafNode != nil {
		if _, err := aPage.LeafNode.Marshal(buf); err != nil {
			return fmt.Errorf("error flushing page %d: %w", pageIdx, err)
		}
	} else if aPage.InternalNode != nil {
		if _, err := aPage.InternalNode.Marshal(buf); err != nil {
			return fmt.Errorf("error flushing page %d: %w", pageIdx, err)
		}
	} else {
		return fmt.Errorf("error flushing, page %d is neither internal nor leaf node", pageIdx)
	}

	_, err := p.file.WriteAt(buf, (int64(pageIdx)+1)*int64(p.pageSize))
	return err
}

// Clear truncates the database file and resets the page cache.
func (p *pagerImpl) Clear(ctx context.Context) error {
	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating db file: %w", err)
	}
	p.pages = p.pages[:0]
	p.meta = nil
	p.totalPages = 0
	p.fileSize = 0
	return nil
}
