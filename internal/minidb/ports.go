package minidb

import (
	"context"
)

type Pager interface {
	GetPage(context.Context, PageIndex) (*Page, error)
	AllocatePage(context.Context) (*Page, error)
	TotalPages() uint32
	GetMeta(context.Context) []byte
	Flush(context.Context, []byte) error
	Clear(context.Context) error
	Close() error
}
