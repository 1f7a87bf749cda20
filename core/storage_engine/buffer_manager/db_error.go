package buffermanager

import "errors"

// --- Error Definitions ---

var (
	ErrBufferExceeded   = errors.New("buffer pool exceeded: every frame is pinned")
	ErrPageNotPinned    = errors.New("page is not pinned")
	ErrPagePinned       = errors.New("page is pinned")
	ErrBadBuffer        = errors.New("bad buffer: frame bookkeeping is inconsistent")
	ErrDuplicateEntry   = errors.New("page directory already holds an entry for this page")
	ErrStaleHandle      = errors.New("page handle is no longer valid")
	ErrBufMgrClosed     = errors.New("buffer manager is closed")
	ErrInvalidPoolSize  = errors.New("number of frames must be positive")
	ErrPageSizeMismatch = errors.New("file page size does not match buffer page size")
)
