package buffermanager

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
	internaltelemetry "github.com/sushant-115/bufmgr/internal/telemetry"
)

// Config sizes the buffer pool.
type Config struct {
	NumFrames int
	PageSize  int
}

// BufMgr is a fixed-size cache of disk pages shared by every file it is handed.
// Frame i's descriptor always describes bufPool[i]. Replacement uses the clock
// (second chance) policy. A single mutex serialises all operations, including the
// backing-store I/O they trigger.
type BufMgr struct {
	numBufs  int
	pageSize int

	descTable []frameDesc
	bufPool   []*pagemanager.Page
	directory *pageDirectory
	clockHand FrameID

	logger  *zap.Logger
	metrics *internaltelemetry.BufferMetrics

	mu     sync.Mutex
	closed bool
}

// New creates a buffer manager with cfg.NumFrames invalid frames.
// A nil logger or metrics bundle disables logging or metrics respectively.
func New(cfg Config, logger *zap.Logger, metrics *internaltelemetry.BufferMetrics) (*BufMgr, error) {
	if cfg.NumFrames <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoolSize, cfg.NumFrames)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = pagemanager.DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = internaltelemetry.NewNoopBufferMetrics()
	}

	bm := &BufMgr{
		numBufs:   cfg.NumFrames,
		pageSize:  cfg.PageSize,
		descTable: make([]frameDesc, cfg.NumFrames),
		bufPool:   make([]*pagemanager.Page, cfg.NumFrames),
		directory: newPageDirectory(cfg.NumFrames),
		// the first sweep starts at frame 0
		clockHand: FrameID(cfg.NumFrames - 1),
		logger:    logger,
		metrics:   metrics,
	}
	for i := range bm.descTable {
		bm.descTable[i].frameNo = FrameID(i)
		bm.bufPool[i] = pagemanager.NewPage(pagemanager.InvalidPageID, cfg.PageSize)
	}
	logger.Info("buffer manager initialized", zap.Int("frames", cfg.NumFrames), zap.Int("pageSize", cfg.PageSize))
	return bm, nil
}

func (bm *BufMgr) NumFrames() int { return bm.numBufs }
func (bm *BufMgr) PageSize() int  { return bm.pageSize }

// checkUsable must be called with bm.mu held.
func (bm *BufMgr) checkUsable(file diskmanager.File) error {
	if bm.closed {
		return ErrBufMgrClosed
	}
	if file.PageSize() != bm.pageSize {
		return fmt.Errorf("%w: %s uses %d bytes, pool uses %d", ErrPageSizeMismatch, file.Filename(), file.PageSize(), bm.pageSize)
	}
	return nil
}

func (bm *BufMgr) pin(d *frameDesc) {
	d.pinCnt++
	if d.pinCnt == 1 {
		bm.metrics.PinnedFramesUpDownCounter.Add(context.Background(), 1)
	}
}

// clearFrame drops the frame's directory entry, resets its descriptor and zeroes
// its payload.
func (bm *BufMgr) clearFrame(d *frameDesc) {
	if d.valid {
		bm.directory.remove(d.file.ID(), d.pageNo)
	}
	if d.pinCnt > 0 {
		bm.metrics.PinnedFramesUpDownCounter.Add(context.Background(), -1)
	}
	d.clear()
	bm.bufPool[d.frameNo].Reset()
}

func (bm *BufMgr) newHandle(d *frameDesc) *PageHandle {
	return &PageHandle{
		bm:     bm,
		file:   d.file,
		pageNo: d.pageNo,
		frame:  d.frameNo,
		epoch:  d.epoch,
	}
}

// install makes a freshly obtained frame hold p for file, pinned once.
func (bm *BufMgr) install(frame FrameID, file diskmanager.File, p *pagemanager.Page) error {
	if err := bm.bufPool[frame].CopyFrom(p); err != nil {
		return err
	}
	if err := bm.directory.insert(file.ID(), p.GetPageID(), frame); err != nil {
		bm.bufPool[frame].Reset()
		return fmt.Errorf("%w: %s page %d", err, file.Filename(), p.GetPageID())
	}
	d := &bm.descTable[frame]
	d.set(file, p.GetPageID())
	bm.metrics.PinnedFramesUpDownCounter.Add(context.Background(), 1)
	return nil
}

// ReadPage returns a pinned handle to the page, reading it from file if it is not
// resident. The caller must release the handle (or call UnpinPage) exactly once.
func (bm *BufMgr) ReadPage(file diskmanager.File, pageNo pagemanager.PageID) (*PageHandle, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if err := bm.checkUsable(file); err != nil {
		return nil, err
	}

	if frame, ok := bm.directory.lookup(file.ID(), pageNo); ok {
		d := &bm.descTable[frame]
		bm.pin(d)
		d.refbit = true
		bm.metrics.PageHitsCounter.Add(context.Background(), 1)
		return bm.newHandle(d), nil
	}

	bm.metrics.PageMissesCounter.Add(context.Background(), 1)
	frame, err := bm.allocBuf()
	if err != nil {
		bm.logger.Debug("no frame for page", zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(pageNo)), zap.Error(err))
		return nil, err
	}
	p, err := file.ReadPage(pageNo)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d of %s: %w", pageNo, file.Filename(), err)
	}
	if err := bm.install(frame, file, p); err != nil {
		return nil, err
	}
	bm.logger.Debug("page loaded", zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(pageNo)), zap.Uint32("frame", uint32(frame)))
	return bm.newHandle(&bm.descTable[frame]), nil
}

// UnpinPage drops one pin on the page. dirty=true marks the page dirty; dirty=false
// never clears an earlier dirty mark. Unpinning a page that is not resident is a no-op.
func (bm *BufMgr) UnpinPage(file diskmanager.File, pageNo pagemanager.PageID, dirty bool) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return ErrBufMgrClosed
	}
	return bm.unpinLocked(file, pageNo, dirty)
}

func (bm *BufMgr) unpinLocked(file diskmanager.File, pageNo pagemanager.PageID, dirty bool) error {
	frame, ok := bm.directory.lookup(file.ID(), pageNo)
	if !ok {
		bm.logger.Debug("unpin of non-resident page ignored", zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(pageNo)))
		return nil
	}
	d := &bm.descTable[frame]
	if d.pinCnt == 0 {
		return fmt.Errorf("%w: file %s page %d frame %d", ErrPageNotPinned, file.Filename(), pageNo, frame)
	}
	d.pinCnt--
	if d.pinCnt == 0 {
		bm.metrics.PinnedFramesUpDownCounter.Add(context.Background(), -1)
	}
	if dirty {
		d.dirty = true
	}
	return nil
}

// AllocPage asks file for a new page and loads it pinned into the pool.
func (bm *BufMgr) AllocPage(file diskmanager.File) (pagemanager.PageID, *PageHandle, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if err := bm.checkUsable(file); err != nil {
		return pagemanager.InvalidPageID, nil, err
	}

	p, err := file.AllocatePage()
	if err != nil {
		return pagemanager.InvalidPageID, nil, fmt.Errorf("failed to allocate page in %s: %w", file.Filename(), err)
	}
	pageNo := p.GetPageID()

	frame, err := bm.allocBuf()
	if err == nil {
		err = bm.install(frame, file, p)
	}
	if err != nil {
		// the page would be orphaned in the file otherwise
		if derr := file.DeletePage(pageNo); derr != nil {
			bm.logger.Warn("could not roll back page allocation",
				zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(pageNo)), zap.Error(derr))
		}
		return pagemanager.InvalidPageID, nil, fmt.Errorf("failed to get frame for new page %d: %w", pageNo, err)
	}
	bm.logger.Debug("page allocated", zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(pageNo)), zap.Uint32("frame", uint32(frame)))
	return pageNo, bm.newHandle(&bm.descTable[frame]), nil
}

// FlushFile writes back and evicts every resident page of file. It fails with
// ErrPagePinned as soon as it meets a pinned page of the file; frames handled before
// that point stay flushed and evicted.
func (bm *BufMgr) FlushFile(file diskmanager.File) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return ErrBufMgrClosed
	}

	flushed := 0
	for i := range bm.descTable {
		d := &bm.descTable[i]
		if !d.owns(file) {
			continue
		}
		if d.pinCnt > 0 {
			return fmt.Errorf("%w: file %s page %d frame %d", ErrPagePinned, file.Filename(), d.pageNo, d.frameNo)
		}
		if !d.valid {
			return fmt.Errorf("%w: frame %d dirty:%t valid:%t refbit:%t", ErrBadBuffer, d.frameNo, d.dirty, d.valid, d.refbit)
		}
		if d.dirty {
			if err := d.file.WritePage(bm.bufPool[i]); err != nil {
				bm.logger.Error("flush write failed", zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(d.pageNo)), zap.Error(err))
				return fmt.Errorf("failed to flush page %d of %s: %w", d.pageNo, file.Filename(), err)
			}
			d.dirty = false
			bm.metrics.WritebacksCounter.Add(context.Background(), 1,
				metricReason(internaltelemetry.WritebackFlushFile))
		}
		bm.clearFrame(d)
		flushed++
	}
	bm.logger.Debug("file flushed", zap.String("file", file.Filename()), zap.Int("frames", flushed))
	return nil
}

// DisposePage drops the page from the pool if it is resident and deletes it from file.
func (bm *BufMgr) DisposePage(file diskmanager.File, pageNo pagemanager.PageID) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return ErrBufMgrClosed
	}

	if frame, ok := bm.directory.lookup(file.ID(), pageNo); ok {
		d := &bm.descTable[frame]
		if d.pinCnt > 0 {
			bm.logger.Warn("disposing pinned page",
				zap.String("file", file.Filename()), zap.Uint32("pageNo", uint32(pageNo)), zap.Uint32("pinCnt", d.pinCnt))
		}
		bm.clearFrame(d)
	}
	if err := file.DeletePage(pageNo); err != nil {
		return fmt.Errorf("failed to delete page %d of %s: %w", pageNo, file.Filename(), err)
	}
	return nil
}

// FlushAll writes back every dirty resident page and leaves it resident. Every frame
// is attempted; the returned error combines all failures.
func (bm *BufMgr) FlushAll() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return ErrBufMgrClosed
	}
	return bm.flushAllLocked()
}

func (bm *BufMgr) flushAllLocked() error {
	var errs error
	for i := range bm.descTable {
		d := &bm.descTable[i]
		if !d.valid || !d.dirty {
			continue
		}
		if err := d.file.WritePage(bm.bufPool[i]); err != nil {
			bm.logger.Error("write back failed", zap.String("file", d.file.Filename()), zap.Uint32("pageNo", uint32(d.pageNo)), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("page %d of %s: %w", d.pageNo, d.file.Filename(), err))
			continue
		}
		d.dirty = false
		bm.metrics.WritebacksCounter.Add(context.Background(), 1,
			metricReason(internaltelemetry.WritebackFlushAll))
	}
	return errs
}

// Close writes back every dirty page and releases the pool. Calling Close again is a
// no-op. Write-back failures are returned but do not keep the pool open.
func (bm *BufMgr) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.closed {
		return nil
	}
	err := bm.flushAllLocked()
	bm.closed = true
	bm.directory.reset()
	bm.descTable = nil
	bm.bufPool = nil
	bm.logger.Info("buffer manager closed", zap.Error(err))
	return err
}
