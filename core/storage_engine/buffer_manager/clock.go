package buffermanager

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	internaltelemetry "github.com/sushant-115/bufmgr/internal/telemetry"
)

// advanceClock moves the clock hand to the next frame.
func (bm *BufMgr) advanceClock() {
	bm.clockHand = (bm.clockHand + 1) % FrameID(bm.numBufs)
}

// allocBuf picks a frame for a new page using the clock policy and returns it
// cleared. A dirty victim is written back first; if that write fails the victim is
// left untouched and the error returned.
//
// The pinned frames seen during each full lap are counted. A lap in which every
// frame was pinned means nothing can be evicted and ErrBufferExceeded is returned.
// Otherwise the second lap always finds a victim, because the first one cleared
// every reference bit.
// This method MUST be called with bm.mu locked.
func (bm *BufMgr) allocBuf() (FrameID, error) {
	pinned := 0
	for step := 1; step <= 2*bm.numBufs; step++ {
		bm.advanceClock()
		d := &bm.descTable[bm.clockHand]

		if d.valid {
			if d.pinCnt > 0 {
				d.refbit = false
				pinned++
			} else if d.refbit {
				d.refbit = false
			} else {
				if err := bm.evict(d); err != nil {
					return 0, err
				}
				bm.metrics.ClockStepsHistogram.Record(context.Background(), int64(step))
				return d.frameNo, nil
			}
		} else {
			bm.clearFrame(d)
			bm.metrics.ClockStepsHistogram.Record(context.Background(), int64(step))
			return d.frameNo, nil
		}

		if step%bm.numBufs == 0 {
			if pinned == bm.numBufs {
				bm.metrics.BufferExceededCounter.Add(context.Background(), 1)
				return 0, fmt.Errorf("%w: %d frames", ErrBufferExceeded, bm.numBufs)
			}
			pinned = 0
		}
	}
	// unreachable while the descriptor invariants hold
	return 0, fmt.Errorf("%w: clock sweep found no victim in two laps", ErrBadBuffer)
}

// evict writes back the victim if needed and clears it.
func (bm *BufMgr) evict(d *frameDesc) error {
	if d.dirty {
		bm.logger.Debug("flushing dirty victim",
			zap.String("file", d.file.Filename()), zap.Uint32("pageNo", uint32(d.pageNo)), zap.Uint32("frame", uint32(d.frameNo)))
		if err := d.file.WritePage(bm.bufPool[d.frameNo]); err != nil {
			bm.logger.Error("failed to flush dirty victim",
				zap.String("file", d.file.Filename()), zap.Uint32("pageNo", uint32(d.pageNo)), zap.Error(err))
			return fmt.Errorf("failed to flush dirty victim page %d of %s: %w", d.pageNo, d.file.Filename(), err)
		}
		bm.metrics.WritebacksCounter.Add(context.Background(), 1, metricReason(internaltelemetry.WritebackEvict))
	}
	bm.logger.Debug("evicting page",
		zap.String("file", d.file.Filename()), zap.Uint32("pageNo", uint32(d.pageNo)), zap.Uint32("frame", uint32(d.frameNo)))
	bm.clearFrame(d)
	bm.metrics.EvictionsCounter.Add(context.Background(), 1)
	return nil
}

func metricReason(reason string) metric.MeasurementOption {
	return metric.WithAttributes(internaltelemetry.WritebackReasonKey.String(reason))
}
