package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"
)

// chunkSize: size of each read/write chunk
const chunkSize = 1024 * 1024 // 1 MiB

var bufPool = sync.Pool{
	New: func() interface{} { return make([]byte, chunkSize) },
}

// CopyThrottled copies srcPath to dstPath, writing at most rateBytesPerSec bytes per
// second (zero or less means unthrottled). dstPath is created or truncated and
// synced before returning. It returns the xxhash64 of the copied bytes.
func CopyThrottled(ctx context.Context, srcPath, dstPath string, rateBytesPerSec int64) (uint64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open src: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("open dst: %w", err)
	}
	defer dst.Close()

	var limiter *rate.Limiter
	if rateBytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateBytesPerSec), chunkSize)
	}

	buf := bufPool.Get().([]byte)
	defer bufPool.Put(buf)

	digest := xxhash.New()
	var readOff int64
	for {
		n, rerr := src.ReadAt(buf[:chunkSize], readOff)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return 0, fmt.Errorf("rate limiter error: %w", err)
				}
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return 0, fmt.Errorf("write error: %w", err)
			}
			_, _ = digest.Write(buf[:n])
			readOff += int64(n)
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return 0, fmt.Errorf("read error: %w", rerr)
		}
	}

	if err := dst.Sync(); err != nil {
		return 0, fmt.Errorf("sync error: %w", err)
	}
	return digest.Sum64(), nil
}
