package provider

import (
	"bytes"
	"context"
	"io"
	"time"
)

// defaultFollowInterval is the poll period for log following.
const defaultFollowInterval = time.Second

// ReadFunc reads log bytes starting at offset and returns the chunk
// plus the offset to resume from. An empty chunk with an unchanged
// offset means no new output yet.
type ReadFunc func(ctx context.Context, offset int64) ([]byte, int64, error)

// Follower turns an offset-addressed, append-only log into a stream of
// complete lines. It polls on a fixed interval, carries a trailing
// partial line across polls, and flushes that buffer when the stream
// stops. Cancellation takes effect within one interval.
type Follower struct {
	Read     ReadFunc
	Out      io.Writer
	Interval time.Duration
	Offset   int64 // starting byte offset
}

// Run polls until ctx is canceled (returns nil) or a read fails
// (returns the read error). Anything left in the partial-line buffer is
// written out before returning.
func (f *Follower) Run(ctx context.Context) error {
	interval := f.Interval
	if interval <= 0 {
		interval = defaultFollowInterval
	}

	var buf []byte
	offset := f.Offset

	flush := func() {
		if len(buf) > 0 {
			f.Out.Write(buf)
			f.Out.Write([]byte("\n"))
			buf = nil
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunk, next, err := f.Read(ctx, offset)
		if err != nil {
			flush()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		offset = next

		buf = append(buf, chunk...)
		for {
			i := bytes.IndexByte(buf, '\n')
			if i < 0 {
				break
			}
			f.Out.Write(buf[:i+1])
			buf = buf[i+1:]
		}

		select {
		case <-ctx.Done():
			flush()
			return nil
		case <-ticker.C:
		}
	}
}
