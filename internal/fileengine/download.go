package fileengine

import (
	"fmt"
	"io"
)

// Downloader reassembles an incoming file from chunks that must arrive in
// strict offset order (spec §4.1, §8): any chunk whose offset does not
// match the next expected byte is rejected rather than buffered out of
// order.
type Downloader struct {
	dst        io.Writer
	totalSize  int64
	nextOffset int64
	windowSize int64
	complete   bool
}

// NewDownloader reassembles into dst, requesting windowSize bytes at a time.
func NewDownloader(dst io.Writer, windowSize int64) *Downloader {
	return &Downloader{dst: dst, windowSize: windowSize}
}

// Feed writes one chunk's data to dst after asserting offset continuity.
// Returns true once the final chunk has been consumed.
func (d *Downloader) Feed(offset, totalSize int64, data []byte, isLast bool) (bool, error) {
	if d.complete {
		return true, fmt.Errorf("fileengine: chunk received after download already complete")
	}
	if offset != d.nextOffset {
		return false, fmt.Errorf("fileengine: out-of-order chunk: expected offset %d, got %d", d.nextOffset, offset)
	}
	if d.totalSize == 0 {
		d.totalSize = totalSize
	} else if d.totalSize != totalSize {
		return false, fmt.Errorf("fileengine: total size changed mid-transfer: %d -> %d", d.totalSize, totalSize)
	}

	if _, err := d.dst.Write(data); err != nil {
		return false, fmt.Errorf("fileengine: write chunk at offset %d: %w", offset, err)
	}
	d.nextOffset += int64(len(data))

	if isLast {
		if d.nextOffset != d.totalSize {
			return false, fmt.Errorf("fileengine: final chunk ends at %d, expected total size %d", d.nextOffset, d.totalSize)
		}
		d.complete = true
		return true, nil
	}
	return false, nil
}

// NextRequest reports the offset and chunk size for the next download
// request window, or ok=false once the transfer is complete.
func (d *Downloader) NextRequest() (offset, size int64, ok bool) {
	if d.complete {
		return 0, 0, false
	}
	return d.nextOffset, d.windowSize, true
}

// Received reports how many bytes have been written so far.
func (d *Downloader) Received() int64 { return d.nextOffset }

// Complete reports whether the download has fully reassembled.
func (d *Downloader) Complete() bool { return d.complete }
