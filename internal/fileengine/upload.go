// Package fileengine drives the chunked upload/download pipelines that sit
// behind the FileUploadStart/.../FileDownloadRequest wire messages: chunking
// and checksumming on the way up, in-order reassembly on the way down.
package fileengine

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// ErrUploadComplete is returned by NextChunk once every byte has been sent.
var ErrUploadComplete = errors.New("fileengine: upload already complete")

// Uploader paces reads from src into fixed-size chunks, maintaining a
// running SHA-256 so the final FileUploadComplete checksum never requires a
// second pass over the file.
type Uploader struct {
	path      string
	chunkSize int
	src       io.Reader
	limiter   *rate.Limiter
	hash      [32]byte
	hasher    hasher
	sent      int64
	size      int64
	done      bool
}

// hasher is the subset of hash.Hash this package needs, kept narrow so
// tests can swap in a fake if ever needed.
type hasher interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

// NewUploader builds an Uploader for a file of the given size, reading from
// src in chunkSize pieces. ratePerSecond bounds how many chunks per second
// are released (0 disables pacing — used in tests and for small files).
func NewUploader(path string, size int64, src io.Reader, chunkSize int, ratePerSecond float64) *Uploader {
	u := &Uploader{path: path, chunkSize: chunkSize, src: src, size: size, hasher: sha256.New()}
	if ratePerSecond > 0 {
		u.limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return u
}

// Chunk is one paced slice of the upload plus its absolute offset.
type Chunk struct {
	Offset int64
	Data   []byte
	Last   bool
}

// NextChunk blocks (via the rate limiter, if configured) until it is
// permitted to release the next chunk, reads it from src, folds it into the
// running checksum, and reports whether this was the final chunk.
func (u *Uploader) NextChunk(ctx context.Context) (Chunk, error) {
	if u.done {
		return Chunk{}, ErrUploadComplete
	}
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return Chunk{}, fmt.Errorf("fileengine: rate wait: %w", err)
		}
	}

	buf := make([]byte, u.chunkSize)
	n, err := io.ReadFull(u.src, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Chunk{}, fmt.Errorf("fileengine: read upload source: %w", err)
	}
	data := buf[:n]
	offset := u.sent
	u.sent += int64(n)
	u.hasher.Write(data)

	last := u.sent >= u.size || err == io.EOF || err == io.ErrUnexpectedEOF
	if last {
		u.done = true
		copy(u.hash[:], u.hasher.Sum(nil))
	}
	return Chunk{Offset: offset, Data: data, Last: last}, nil
}

// Checksum returns the running SHA-256, valid only once the final chunk has
// been produced.
func (u *Uploader) Checksum() [32]byte { return u.hash }

// Done reports whether every chunk has been produced.
func (u *Uploader) Done() bool { return u.done }
