package fileengine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"testing"
)

func TestUploaderChunksAndChecksums(t *testing.T) {
	payload := bytes.Repeat([]byte("abcdefgh"), 100) // 800 bytes
	src := bytes.NewReader(payload)
	u := NewUploader("/f", int64(len(payload)), src, 128, 0)

	var reassembled bytes.Buffer
	ctx := context.Background()
	for {
		chunk, err := u.NextChunk(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reassembled.Write(chunk.Data)
		if chunk.Last {
			break
		}
	}

	if !bytes.Equal(reassembled.Bytes(), payload) {
		t.Fatal("reassembled upload does not match source")
	}

	want := sha256.Sum256(payload)
	if u.Checksum() != want {
		t.Fatal("running checksum mismatch")
	}
	if !u.Done() {
		t.Fatal("expected uploader marked done")
	}
}

func TestUploaderRejectsFurtherChunksOnceDone(t *testing.T) {
	src := bytes.NewReader([]byte("hi"))
	u := NewUploader("/f", 2, src, 16, 0)
	ctx := context.Background()

	if _, err := u.NextChunk(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := u.NextChunk(ctx); err != ErrUploadComplete {
		t.Fatalf("expected ErrUploadComplete, got %v", err)
	}
}

func TestUploaderOffsetsAreContiguous(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 50)
	u := NewUploader("/f", int64(len(payload)), bytes.NewReader(payload), 20, 0)
	ctx := context.Background()

	var offsets []int64
	for {
		c, err := u.NextChunk(ctx)
		if err != nil {
			t.Fatal(err)
		}
		offsets = append(offsets, c.Offset)
		if c.Last {
			break
		}
	}

	want := []int64{0, 20, 40}
	if len(offsets) != len(want) {
		t.Fatalf("expected offsets %v, got %v", want, offsets)
	}
	for i, w := range want {
		if offsets[i] != w {
			t.Fatalf("offset %d: want %d got %d", i, w, offsets[i])
		}
	}
}
