package orchestrator

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/moukrea/remoshell-sub000/internal/fileengine"
	"github.com/moukrea/remoshell-sub000/internal/store/filestore"
	"github.com/moukrea/remoshell-sub000/internal/transport"
	"github.com/moukrea/remoshell-sub000/internal/wire"
)

// downloadChunkRate paces outbound FileDownloadChunk production when a peer
// pulls a file from us (spec §9 Open Question, resolved in favor of
// credit-based pacing — see DESIGN.md).
const downloadChunkRate = 50 // chunks/second

const defaultChunkSize = 64 * 1024

// uploadState pairs a Downloader reassembling FileUploadChunk data with the
// size FileUploadStart declared, since FileUploadChunk itself carries no
// per-message total/last marker, plus the filestore.Transfer record this
// inbound push is tracked under.
type uploadState struct {
	downloader *fileengine.Downloader
	size       int64
	transferID string
}

// downloadState pairs a Downloader reassembling FileDownloadChunk data with
// the filestore.Transfer record the download is tracked under.
type downloadState struct {
	downloader *fileengine.Downloader
	transferID string
}

// onFileIntent turns the file store's outbound write-intent events
// (spec §4.6 "files:navigate"/"files:download") into wire messages, routed
// to whichever peer is currently active (spec §4.4 active_peer_id).
func (c *Core) onFileIntent(e filestore.Event) {
	peerID := c.Connections.ActivePeerID()
	if peerID == "" {
		return
	}
	switch e.Kind {
	case filestore.EventNavigateIntent:
		msg := wire.FileListRequest{Path: e.Path, IncludeHidden: e.ShowHidden}
		if err := c.SendToPeer(peerID, transport.ChannelControl, msg); err != nil {
			c.log.Errorf("orchestrator: send file list request for %s: %v", e.Path, err)
		}
	case filestore.EventDownloadIntent:
		c.mu.Lock()
		c.downloads[e.Path] = &downloadState{transferID: e.Transfer.ID}
		c.mu.Unlock()
		if err := c.StartDownload(peerID, e.Path, defaultChunkSize); err != nil {
			c.log.Errorf("orchestrator: start download for %s: %v", e.Path, err)
			c.Files.FailTransfer(e.Transfer.ID, err.Error())
		}
	}
}

// StartUpload pushes a local file to peerID: FileUploadStart, then a
// rate-paced FileUploadChunk stream, then FileUploadComplete with the
// running SHA-256. It creates and drives a filestore.Transfer record for
// the duration of the push.
func (c *Core) StartUpload(ctx context.Context, peerID, filePath string, size int64, ratePerSecond float64) error {
	if c.fileSource == nil {
		return fmt.Errorf("orchestrator: no file source configured")
	}
	src, srcSize, err := c.fileSource(filePath)
	if err != nil {
		return fmt.Errorf("orchestrator: open upload source %s: %w", filePath, err)
	}
	if srcSize != size {
		return fmt.Errorf("orchestrator: declared size %d does not match source size %d", size, srcSize)
	}

	transferID := uuid.NewString()
	c.Files.CreateTransfer(transferID, filePath, path.Base(filePath), filestore.DirectionUpload, size, time.Now())
	c.Files.StartTransfer(transferID)

	if err := c.SendToPeer(peerID, transport.ChannelFiles, wire.FileUploadStart{Path: filePath, Size: size, Mode: 0o644, Overwrite: true}); err != nil {
		c.Files.FailTransfer(transferID, err.Error())
		return err
	}

	up := fileengine.NewUploader(filePath, size, src, defaultChunkSize, ratePerSecond)
	for !up.Done() {
		chunk, err := up.NextChunk(ctx)
		if err != nil {
			c.Files.FailTransfer(transferID, err.Error())
			return fmt.Errorf("orchestrator: produce upload chunk for %s: %w", filePath, err)
		}
		if err := c.SendToPeer(peerID, transport.ChannelFiles, wire.FileUploadChunk{Path: filePath, Offset: chunk.Offset, Data: chunk.Data}); err != nil {
			c.Files.FailTransfer(transferID, err.Error())
			return fmt.Errorf("orchestrator: send upload chunk for %s: %w", filePath, err)
		}
		c.Files.UpdateProgress(transferID, chunk.Offset+int64(len(chunk.Data)), time.Now())
	}
	return c.SendToPeer(peerID, transport.ChannelFiles, wire.FileUploadComplete{Path: filePath, Checksum: up.Checksum()})
}

// handleFileUploadStart registers a Downloader awaiting FileUploadChunk
// messages from peerID, backed by a writer from fileSink, and a
// filestore.Transfer record tracking the push from our (receiving) side.
// FileUploadChunk carries no total size of its own, so the size declared
// here is stored and passed as the total on every Feed; a chunk is fed with
// isLast=true once it brings the received count up to that size. The
// separate FileUploadComplete message finishes the transfer record.
func (c *Core) handleFileUploadStart(peerID string, m wire.FileUploadStart) {
	if c.fileSink == nil {
		c.log.Errorf("orchestrator: upload start for %s from %s rejected: no file sink configured", m.Path, peerID)
		return
	}
	dst, err := c.fileSink(m.Path, m.Size)
	if err != nil {
		c.log.Errorf("orchestrator: open upload sink %s: %v", m.Path, err)
		return
	}

	transferID := uuid.NewString()
	c.Files.CreateTransfer(transferID, m.Path, path.Base(m.Path), filestore.DirectionDownload, m.Size, time.Now())
	c.Files.StartTransfer(transferID)

	c.mu.Lock()
	c.uploads[m.Path] = &uploadState{downloader: fileengine.NewDownloader(dst, 0), size: m.Size, transferID: transferID}
	c.mu.Unlock()
}

func (c *Core) handleFileUploadChunk(peerID string, m wire.FileUploadChunk) {
	st := c.uploadState(m.Path)
	if st == nil {
		c.log.Errorf("orchestrator: upload chunk for unknown transfer %s from %s", m.Path, peerID)
		return
	}
	last := st.downloader.Received()+int64(len(m.Data)) >= st.size
	if _, err := st.downloader.Feed(m.Offset, st.size, m.Data, last); err != nil {
		c.log.Errorf("orchestrator: upload chunk for %s: %v", m.Path, err)
		c.Files.FailTransfer(st.transferID, err.Error())
		return
	}
	c.Files.UpdateProgress(st.transferID, st.downloader.Received(), time.Now())
}

func (c *Core) handleFileUploadComplete(peerID string, m wire.FileUploadComplete) {
	c.mu.Lock()
	st, ok := c.uploads[m.Path]
	delete(c.uploads, m.Path)
	c.mu.Unlock()
	if !ok {
		c.log.Errorf("orchestrator: upload complete for unknown transfer %s from %s", m.Path, peerID)
		return
	}
	c.Files.UpdateProgress(st.transferID, st.size, time.Now())
	c.log.Infof("orchestrator: upload of %s from %s complete (%d bytes, checksum %x)", m.Path, peerID, st.downloader.Received(), m.Checksum)
}

func (c *Core) uploadState(filePath string) *uploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploads[filePath]
}

// StartDownload requests path from peerID and primes the download window.
func (c *Core) StartDownload(peerID, filePath string, chunkSize int64) error {
	return c.SendToPeer(peerID, transport.ChannelFiles, wire.FileDownloadRequest{Path: filePath, Offset: 0, ChunkSize: chunkSize})
}

// handleFileDownloadRequest serves a file to a peer that asked for it,
// pacing chunks at downloadChunkRate. Tracked under a filestore.Transfer
// record from our (serving) side.
func (c *Core) handleFileDownloadRequest(peerID string, m wire.FileDownloadRequest) {
	if c.fileSource == nil {
		c.log.Errorf("orchestrator: download request for %s from %s rejected: no file source configured", m.Path, peerID)
		return
	}
	src, size, err := c.fileSource(m.Path)
	if err != nil {
		c.log.Errorf("orchestrator: open download source %s: %v", m.Path, err)
		return
	}

	transferID := uuid.NewString()
	c.Files.CreateTransfer(transferID, m.Path, path.Base(m.Path), filestore.DirectionUpload, size, time.Now())
	c.Files.StartTransfer(transferID)

	chunkSize := int(m.ChunkSize)
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	up := fileengine.NewUploader(m.Path, size, src, chunkSize, downloadChunkRate)

	go func() {
		ctx := context.Background()
		for !up.Done() {
			chunk, err := up.NextChunk(ctx)
			if err != nil {
				c.log.Errorf("orchestrator: produce download chunk for %s: %v", m.Path, err)
				c.Files.FailTransfer(transferID, err.Error())
				return
			}
			msg := wire.FileDownloadChunk{Path: m.Path, Offset: chunk.Offset, TotalSize: size, Data: chunk.Data, IsLast: chunk.Last}
			if err := c.SendToPeer(peerID, transport.ChannelFiles, msg); err != nil {
				c.log.Errorf("orchestrator: send download chunk for %s: %v", m.Path, err)
				c.Files.FailTransfer(transferID, err.Error())
				return
			}
			c.Files.UpdateProgress(transferID, chunk.Offset+int64(len(chunk.Data)), time.Now())
		}
	}()
}

// handleFileDownloadChunk reassembles chunks for a download we initiated,
// lazily opening the sink on the first chunk (which is always offset 0) and
// driving the filestore.Transfer record created by onFileIntent or, absent
// one (a download started outside the store's intent path), one created
// here on demand.
func (c *Core) handleFileDownloadChunk(peerID string, m wire.FileDownloadChunk) {
	st := c.downloadStateFor(m.Path)
	if st == nil || st.downloader == nil {
		if c.fileSink == nil {
			c.log.Errorf("orchestrator: download chunk for %s from %s rejected: no file sink configured", m.Path, peerID)
			return
		}
		dst, err := c.fileSink(m.Path, m.TotalSize)
		if err != nil {
			c.log.Errorf("orchestrator: open download sink %s: %v", m.Path, err)
			return
		}

		transferID := ""
		if st != nil {
			transferID = st.transferID
		}
		if transferID == "" {
			transferID = uuid.NewString()
			c.Files.CreateTransfer(transferID, m.Path, path.Base(m.Path), filestore.DirectionDownload, m.TotalSize, time.Now())
		}
		c.Files.StartTransfer(transferID)

		st = &downloadState{downloader: fileengine.NewDownloader(dst, defaultChunkSize), transferID: transferID}
		c.mu.Lock()
		c.downloads[m.Path] = st
		c.mu.Unlock()
	}

	if err := c.Files.ReceiveChunk(st.transferID, m.Offset, m.TotalSize, m.Data, m.IsLast, time.Now()); err != nil {
		c.log.Errorf("orchestrator: receive chunk for %s: %v", m.Path, err)
	}

	done, err := st.downloader.Feed(m.Offset, m.TotalSize, m.Data, m.IsLast)
	if err != nil {
		c.log.Errorf("orchestrator: download chunk for %s: %v", m.Path, err)
		return
	}
	if done {
		c.mu.Lock()
		delete(c.downloads, m.Path)
		c.mu.Unlock()
		return
	}

	// Non-last chunk: pull the next window (spec §4.9 "File download
	// pipeline", scenario S4 — one outbound FileDownloadRequest per inbound
	// non-final chunk).
	offset, size, ok := st.downloader.NextRequest()
	if !ok {
		return
	}
	next := wire.FileDownloadRequest{Path: m.Path, Offset: offset, ChunkSize: size}
	if err := c.SendToPeer(peerID, transport.ChannelFiles, next); err != nil {
		c.log.Errorf("orchestrator: request next download window for %s: %v", m.Path, err)
	}
}

func (c *Core) downloadStateFor(filePath string) *downloadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.downloads[filePath]
}
