// Package filestore holds the remote directory browser state (current
// path, cached listings, selection, sort/filter preferences) and the set of
// in-flight file transfer records, per spec §4.6.
package filestore

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/moukrea/remoshell-sub000/internal/corelog"
	"github.com/moukrea/remoshell-sub000/internal/events"
)

type EntryType int

const (
	EntryFile EntryType = iota
	EntryDirectory
	EntrySymlink
	EntryUnknown
)

// Entry is one directory listing row.
type Entry struct {
	Name     string
	Type     EntryType
	Size     int64
	Mode     uint32
	Modified int64
}

// IsHidden reports whether Name begins with a leading dot (spec §3.3).
func (e Entry) IsHidden() bool {
	return strings.HasPrefix(e.Name, ".")
}

// Permissions decodes the owner triad from Mode's 0o400/0o200/0o100 bits
// (spec §4.9.6).
func (e Entry) Permissions() (read, write, execute bool) {
	return e.Mode&0o400 != 0, e.Mode&0o200 != 0, e.Mode&0o100 != 0
}

// SortKey selects the secondary sort field after the directories-first split.
type SortKey int

const (
	SortByName SortKey = iota
	SortBySize
	SortByModified
	SortByType
)

// TransferDirection distinguishes client->daemon uploads from daemon->client
// downloads (spec §3.3).
type TransferDirection int

const (
	DirectionUpload TransferDirection = iota
	DirectionDownload
)

// TransferStatus is the transfer record lifecycle (spec §3.3). Completed,
// Failed, and Cancelled are sticky terminal states.
type TransferStatus int

const (
	TransferPending TransferStatus = iota
	TransferInProgress
	TransferCompleted
	TransferFailed
	TransferCancelled
)

func (s TransferStatus) terminal() bool {
	return s == TransferCompleted || s == TransferFailed || s == TransferCancelled
}

// Transfer is a copy-out snapshot of one transfer record.
type Transfer struct {
	ID               string
	FileName         string
	FilePath         string
	Direction        TransferDirection
	Status           TransferStatus
	TotalBytes       int64
	TransferredBytes int64
	StartedAt        time.Time
	CompletedAt      *time.Time
	Error            *string
}

type EventKind int

const (
	EventListingUpdated EventKind = iota
	EventListingCleared
	EventNavigateIntent // "files:navigate|refresh" write event, consumed by the orchestrator
	EventSelectionChanged
	EventSortChanged
	EventShowHiddenChanged
	EventLoadingChanged
	EventErrorChanged
	EventTransferCreated
	EventTransferProgress
	EventTransferCompleted
	EventTransferFailed
	EventTransferCancelled
	EventDownloadIntent // "files:download" write event, consumed by the orchestrator
)

type Event struct {
	Kind       EventKind
	Path       string
	Entries    []Entry
	Selected   []string
	Transfer   Transfer
	Loading    bool
	ShowHidden bool
	Error      *string
}

// Store is the mutex-guarded directory browser plus transfer-record set.
type Store struct {
	log corelog.Logger
	bus *events.Bus[Event]
	col *collate.Collator

	mu            sync.Mutex
	currentPath   string
	listings      map[string][]Entry // cached, unfiltered raw entries per path
	selected      map[string]bool
	transfers     map[string]Transfer
	isLoading     bool
	lastError     *string
	sortBy        SortKey
	sortAscending bool
	showHidden    bool
}

func New(log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	return &Store{
		log:           log,
		bus:           events.New[Event](log),
		col:           collate.New(language.Und, collate.IgnoreCase),
		listings:      make(map[string][]Entry),
		selected:      make(map[string]bool),
		transfers:     make(map[string]Transfer),
		sortAscending: true,
	}
}

func (s *Store) Subscribe(h events.Handler[Event]) events.Unsubscribe {
	return s.bus.Subscribe(h)
}

// ---- navigation ----

// Navigate sets current_path, marks the store loading, clears the prior
// error, clears selection, and emits EventNavigateIntent for the
// orchestrator to turn into an outbound FileListRequest (spec §4.9.6).
func (s *Store) Navigate(path string) {
	s.mu.Lock()
	s.currentPath = path
	s.isLoading = true
	s.lastError = nil
	s.selected = make(map[string]bool)
	hidden := s.showHidden
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventLoadingChanged, Path: path, Loading: true})
	s.bus.Emit(Event{Kind: EventNavigateIntent, Path: path, ShowHidden: hidden})
}

// Refresh re-requests the current path's listing.
func (s *Store) Refresh() {
	s.mu.Lock()
	path := s.currentPath
	hidden := s.showHidden
	s.isLoading = true
	s.mu.Unlock()

	if path == "" {
		return
	}
	s.bus.Emit(Event{Kind: EventLoadingChanged, Path: path, Loading: true})
	s.bus.Emit(Event{Kind: EventNavigateIntent, Path: path, ShowHidden: hidden})
}

func (s *Store) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPath
}

func (s *Store) ShowHidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showHidden
}

// ToggleHidden flips show_hidden and re-derives the cached listing view.
func (s *Store) ToggleHidden() {
	s.mu.Lock()
	s.showHidden = !s.showHidden
	path := s.currentPath
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventShowHiddenChanged})
	if entries, ok := s.Listing(path); ok {
		s.bus.Emit(Event{Kind: EventListingUpdated, Path: path, Entries: entries})
	}
}

// SetSort changes the sort key/direction and re-emits the current path's
// listing sorted accordingly.
func (s *Store) SetSort(key SortKey, ascending bool) {
	s.mu.Lock()
	s.sortBy = key
	s.sortAscending = ascending
	path := s.currentPath
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventSortChanged})
	if entries, ok := s.Listing(path); ok {
		s.bus.Emit(Event{Kind: EventListingUpdated, Path: path, Entries: entries})
	}
}

// ---- listing cache ----

// SetListing replaces the cached raw entries for path (sorting and hidden
// filtering are applied on read, since show_hidden/sort can change without a
// fresh fetch). Clears is_loading and any prior error for that path.
func (s *Store) SetListing(path string, entries []Entry) {
	raw := make([]Entry, len(entries))
	copy(raw, entries)

	s.mu.Lock()
	s.listings[path] = raw
	if path == s.currentPath {
		s.isLoading = false
		s.lastError = nil
	}
	s.mu.Unlock()

	sorted, _ := s.Listing(path)
	s.bus.Emit(Event{Kind: EventListingUpdated, Path: path, Entries: sorted})
}

// Clear drops a cached listing, typically when the path no longer exists.
func (s *Store) Clear(path string) {
	s.mu.Lock()
	_, ok := s.listings[path]
	delete(s.listings, path)
	s.mu.Unlock()
	if ok {
		s.bus.Emit(Event{Kind: EventListingCleared, Path: path})
	}
}

// Listing returns a copy of path's cached entries, with the hidden filter
// applied before sorting (spec §4.6).
func (s *Store) Listing(path string) ([]Entry, bool) {
	s.mu.Lock()
	raw, ok := s.listings[path]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	showHidden := s.showHidden
	sortBy := s.sortBy
	ascending := s.sortAscending
	col := s.col
	s.mu.Unlock()

	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if showHidden || !e.IsHidden() {
			out = append(out, e)
		}
	}
	sortEntries(out, sortBy, ascending, col)
	return out, true
}

func sortEntries(entries []Entry, key SortKey, ascending bool, col *collate.Collator) {
	less := func(a, b Entry) bool {
		aDir := a.Type == EntryDirectory
		bDir := b.Type == EntryDirectory
		if aDir != bDir {
			return aDir
		}
		var cmp int
		switch key {
		case SortBySize:
			cmp = compareInt64(a.Size, b.Size)
		case SortByModified:
			cmp = compareInt64(a.Modified, b.Modified)
		case SortByType:
			cmp = compareInt64(int64(a.Type), int64(b.Type))
		default:
			cmp = col.CompareString(a.Name, b.Name)
		}
		if cmp == 0 {
			cmp = col.CompareString(a.Name, b.Name)
		}
		if !ascending {
			cmp = -cmp
		}
		return cmp < 0
	}
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && less(entries[j], entries[j-1]) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ---- selection ----

func (s *Store) Select(path string) {
	s.mu.Lock()
	s.selected[path] = true
	out := s.selectedPathsLocked()
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventSelectionChanged, Selected: out})
}

func (s *Store) Deselect(path string) {
	s.mu.Lock()
	delete(s.selected, path)
	out := s.selectedPathsLocked()
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventSelectionChanged, Selected: out})
}

// SelectAll selects every entry currently listed at path.
func (s *Store) SelectAll(path string) {
	entries, ok := s.Listing(path)
	if !ok {
		return
	}
	s.mu.Lock()
	for _, e := range entries {
		s.selected[joinPath(path, e.Name)] = true
	}
	out := s.selectedPathsLocked()
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventSelectionChanged, Selected: out})
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = make(map[string]bool)
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventSelectionChanged, Selected: nil})
}

func (s *Store) SelectedPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPathsLocked()
}

func (s *Store) selectedPathsLocked() []string {
	out := make([]string, 0, len(s.selected))
	for p := range s.selected {
		out = append(out, p)
	}
	return out
}

// joinPath composes a server-side path from a directory and entry name,
// collapsing a doubled slash (spec §4.9.6).
func joinPath(dir, name string) string {
	joined := dir + "/" + name
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	return joined
}

// JoinPath exposes joinPath for callers composing entry paths outside this
// package.
func JoinPath(dir, name string) string { return joinPath(dir, name) }

// ---- error / loading ----

func (s *Store) SetError(msg string) {
	s.mu.Lock()
	m := msg
	s.lastError = &m
	s.isLoading = false
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventErrorChanged, Error: &m})
}

func (s *Store) Error() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isLoading
}

// ---- transfers ----

// CreateTransfer registers a new pending transfer record.
func (s *Store) CreateTransfer(id, filePath, fileName string, direction TransferDirection, totalBytes int64, now time.Time) Transfer {
	t := Transfer{
		ID: id, FileName: fileName, FilePath: filePath, Direction: direction,
		Status: TransferPending, TotalBytes: totalBytes, StartedAt: now,
	}
	s.mu.Lock()
	s.transfers[id] = t
	s.mu.Unlock()

	s.bus.Emit(Event{Kind: EventTransferCreated, Transfer: t})
	return t
}

// StartTransfer moves a pending transfer to in_progress.
func (s *Store) StartTransfer(id string) bool {
	s.mu.Lock()
	t, ok := s.transfers[id]
	if !ok || t.Status.terminal() {
		s.mu.Unlock()
		return false
	}
	t.Status = TransferInProgress
	s.transfers[id] = t
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventTransferProgress, Transfer: t})
	return true
}

// UpdateProgress sets transferred_bytes for id, clamped to total_bytes
// (spec §3.3 invariant), and auto-completes when it reaches total.
func (s *Store) UpdateProgress(id string, transferredBytes int64, now time.Time) bool {
	s.mu.Lock()
	t, ok := s.transfers[id]
	if !ok || t.Status.terminal() {
		s.mu.Unlock()
		return false
	}
	if transferredBytes > t.TotalBytes {
		transferredBytes = t.TotalBytes
	}
	t.TransferredBytes = transferredBytes
	t.Status = TransferInProgress
	done := t.TotalBytes > 0 && t.TransferredBytes >= t.TotalBytes
	if done {
		t.Status = TransferCompleted
		completedAt := now
		t.CompletedAt = &completedAt
	}
	s.transfers[id] = t
	s.mu.Unlock()

	if done {
		s.bus.Emit(Event{Kind: EventTransferCompleted, Transfer: t})
	} else {
		s.bus.Emit(Event{Kind: EventTransferProgress, Transfer: t})
	}
	return true
}

// ReceiveChunk is the download ingress called by the orchestrator (spec
// §4.6): it asserts offset equals cumulative bytes received so far, updates
// transferred_bytes, and finalizes on is_last.
func (s *Store) ReceiveChunk(id string, offset, total int64, data []byte, isLast bool, now time.Time) error {
	s.mu.Lock()
	t, ok := s.transfers[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("filestore: receive chunk for unknown transfer %s", id)
	}
	if t.Status.terminal() {
		s.mu.Unlock()
		return nil // in-flight chunk arriving after cancel/fail: ignored, not an error
	}
	if offset != t.TransferredBytes {
		t.Status = TransferFailed
		reason := fmt.Sprintf("non-monotonic chunk offset: expected %d, got %d", t.TransferredBytes, offset)
		t.Error = &reason
		s.transfers[id] = t
		s.mu.Unlock()
		s.bus.Emit(Event{Kind: EventTransferFailed, Transfer: t})
		return fmt.Errorf("filestore: %s", reason)
	}
	if total > 0 {
		t.TotalBytes = total
	}
	t.TransferredBytes += int64(len(data))
	t.Status = TransferInProgress
	if isLast {
		t.Status = TransferCompleted
		completedAt := now
		t.CompletedAt = &completedAt
	}
	s.transfers[id] = t
	s.mu.Unlock()

	if isLast {
		s.bus.Emit(Event{Kind: EventTransferCompleted, Transfer: t})
	} else {
		s.bus.Emit(Event{Kind: EventTransferProgress, Transfer: t})
	}
	return nil
}

// FailTransfer moves a transfer to failed with reason. No-op if already terminal.
func (s *Store) FailTransfer(id, reason string) bool {
	s.mu.Lock()
	t, ok := s.transfers[id]
	if !ok || t.Status.terminal() {
		s.mu.Unlock()
		return false
	}
	t.Status = TransferFailed
	r := reason
	t.Error = &r
	s.transfers[id] = t
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventTransferFailed, Transfer: t})
	return true
}

// FailTransferByPath fails the most recent non-terminal transfer for path,
// used when an inbound wire Error carries a path context (spec §4.9.6).
func (s *Store) FailTransferByPath(path, reason string) bool {
	s.mu.Lock()
	var id string
	var latest time.Time
	for tid, t := range s.transfers {
		if t.FilePath == path && !t.Status.terminal() && !t.StartedAt.Before(latest) {
			id, latest = tid, t.StartedAt
		}
	}
	s.mu.Unlock()
	if id == "" {
		return false
	}
	return s.FailTransfer(id, reason)
}

// CancelTransfer moves a transfer to cancelled. A cancel on an already
// terminal transfer (including completed) is a no-op — terminal states are
// sticky (spec §3.3).
func (s *Store) CancelTransfer(id string) bool {
	s.mu.Lock()
	t, ok := s.transfers[id]
	if !ok || t.Status.terminal() {
		s.mu.Unlock()
		return false
	}
	t.Status = TransferCancelled
	s.transfers[id] = t
	s.mu.Unlock()
	s.bus.Emit(Event{Kind: EventTransferCancelled, Transfer: t})
	return true
}

// RequestDownload emits EventDownloadIntent ("files:download(path,
// transfer_id)") for the orchestrator to turn into the initial
// FileDownloadRequest (spec §4.9 File download pipeline).
func (s *Store) RequestDownload(id, path string) {
	s.bus.Emit(Event{Kind: EventDownloadIntent, Path: path, Transfer: Transfer{ID: id, FilePath: path}})
}

func (s *Store) Transfer(id string) (Transfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[id]
	return t, ok
}

func (s *Store) Transfers() []Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transfer, 0, len(s.transfers))
	for _, t := range s.transfers {
		out = append(out, t)
	}
	return out
}
