package filestore

import (
	"testing"
	"time"
)

func TestSetListingSortsDirectoriesFirst(t *testing.T) {
	s := New(nil)
	s.SetListing("/home", []Entry{
		{Name: "zebra.txt", Type: EntryFile},
		{Name: "Apps", Type: EntryDirectory},
		{Name: "bin", Type: EntryDirectory},
		{Name: "alpha.txt", Type: EntryFile},
	})

	got, ok := s.Listing("/home")
	if !ok {
		t.Fatal("expected listing present")
	}
	want := []string{"Apps", "bin", "alpha.txt", "zebra.txt"}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("position %d: want %q, got %q (full: %v)", i, w, got[i].Name, got)
		}
	}
}

func TestSetListingCaseInsensitiveAmongSameType(t *testing.T) {
	s := New(nil)
	s.SetListing("/x", []Entry{
		{Name: "Banana", Type: EntryFile},
		{Name: "apple", Type: EntryFile},
		{Name: "Cherry", Type: EntryFile},
	})

	got, _ := s.Listing("/x")
	want := []string{"apple", "Banana", "Cherry"}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("position %d: want %q, got %q", i, w, got[i].Name)
		}
	}
}

func TestListingReturnsCopyNotAlias(t *testing.T) {
	s := New(nil)
	s.SetListing("/x", []Entry{{Name: "a", Type: EntryFile}})

	got, _ := s.Listing("/x")
	got[0].Name = "mutated"

	again, _ := s.Listing("/x")
	if again[0].Name != "a" {
		t.Fatal("mutating the returned slice must not affect the store")
	}
}

func TestClearRemovesListing(t *testing.T) {
	s := New(nil)
	s.SetListing("/x", []Entry{{Name: "a", Type: EntryFile}})
	s.Clear("/x")

	if _, ok := s.Listing("/x"); ok {
		t.Fatal("expected listing cleared")
	}
}

func TestUnknownPathMissing(t *testing.T) {
	s := New(nil)
	if _, ok := s.Listing("/nope"); ok {
		t.Fatal("expected unknown path to report missing")
	}
}

func TestHiddenEntriesFilteredUntilShown(t *testing.T) {
	s := New(nil)
	s.SetListing("/x", []Entry{
		{Name: "visible.txt", Type: EntryFile},
		{Name: ".hidden", Type: EntryFile},
	})

	got, _ := s.Listing("/x")
	if len(got) != 1 || got[0].Name != "visible.txt" {
		t.Fatalf("expected hidden entry filtered by default, got %v", got)
	}

	s.ToggleHidden()
	got, _ = s.Listing("/x")
	if len(got) != 2 {
		t.Fatalf("expected hidden entry shown after toggle, got %v", got)
	}
}

func TestNavigateEmitsIntentAndLoading(t *testing.T) {
	s := New(nil)
	var got []Event
	s.Subscribe(func(e Event) { got = append(got, e) })

	s.Navigate("/home")

	if !s.IsLoading() {
		t.Fatal("expected loading after Navigate")
	}
	if s.CurrentPath() != "/home" {
		t.Fatalf("expected current path /home, got %q", s.CurrentPath())
	}

	var sawIntent bool
	for _, e := range got {
		if e.Kind == EventNavigateIntent && e.Path == "/home" {
			sawIntent = true
		}
	}
	if !sawIntent {
		t.Fatal("expected EventNavigateIntent for /home")
	}

	s.SetListing("/home", []Entry{{Name: "a", Type: EntryFile}})
	if s.IsLoading() {
		t.Fatal("expected loading cleared once the listing for the current path arrives")
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	s := New(nil)
	s.Select("/x/a")
	s.Select("/x/b")
	if got := s.SelectedPaths(); len(got) != 2 {
		t.Fatalf("expected 2 selected paths, got %v", got)
	}
	s.Deselect("/x/a")
	if got := s.SelectedPaths(); len(got) != 1 || got[0] != "/x/b" {
		t.Fatalf("expected only /x/b selected, got %v", got)
	}
	s.ClearSelection()
	if got := s.SelectedPaths(); len(got) != 0 {
		t.Fatalf("expected selection cleared, got %v", got)
	}
}

func TestTransferProgressClampsAndCompletes(t *testing.T) {
	s := New(nil)
	now := time.Unix(1000, 0)
	s.CreateTransfer("t1", "/x/file.bin", "file.bin", DirectionUpload, 100, now)
	s.StartTransfer("t1")

	s.UpdateProgress("t1", 50, now)
	tr, _ := s.Transfer("t1")
	if tr.Status != TransferInProgress || tr.TransferredBytes != 50 {
		t.Fatalf("expected in-progress at 50 bytes, got %+v", tr)
	}

	s.UpdateProgress("t1", 500, now)
	tr, _ = s.Transfer("t1")
	if tr.TransferredBytes != tr.TotalBytes {
		t.Fatalf("expected transferred_bytes clamped to total_bytes, got %+v", tr)
	}
	if tr.Status != TransferCompleted {
		t.Fatalf("expected transfer auto-completed, got %v", tr.Status)
	}

	if s.CancelTransfer("t1") {
		t.Fatal("expected cancel on a completed transfer to be a no-op")
	}
	tr, _ = s.Transfer("t1")
	if tr.Status != TransferCompleted {
		t.Fatal("expected completed status to remain sticky after a no-op cancel")
	}
}

func TestReceiveChunkRejectsNonMonotonicOffset(t *testing.T) {
	s := New(nil)
	now := time.Unix(2000, 0)
	s.CreateTransfer("d1", "/x/file.bin", "file.bin", DirectionDownload, 10, now)
	s.StartTransfer("d1")

	if err := s.ReceiveChunk("d1", 0, 10, []byte("hello"), false, now); err != nil {
		t.Fatalf("expected first chunk at offset 0 to succeed, got %v", err)
	}
	if err := s.ReceiveChunk("d1", 2, 10, []byte("xx"), false, now); err == nil {
		t.Fatal("expected non-monotonic offset to be rejected")
	}

	tr, _ := s.Transfer("d1")
	if tr.Status != TransferFailed {
		t.Fatalf("expected transfer failed after bad offset, got %v", tr.Status)
	}
}

func TestReceiveChunkCompletesOnLast(t *testing.T) {
	s := New(nil)
	now := time.Unix(3000, 0)
	s.CreateTransfer("d2", "/x/small.bin", "small.bin", DirectionDownload, 5, now)
	s.StartTransfer("d2")

	if err := s.ReceiveChunk("d2", 0, 5, []byte("hello"), true, now); err != nil {
		t.Fatalf("expected last chunk to succeed, got %v", err)
	}
	tr, _ := s.Transfer("d2")
	if tr.Status != TransferCompleted || tr.TransferredBytes != tr.TotalBytes {
		t.Fatalf("expected completed with transferred_bytes = total_bytes, got %+v", tr)
	}
}

func TestFailTransferByPathTargetsLatestNonTerminal(t *testing.T) {
	s := New(nil)
	now := time.Unix(4000, 0)
	s.CreateTransfer("u1", "/x/a.bin", "a.bin", DirectionUpload, 100, now)

	if !s.FailTransferByPath("/x/a.bin", "peer reported write error") {
		t.Fatal("expected a matching non-terminal transfer to be failed")
	}
	tr, _ := s.Transfer("u1")
	if tr.Status != TransferFailed || tr.Error == nil {
		t.Fatalf("expected failed transfer with error set, got %+v", tr)
	}

	if s.FailTransferByPath("/x/a.bin", "again") {
		t.Fatal("expected no matching non-terminal transfer the second time")
	}
}
