package wire

import "fmt"

// Stream discriminates which tty descriptor a SessionData payload carries.
// Encoded on the wire as a small integer; unknown values are a decode
// error, never silently coerced to a default (spec §4.1).
type Stream int

const (
	StreamStdin Stream = iota
	StreamStdout
	StreamStderr
)

func (s Stream) String() string {
	switch s {
	case StreamStdin:
		return "Stdin"
	case StreamStdout:
		return "Stdout"
	case StreamStderr:
		return "Stderr"
	default:
		return fmt.Sprintf("Stream(%d)", int(s))
	}
}

func streamFromInt(n int64) (Stream, error) {
	switch Stream(n) {
	case StreamStdin, StreamStdout, StreamStderr:
		return Stream(n), nil
	default:
		return 0, fmt.Errorf("wire: unknown stream %d", n)
	}
}

// EntryType discriminates a file entry's kind. Same strict-decode
// discipline as Stream.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDirectory
	EntrySymlink
	EntryUnknown
)

func (t EntryType) String() string {
	switch t {
	case EntryFile:
		return "file"
	case EntryDirectory:
		return "directory"
	case EntrySymlink:
		return "symlink"
	case EntryUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("EntryType(%d)", int(t))
	}
}

func entryTypeFromInt(n int64) (EntryType, error) {
	switch EntryType(n) {
	case EntryFile, EntryDirectory, EntrySymlink, EntryUnknown:
		return EntryType(n), nil
	default:
		return 0, fmt.Errorf("wire: unknown entry type %d", n)
	}
}
