package wire

// Message is the tagged-union payload of an Envelope. Each concrete type
// knows its own wire tag and its fixed field order; field order, not field
// name, is the contract (spec §4.1).
type Message interface {
	Tag() string
	fields() []interface{}
}

type decoder func(fields []interface{}) (Message, error)

var registry = map[string]decoder{}

func register(tag string, d decoder) { registry[tag] = d }

// ---- session lifecycle ----

type SessionCreate struct {
	Cols  int
	Rows  int
	Shell *string
	Env   [][2]string
	Cwd   *string
}

func (SessionCreate) Tag() string { return "SessionCreate" }
func (m SessionCreate) fields() []interface{} {
	return []interface{}{int64(m.Cols), int64(m.Rows), optStringField(m.Shell), kvPairsField(m.Env), optStringField(m.Cwd)}
}

func init() {
	register("SessionCreate", func(f []interface{}) (Message, error) {
		if len(f) != 5 {
			return nil, fieldCountErr(5)
		}
		cols, ok := asInt64(f[0])
		rows, ok2 := asInt64(f[1])
		shell, ok3 := asOptString(f[2])
		env, err := asKVPairs(f[3])
		cwd, ok4 := asOptString(f[4])
		if !ok || !ok2 || !ok3 || !ok4 || err != nil {
			return nil, fieldTypeErr()
		}
		return SessionCreate{Cols: int(cols), Rows: int(rows), Shell: shell, Env: env, Cwd: cwd}, nil
	})
}

type SessionCreated struct {
	SessionID string
	PID       int64
}

func (SessionCreated) Tag() string { return "SessionCreated" }
func (m SessionCreated) fields() []interface{} {
	return []interface{}{m.SessionID, m.PID}
}

func init() {
	register("SessionCreated", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		id, ok1 := asString(f[0])
		pid, ok2 := asInt64(f[1])
		if !ok1 || !ok2 {
			return nil, fieldTypeErr()
		}
		return SessionCreated{SessionID: id, PID: pid}, nil
	})
}

type SessionAttach struct{ SessionID string }

func (SessionAttach) Tag() string              { return "SessionAttach" }
func (m SessionAttach) fields() []interface{} { return []interface{}{m.SessionID} }

func init() {
	register("SessionAttach", func(f []interface{}) (Message, error) {
		if len(f) != 1 {
			return nil, fieldCountErr(1)
		}
		id, ok := asString(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		return SessionAttach{SessionID: id}, nil
	})
}

type SessionDetach struct{ SessionID string }

func (SessionDetach) Tag() string              { return "SessionDetach" }
func (m SessionDetach) fields() []interface{} { return []interface{}{m.SessionID} }

func init() {
	register("SessionDetach", func(f []interface{}) (Message, error) {
		if len(f) != 1 {
			return nil, fieldCountErr(1)
		}
		id, ok := asString(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		return SessionDetach{SessionID: id}, nil
	})
}

type SessionKill struct {
	SessionID string
	Signal    *string
}

func (SessionKill) Tag() string { return "SessionKill" }
func (m SessionKill) fields() []interface{} {
	return []interface{}{m.SessionID, optStringField(m.Signal)}
}

func init() {
	register("SessionKill", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		id, ok := asString(f[0])
		sig, ok2 := asOptString(f[1])
		if !ok || !ok2 {
			return nil, fieldTypeErr()
		}
		return SessionKill{SessionID: id, Signal: sig}, nil
	})
}

type SessionResize struct {
	SessionID string
	Cols      int
	Rows      int
}

func (SessionResize) Tag() string { return "SessionResize" }
func (m SessionResize) fields() []interface{} {
	return []interface{}{m.SessionID, int64(m.Cols), int64(m.Rows)}
}

func init() {
	register("SessionResize", func(f []interface{}) (Message, error) {
		if len(f) != 3 {
			return nil, fieldCountErr(3)
		}
		id, ok := asString(f[0])
		cols, ok2 := asInt64(f[1])
		rows, ok3 := asInt64(f[2])
		if !ok || !ok2 || !ok3 {
			return nil, fieldTypeErr()
		}
		return SessionResize{SessionID: id, Cols: int(cols), Rows: int(rows)}, nil
	})
}

type SessionData struct {
	SessionID string
	Stream    Stream
	Data      []byte
}

func (SessionData) Tag() string { return "SessionData" }
func (m SessionData) fields() []interface{} {
	return []interface{}{m.SessionID, int64(m.Stream), m.Data}
}

func init() {
	register("SessionData", func(f []interface{}) (Message, error) {
		if len(f) != 3 {
			return nil, fieldCountErr(3)
		}
		id, ok := asString(f[0])
		streamInt, ok2 := asInt64(f[1])
		data, ok3 := asBytes(f[2])
		if !ok || !ok2 || !ok3 {
			return nil, fieldTypeErr()
		}
		stream, err := streamFromInt(streamInt)
		if err != nil {
			return nil, err
		}
		return SessionData{SessionID: id, Stream: stream, Data: data}, nil
	})
}

type SessionClosed struct {
	SessionID string
	ExitCode  *int64
	Signal    *string
	Reason    *string
}

func (SessionClosed) Tag() string { return "SessionClosed" }
func (m SessionClosed) fields() []interface{} {
	return []interface{}{m.SessionID, optInt64Field(m.ExitCode), optStringField(m.Signal), optStringField(m.Reason)}
}

func init() {
	register("SessionClosed", func(f []interface{}) (Message, error) {
		if len(f) != 4 {
			return nil, fieldCountErr(4)
		}
		id, ok := asString(f[0])
		exit, ok2 := asOptInt64(f[1])
		sig, ok3 := asOptString(f[2])
		reason, ok4 := asOptString(f[3])
		if !ok || !ok2 || !ok3 || !ok4 {
			return nil, fieldTypeErr()
		}
		return SessionClosed{SessionID: id, ExitCode: exit, Signal: sig, Reason: reason}, nil
	})
}

// ---- files ----

type FileListRequest struct {
	Path          string
	IncludeHidden bool
}

func (FileListRequest) Tag() string { return "FileListRequest" }
func (m FileListRequest) fields() []interface{} {
	return []interface{}{m.Path, m.IncludeHidden}
}

func init() {
	register("FileListRequest", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		path, ok := asString(f[0])
		hidden, ok2 := asBool(f[1])
		if !ok || !ok2 {
			return nil, fieldTypeErr()
		}
		return FileListRequest{Path: path, IncludeHidden: hidden}, nil
	})
}

// FileEntryWire is the wire shape of one directory entry, field order
// (name, entry_type, size, mode, modified) per spec §4.1.
type FileEntryWire struct {
	Name     string
	Type     EntryType
	Size     int64
	Mode     uint32
	Modified int64
}

type FileListResponse struct {
	Path    string
	Entries []FileEntryWire
}

func (FileListResponse) Tag() string { return "FileListResponse" }
func (m FileListResponse) fields() []interface{} {
	entries := make([]interface{}, len(m.Entries))
	for i, e := range m.Entries {
		entries[i] = []interface{}{e.Name, int64(e.Type), e.Size, int64(e.Mode), e.Modified}
	}
	return []interface{}{m.Path, entries}
}

func init() {
	register("FileListResponse", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		path, ok := asString(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		rawEntries, ok := asTupleSlice(f[1])
		if !ok {
			return nil, fieldTypeErr()
		}
		var entries []FileEntryWire
		for _, re := range rawEntries {
			tuple, ok := asTupleSlice(re)
			if !ok || len(tuple) != 5 {
				return nil, fieldTypeErr()
			}
			name, ok1 := asString(tuple[0])
			typInt, ok2 := asInt64(tuple[1])
			size, ok3 := asInt64(tuple[2])
			mode, ok4 := asUint32(tuple[3])
			modified, ok5 := asInt64(tuple[4])
			if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
				return nil, fieldTypeErr()
			}
			typ, err := entryTypeFromInt(typInt)
			if err != nil {
				return nil, err
			}
			entries = append(entries, FileEntryWire{Name: name, Type: typ, Size: size, Mode: mode, Modified: modified})
		}
		return FileListResponse{Path: path, Entries: entries}, nil
	})
}

type FileDownloadRequest struct {
	Path      string
	Offset    int64
	ChunkSize int64
}

func (FileDownloadRequest) Tag() string { return "FileDownloadRequest" }
func (m FileDownloadRequest) fields() []interface{} {
	return []interface{}{m.Path, m.Offset, m.ChunkSize}
}

func init() {
	register("FileDownloadRequest", func(f []interface{}) (Message, error) {
		if len(f) != 3 {
			return nil, fieldCountErr(3)
		}
		path, ok := asString(f[0])
		offset, ok2 := asInt64(f[1])
		chunk, ok3 := asInt64(f[2])
		if !ok || !ok2 || !ok3 {
			return nil, fieldTypeErr()
		}
		return FileDownloadRequest{Path: path, Offset: offset, ChunkSize: chunk}, nil
	})
}

type FileDownloadChunk struct {
	Path      string
	Offset    int64
	TotalSize int64
	Data      []byte
	IsLast    bool
}

func (FileDownloadChunk) Tag() string { return "FileDownloadChunk" }
func (m FileDownloadChunk) fields() []interface{} {
	return []interface{}{m.Path, m.Offset, m.TotalSize, m.Data, m.IsLast}
}

func init() {
	register("FileDownloadChunk", func(f []interface{}) (Message, error) {
		if len(f) != 5 {
			return nil, fieldCountErr(5)
		}
		path, ok := asString(f[0])
		offset, ok2 := asInt64(f[1])
		total, ok3 := asInt64(f[2])
		data, ok4 := asBytes(f[3])
		last, ok5 := asBool(f[4])
		if !ok || !ok2 || !ok3 || !ok4 || !ok5 {
			return nil, fieldTypeErr()
		}
		return FileDownloadChunk{Path: path, Offset: offset, TotalSize: total, Data: data, IsLast: last}, nil
	})
}

type FileUploadStart struct {
	Path      string
	Size      int64
	Mode      uint32
	Overwrite bool
}

func (FileUploadStart) Tag() string { return "FileUploadStart" }
func (m FileUploadStart) fields() []interface{} {
	return []interface{}{m.Path, m.Size, int64(m.Mode), m.Overwrite}
}

func init() {
	register("FileUploadStart", func(f []interface{}) (Message, error) {
		if len(f) != 4 {
			return nil, fieldCountErr(4)
		}
		path, ok := asString(f[0])
		size, ok2 := asInt64(f[1])
		mode, ok3 := asUint32(f[2])
		overwrite, ok4 := asBool(f[3])
		if !ok || !ok2 || !ok3 || !ok4 {
			return nil, fieldTypeErr()
		}
		return FileUploadStart{Path: path, Size: size, Mode: mode, Overwrite: overwrite}, nil
	})
}

type FileUploadChunk struct {
	Path   string
	Offset int64
	Data   []byte
}

func (FileUploadChunk) Tag() string { return "FileUploadChunk" }
func (m FileUploadChunk) fields() []interface{} {
	return []interface{}{m.Path, m.Offset, m.Data}
}

func init() {
	register("FileUploadChunk", func(f []interface{}) (Message, error) {
		if len(f) != 3 {
			return nil, fieldCountErr(3)
		}
		path, ok := asString(f[0])
		offset, ok2 := asInt64(f[1])
		data, ok3 := asBytes(f[2])
		if !ok || !ok2 || !ok3 {
			return nil, fieldTypeErr()
		}
		return FileUploadChunk{Path: path, Offset: offset, Data: data}, nil
	})
}

// FileUploadComplete.Checksum is always 32 bytes (SHA-256) per spec §4.1.
type FileUploadComplete struct {
	Path     string
	Checksum [32]byte
}

func (FileUploadComplete) Tag() string { return "FileUploadComplete" }
func (m FileUploadComplete) fields() []interface{} {
	return []interface{}{m.Path, m.Checksum[:]}
}

func init() {
	register("FileUploadComplete", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		path, ok := asString(f[0])
		sum, ok2 := asBytes(f[1])
		if !ok || !ok2 || len(sum) != 32 {
			return nil, fieldTypeErr()
		}
		var out FileUploadComplete
		out.Path = path
		copy(out.Checksum[:], sum)
		return out, nil
	})
}

// ---- device / control ----

type DeviceInfo struct {
	DeviceID string
	Name     string
	Platform string
}

func (DeviceInfo) Tag() string { return "DeviceInfo" }
func (m DeviceInfo) fields() []interface{} {
	return []interface{}{m.DeviceID, m.Name, m.Platform}
}

func init() {
	register("DeviceInfo", func(f []interface{}) (Message, error) {
		if len(f) != 3 {
			return nil, fieldCountErr(3)
		}
		id, ok := asString(f[0])
		name, ok2 := asString(f[1])
		platform, ok3 := asString(f[2])
		if !ok || !ok2 || !ok3 {
			return nil, fieldTypeErr()
		}
		return DeviceInfo{DeviceID: id, Name: name, Platform: platform}, nil
	})
}

type DeviceApprovalRequest struct {
	DeviceID string
	Name     string
}

func (DeviceApprovalRequest) Tag() string { return "DeviceApprovalRequest" }
func (m DeviceApprovalRequest) fields() []interface{} {
	return []interface{}{m.DeviceID, m.Name}
}

func init() {
	register("DeviceApprovalRequest", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		id, ok := asString(f[0])
		name, ok2 := asString(f[1])
		if !ok || !ok2 {
			return nil, fieldTypeErr()
		}
		return DeviceApprovalRequest{DeviceID: id, Name: name}, nil
	})
}

type DeviceApproved struct{ DeviceID string }

func (DeviceApproved) Tag() string              { return "DeviceApproved" }
func (m DeviceApproved) fields() []interface{} { return []interface{}{m.DeviceID} }

func init() {
	register("DeviceApproved", func(f []interface{}) (Message, error) {
		if len(f) != 1 {
			return nil, fieldCountErr(1)
		}
		id, ok := asString(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		return DeviceApproved{DeviceID: id}, nil
	})
}

type DeviceRejected struct {
	DeviceID string
	Reason   *string
}

func (DeviceRejected) Tag() string { return "DeviceRejected" }
func (m DeviceRejected) fields() []interface{} {
	return []interface{}{m.DeviceID, optStringField(m.Reason)}
}

func init() {
	register("DeviceRejected", func(f []interface{}) (Message, error) {
		if len(f) != 2 {
			return nil, fieldCountErr(2)
		}
		id, ok := asString(f[0])
		reason, ok2 := asOptString(f[1])
		if !ok || !ok2 {
			return nil, fieldTypeErr()
		}
		return DeviceRejected{DeviceID: id, Reason: reason}, nil
	})
}

type Ping struct{ Nonce int64 }

func (Ping) Tag() string              { return "Ping" }
func (m Ping) fields() []interface{} { return []interface{}{m.Nonce} }

func init() {
	register("Ping", func(f []interface{}) (Message, error) {
		if len(f) != 1 {
			return nil, fieldCountErr(1)
		}
		nonce, ok := asInt64(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		return Ping{Nonce: nonce}, nil
	})
}

type Pong struct{ Nonce int64 }

func (Pong) Tag() string              { return "Pong" }
func (m Pong) fields() []interface{} { return []interface{}{m.Nonce} }

func init() {
	register("Pong", func(f []interface{}) (Message, error) {
		if len(f) != 1 {
			return nil, fieldCountErr(1)
		}
		nonce, ok := asInt64(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		return Pong{Nonce: nonce}, nil
	})
}

type Capabilities struct{ Features []string }

func (Capabilities) Tag() string { return "Capabilities" }
func (m Capabilities) fields() []interface{} {
	features := make([]interface{}, len(m.Features))
	for i, f := range m.Features {
		features[i] = f
	}
	return []interface{}{features}
}

func init() {
	register("Capabilities", func(f []interface{}) (Message, error) {
		if len(f) != 1 {
			return nil, fieldCountErr(1)
		}
		raw, ok := asTupleSlice(f[0])
		if !ok {
			return nil, fieldTypeErr()
		}
		features := make([]string, 0, len(raw))
		for _, r := range raw {
			s, ok := asString(r)
			if !ok {
				return nil, fieldTypeErr()
			}
			features = append(features, s)
		}
		return Capabilities{Features: features}, nil
	})
}

// Error carries a protocol-level failure; Context, when present, names the
// resource (typically a file path) the error applies to, letting the
// orchestrator route it to the right transfer (spec §4.9).
type Error struct {
	Code        string
	Message     string
	Context     *string
	Recoverable bool
}

func (Error) Tag() string { return "Error" }
func (m Error) fields() []interface{} {
	return []interface{}{m.Code, m.Message, optStringField(m.Context), m.Recoverable}
}

func init() {
	register("Error", func(f []interface{}) (Message, error) {
		if len(f) != 4 {
			return nil, fieldCountErr(4)
		}
		code, ok := asString(f[0])
		message, ok2 := asString(f[1])
		context, ok3 := asOptString(f[2])
		recoverable, ok4 := asBool(f[3])
		if !ok || !ok2 || !ok3 || !ok4 {
			return nil, fieldTypeErr()
		}
		return Error{Code: code, Message: message, Context: context, Recoverable: recoverable}, nil
	})
}

func fieldTypeErr() error { return errTypeMismatch }

var errTypeMismatch = &typeMismatchSentinel{}

type typeMismatchSentinel struct{}

func (*typeMismatchSentinel) Error() string { return "wire: field type mismatch" }
