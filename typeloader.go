package nus

// TypeLoadConfig governs how a BinaryLoadable parses its source bytes.
type TypeLoadConfig struct {
	VerifyChecksums bool
}

// DefaultTypeLoadConfig enables checksum verification, matching the
// original's TypeLoadConfig default.
func DefaultTypeLoadConfig() TypeLoadConfig {
	return TypeLoadConfig{VerifyChecksums: true}
}

// TriState distinguishes "verify, warn if unset" (nil), "verify, require"
// (true) and "skip" (false).
type TriState = *bool

// TrueState and FalseState are convenience constructors for TriState
// values, since Go has no bool-literal-address syntax.
func TrueState() TriState {
	v := true
	return &v
}

func FalseState() TriState {
	v := false
	return &v
}

// NUSTypeLoadConfig extends TypeLoadConfig with signature-chain
// verification policy used by codec types that carry a certificate
// chain (Ticket, TMD).
type NUSTypeLoadConfig struct {
	TypeLoadConfig
	// VerifySignatures is nil: try to verify, warn if no root key is
	// configured; true: try to verify, error if no root key; false:
	// skip signature verification entirely.
	VerifySignatures TriState
	// RootKey anchors the certificate chain for types that carry one
	// (Ticket, TMD). Required when VerifySignatures is true or nil and
	// a chain is present.
	RootKey *RootKey
}

// DefaultNUSTypeLoadConfig mirrors the original's NUSTypeLoadConfig
// default of leaving VerifySignatures unset (warn-if-unconfigured).
func DefaultNUSTypeLoadConfig() NUSTypeLoadConfig {
	return NUSTypeLoadConfig{TypeLoadConfig: DefaultTypeLoadConfig()}
}

// BinaryLoadable is implemented by codec types that parse themselves out
// of a byte-chunk Reader (Ticket, TMD, FST, IDBE). Load may only be
// called once per instance; subsequent calls return AlreadyLoadedError.
type BinaryLoadable interface {
	Load(reader Reader, config NUSTypeLoadConfig) error
}

// LoadBytes is a convenience wrapper that loads a BinaryLoadable from an
// in-memory buffer using DefaultNUSTypeLoadConfig.
func LoadBytes(t BinaryLoadable, data []byte) error {
	return t.Load(newByteReader(data), DefaultNUSTypeLoadConfig())
}

// LoadGuard is embedded by BinaryLoadable implementations, in this
// package and others (notably codec), to provide the "loaded once"
// bookkeeping without repeating it in every codec type.
type LoadGuard struct {
	loaded bool
}

// Enter returns AlreadyLoadedError if the guard was already marked done;
// call Done once parsing has fully succeeded.
func (g *LoadGuard) Enter(typeName string) error {
	if g.loaded {
		return &AlreadyLoadedError{Type: typeName}
	}
	return nil
}

// Done marks the guard as loaded.
func (g *LoadGuard) Done() {
	g.loaded = true
}

// newByteReader adapts a plain byte slice to the Reader interface so
// BinaryLoadable.Load can be driven from in-memory data as well as a
// streamed RequestLayer response.
func newByteReader(data []byte) Reader {
	var offset int64
	consumed := false
	return &baseReader{
		size: int64(len(data)),
		readChunk: func() ([]byte, error) {
			if consumed {
				return nil, nil
			}
			consumed = true
			offset = int64(len(data))
			return data, nil
		},
		offset: func() int64 { return offset },
	}
}
