package archive

// Archiver persists cycle artifacts for offline inspection. The
// pipeline treats archival as best-effort: a failed archive is logged,
// never fatal.
type Archiver interface {
	Store(name string, data []byte) error
}

// Noop discards everything, used when no archive account is configured.
type Noop struct{}

func (Noop) Store(string, []byte) error { return nil }
