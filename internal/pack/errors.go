package pack

import "errors"

// Sentinel error kinds for pipeline failures. Configuration problems
// (ErrInvalidRoot, ErrEncoderNotFound) abort before any work begins;
// ErrArchiveWrite aborts the run after partial output has been cleaned up.
var (
	// ErrInvalidRoot indicates a missing root directory or one without the
	// recognized entry-point file.
	ErrInvalidRoot = errors.New("invalid project root")
	// ErrEncoderNotFound indicates the external audio encoder binary could
	// not be located on PATH.
	ErrEncoderNotFound = errors.New("audio encoder not found")
	// ErrArchiveWrite indicates the output container could not be written.
	ErrArchiveWrite = errors.New("archive write failed")
)

// Warning records a recovered per-file problem. Warnings never abort a run;
// the coordinator enumerates all of them in the final report.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return w.Path + ": " + w.Reason
}
