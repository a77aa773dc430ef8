// Package pack assembles a game project directory into a distributable
// compressed package: it selects files under layered ignore rules, applies
// optional size-reduction transforms on a working copy, and seals the result
// into a single archive.
package pack

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// State is the pipeline's position in its strictly sequential run.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateTransforming
	StateArchiving
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSelecting:
		return "SELECTING"
	case StateTransforming:
		return "TRANSFORMING"
	case StateArchiving:
		return "ARCHIVING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Options configures one pipeline run. The working directory is exclusively
// owned by the run; concurrent runs need distinct working directories.
type Options struct {
	// RootPath is the project source tree; it must contain the entry point.
	RootPath string
	// OutputPath is the destination archive path; the package extension is
	// appended when missing.
	OutputPath string
	// WorkDir holds the disposable working copy. A temporary directory is
	// created and removed when empty.
	WorkDir string
	// IgnoreFileName is the per-directory ignore file, ".gitignore" when empty.
	IgnoreFileName string
	// Plan enables the optional transform passes.
	Plan Plan
	// Compression selects the container effort level, fast when empty.
	Compression CompressionLevel
}

// Report is the coordinator's final summary. Warnings are enumerated even on
// successful completion so partial degradation is always visible.
type Report struct {
	State              State
	Included           int
	StrippedBinaries   int
	StrippedWallpapers int
	Transcoded         int
	TranscodeFailures  int
	SkippedByCancel    int
	Warnings           []Warning
	ArtifactPath       string
	ArtifactSize       int64
}

// Pipeline sequences selection, transformation, and archiving.
type Pipeline struct {
	state  State
	logger *zap.Logger
}

func NewPipeline(logger *zap.Logger) *Pipeline {
	return &Pipeline{state: StateIdle, logger: logger}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// advance performs a validated transition; an invalid one is a programming
// error surfaced to the caller.
func (p *Pipeline) advance(to State) error {
	if !allowedTransition(p.state, to) {
		return fmt.Errorf("disallowed pipeline transition: %s -> %s", p.state, to)
	}
	p.logger.Debug("pipeline transition", zap.Stringer("from", p.state), zap.Stringer("to", to))
	p.state = to
	return nil
}

func allowedTransition(from State, to State) bool {
	switch from {
	case StateIdle:
		return to == StateSelecting
	case StateSelecting:
		return to == StateTransforming || to == StateFailed
	case StateTransforming:
		return to == StateArchiving || to == StateFailed
	case StateArchiving:
		return to == StateDone || to == StateFailed
	default:
		return false
	}
}

// Run executes one packaging pass. Selection and archiving failures abort the
// run; per-file transform failures are absorbed into the report as warnings.
func (p *Pipeline) Run(ctx context.Context, opts Options) (Report, error) {
	report := Report{State: StateIdle}

	fail := func(err error) (Report, error) {
		p.state = StateFailed
		report.State = StateFailed
		p.logger.Error("pipeline failed", zap.Error(err))
		return report, err
	}

	ignoreFileName := opts.IgnoreFileName
	if ignoreFileName == "" {
		ignoreFileName = DefaultIgnoreFileName
	}
	compression := opts.Compression
	if compression == "" {
		compression = CompressionFast
	}

	// Pre-flight: configuration problems surface before any file is touched.
	if opts.Plan.TranscodeAudio {
		encoder := opts.Plan.Encoder
		if encoder == "" {
			encoder = DefaultEncoder
		}
		if _, err := exec.LookPath(encoder); err != nil {
			return fail(fmt.Errorf("%w: %q: %v", ErrEncoderNotFound, encoder, err))
		}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		tempDir, err := os.MkdirTemp("", "kristal-pack-*")
		if err != nil {
			return fail(fmt.Errorf("create working directory: %w", err))
		}
		defer os.RemoveAll(tempDir)
		workDir = tempDir
	} else if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fail(fmt.Errorf("create working directory %s: %w", workDir, err))
	}

	if err := p.advance(StateSelecting); err != nil {
		return fail(err)
	}
	selection, selectWarnings, err := Select(opts.RootPath, ignoreFileName, p.logger)
	if err != nil {
		return fail(err)
	}
	report.Warnings = append(report.Warnings, selectWarnings...)
	p.logger.Info("selection complete", zap.Int("files", len(selection)))

	if err := p.advance(StateTransforming); err != nil {
		return fail(err)
	}
	transformed, stats, err := Transform(ctx, opts.Plan, selection, opts.RootPath, workDir, p.logger)
	if err != nil {
		return fail(err)
	}
	report.StrippedBinaries = stats.StrippedBinaries
	report.StrippedWallpapers = stats.StrippedWallpapers
	report.Transcoded = stats.Transcoded
	report.TranscodeFailures = stats.TranscodeFailures
	report.SkippedByCancel = stats.SkippedByCancel
	report.Warnings = append(report.Warnings, stats.Warnings...)
	p.logger.Info("transforms complete",
		zap.Int("stripped_binaries", stats.StrippedBinaries),
		zap.Int("stripped_wallpapers", stats.StrippedWallpapers),
		zap.Int("transcoded", stats.Transcoded),
		zap.Int("transcode_failures", stats.TranscodeFailures),
	)

	if err := p.advance(StateArchiving); err != nil {
		return fail(err)
	}
	artifact, err := WriteArchive(transformed, opts.RootPath, workDir, opts.OutputPath, compression, p.logger)
	if err != nil {
		return fail(err)
	}

	if err := p.advance(StateDone); err != nil {
		return fail(err)
	}

	report.State = StateDone
	report.Included = len(transformed)
	report.ArtifactPath = artifact.Path
	report.ArtifactSize = artifact.Size

	for _, warning := range report.Warnings {
		p.logger.Warn("packaging warning", zap.String("path", warning.Path), zap.String("reason", warning.Reason))
	}
	p.logger.Info("package sealed",
		zap.String("artifact", artifact.Path),
		zap.Int64("bytes", artifact.Size),
		zap.Int("included", report.Included),
		zap.Int("warnings", len(report.Warnings)),
	)
	return report, nil
}
