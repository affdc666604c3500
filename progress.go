package ustar

// ProgressEvent represents a progress update during archiving or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the member most recently completed.
	Path string

	// BytesDone is the cumulative member content bytes processed so far.
	BytesDone int64

	// FilesDone is the cumulative number of members processed so far.
	FilesDone int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for archiving and extraction operations.
const (
	// StageArchiving indicates files are being written into the archive.
	StageArchiving ProgressStage = iota

	// StageExtracting indicates members are being written to disk.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageArchiving:
		return "archiving"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
