package getter

// Result describes a completed download.
type Result struct {
	// Destination is the absolute path the content was committed to.
	Destination string

	// BytesWritten is the size of the committed content in bytes. It is
	// zero when the getter staged a symbolic link instead of copying.
	BytesWritten int64

	// Attempts is the number of fetch attempts performed.
	Attempts int
}
