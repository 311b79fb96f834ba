package image

// ValidationResult captures the outcome of security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}

// Result describes a preprocessed image written to disk.
type Result struct {
	URI           string
	Path          string
	SourceFormat  string
	SourceWidth   int
	SourceHeight  int
	Width         int
	Height        int
	Bytes         int64
	OriginalBytes int64
}
