package observers

// NewDefaultLogger creates a slog logger on slog.Default() with the default levels
func NewDefaultLogger() *SlogLogger {
	return NewSlogLogger(nil)
}
