package logging

// NopLogger discards every log message. Useful for tests and for callers
// that route logging through an external pipeline.
type NopLogger struct{}

var _ Logger = (*NopLogger)(nil)

// NewNop returns a Logger that discards all messages.
func NewNop() *NopLogger { return &NopLogger{} }

func (n *NopLogger) Debug(_ string, _ ...any) {}
func (n *NopLogger) Info(_ string, _ ...any)  {}
func (n *NopLogger) Warn(_ string, _ ...any)  {}
func (n *NopLogger) Error(_ string, _ ...any) {}

// Fatal discards the message; unlike SlogLogger it does not call os.Exit,
// which would otherwise abort the test binary.
func (n *NopLogger) Fatal(_ string, _ ...any) {}
