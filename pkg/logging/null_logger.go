package logging

// NullLogger discards all log output. Tests use it when the log
// stream is irrelevant.
type NullLogger struct{}

func (NullLogger) Info(_ string, _ ...Field)       {}
func (NullLogger) Warn(_ string, _ ...Field)       {}
func (NullLogger) Error(_ string, _ ...Field)      {}
func (NullLogger) Debug(_ string, _ ...Field)      {}
func (NullLogger) WithFields(_ ...Field) Logger    { return NullLogger{} }
func (NullLogger) LogAPIRequest(_ APIRequestLog)   {}
func (NullLogger) LogAPIResponse(_ APIResponseLog) {}
func (NullLogger) Close() error                    { return nil }
