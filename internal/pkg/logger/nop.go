package logger

// NopLogger discards everything. Useful for tests and for components that
// are wired before the real logger exists.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Debug(module, message string, details map[string]interface{}) {}
func (NopLogger) Info(module, message string, details map[string]interface{})  {}
func (NopLogger) Warn(module, message string, details map[string]interface{})  {}
func (NopLogger) Error(module, message string, details map[string]interface{}) {}
func (NopLogger) Sync() error                                                  { return nil }
func (NopLogger) GetLogs(level string, limit, offset int) ([]LogEntry, error)  { return nil, nil }
func (NopLogger) GetLogById(id string) (*LogEntry, error)                      { return nil, nil }
