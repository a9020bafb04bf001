package logger

// SetupLogger builds a logger from CLI-style settings and installs it as the default.
func SetupLogger(level string, logJSON, logSource bool) Logger {
	l := NewLogger(&Config{
		Level:      ParseLevel(level),
		Output:     DefaultConfig().Output,
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
	SetDefault(l)
	return l
}
