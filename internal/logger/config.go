package logger

import (
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Format string
	Level  zapcore.Level
}

// NewConfig returns a new instance of Config with defaults.
func NewConfig() Config {
	return Config{
		Format: "auto",
		Level:  zapcore.InfoLevel,
	}
}
