package logger

import (
	"errors"
	"io"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

type RotateFileConfig struct {
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Level      logrus.Level
	Formatter  logrus.Formatter
}

type RotateFileHook struct {
	Config    RotateFileConfig
	logWriter io.Writer
}

// NewRotateFileHook writes every entry at or above Config.Level to a size-rotated file.
func NewRotateFileHook(config RotateFileConfig) (logrus.Hook, error) {
	if config.Filename == "" {
		return nil, errors.New("rotate file hook: empty filename")
	}

	if config.Formatter == nil {
		config.Formatter = &logrus.TextFormatter{DisableColors: true}
	}

	return &RotateFileHook{
		Config: config,
		logWriter: &lumberjack.Logger{
			Filename:   config.Filename,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
		},
	}, nil
}

func (hook *RotateFileHook) Levels() []logrus.Level {
	return logrus.AllLevels[:hook.Config.Level+1]
}

func (hook *RotateFileHook) Fire(entry *logrus.Entry) error {
	b, err := hook.Config.Formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = hook.logWriter.Write(b)
	return err
}
