package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// A Config defines where and what is logged.
type Config struct {
	Level string
	// Filename enables a rotated log file in addition to stderr.
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// Setup configures the standard logrus logger used across the server.
func Setup(cfg Config) error {
	return Configure(logrus.StandardLogger(), os.Stderr, cfg)
}

// Configure configures l to write on w and to the log file defined by cfg.
func Configure(l *logrus.Logger, w io.Writer, cfg Config) error {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return errors.Wrap(err, "could not parse log level")
		}
	}

	formatter := logFormatter{}
	l.SetLevel(level)
	l.SetOutput(w)
	l.SetFormatter(formatter)

	if cfg.Filename != "" {
		if cfg.MaxSize == 0 {
			cfg.MaxSize = 20
		}
		if cfg.MaxBackups == 0 {
			cfg.MaxBackups = 2
		}
		if cfg.MaxAge == 0 {
			cfg.MaxAge = 10
		}

		l.Hooks.Add(&fileHook{
			out: &lumberjack.Logger{
				Filename:   cfg.Filename,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
			},
			formatter: formatter,
		})
	}

	return nil
}

// Dump returns a readable representation of v, used to inspect ledger records.
func Dump(v any) string {
	return litter.Sdump(v)
}

// A fileHook copies every entry to a size-rotated file.
type fileHook struct {
	mu        sync.Mutex
	out       io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return errors.Wrap(err, "could not format log entry")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(line)
	return err
}

// logFormatter renders one line per entry: time, level, message and the fields sorted by key.
type logFormatter struct{}

func (logFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Time.UTC().Format(time.RFC3339))
	b.WriteString(" level=")
	b.WriteString(entry.Level.String())
	b.WriteString(" msg=")
	b.WriteString(strconv.Quote(entry.Message))
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}
