package ragobs

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Logger is the structured logging interface every stage writes through.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
	Debug(msg string, fields map[string]any)
}

// ZerologLogger writes one JSON object per line via zerolog; cmd/ragd uses
// it for the scheduler, worker and backfill side.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger builds a logger writing to stdout.
func NewZerologLogger() *ZerologLogger {
	return &ZerologLogger{log: zerolog.New(os.Stdout).With().Timestamp().Logger()}
}

func (l *ZerologLogger) Info(msg string, fields map[string]any) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Error(msg string, fields map[string]any) {
	l.log.Error().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Debug(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

// JSONLogger is a minimal structured logger writing one JSON object per
// line via encoding/json, used for the RAG service's own request-scoped
// logging (ingestion, dedup, query) as opposed to ZerologLogger, which
// backs the scheduler, worker and backfill side.
type JSONLogger struct {
	mu sync.Mutex
}

func (l *JSONLogger) log(level, msg string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fields == nil {
		fields = map[string]any{}
	}
	fields["level"] = level
	fields["msg"] = msg
	enc, err := json.Marshal(fields)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "log marshal error: %v\n", err)
		return
	}
	_, _ = os.Stdout.Write(append(enc, '\n'))
}

func (l *JSONLogger) Info(msg string, fields map[string]any)  { l.log("info", msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]any) { l.log("error", msg, fields) }
func (l *JSONLogger) Debug(msg string, fields map[string]any) { l.log("debug", msg, fields) }

// NoopLogger discards everything.
type NoopLogger struct{}

func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}
func (NoopLogger) Debug(string, map[string]any) {}
