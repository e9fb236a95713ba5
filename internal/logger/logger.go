// Package logger implements the driver's structured, component-scoped
// logging: an optional LogSink (a subset of go-logr/logr's interface) fed
// from a buffered background goroutine so logging never blocks a command
// or SDAM state transition on a slow writer.
package logger

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nimbusdb/nimbus-go-driver/bson"
)

const (
	jobBufferSize            = 100
	envVarAll                = "MONGODB_LOG_ALL"
	envVarLogPath            = "MONGODB_LOG_PATH"
	envVarMaxDocumentLength  = "MONGODB_LOG_MAX_DOCUMENT_LENGTH"
	// DefaultMaxDocumentLength is the default truncation width, in bytes,
	// for a logged command or reply document.
	DefaultMaxDocumentLength = 1000
	// TruncationSuffix is appended to a truncated document; it does not
	// count toward the max document length.
	TruncationSuffix = "..."
)

// LogSink accepts a formatted log record; deliberately a subset of
// go-logr/logr.LogSink so a *logr.Logger can be adapted in without a
// wrapper type.
type LogSink interface {
	Info(level int, msg string, keysAndValues ...interface{})
}

// Message is anything the driver can log: a command started/succeeded/
// failed event, an SDAM state transition, a server selection outcome.
type Message interface {
	Component() Component
	Message() string
	Serialize(maxDocumentLength uint) []interface{}
}

type job struct {
	level Level
	msg   Message
}

// Logger fans log Messages out to a LogSink from a single background
// goroutine, so a slow sink throttles logging throughput, not the caller.
type Logger struct {
	ComponentLevels   map[Component]Level
	Sink              LogSink
	MaxDocumentLength uint

	jobs chan job
}

// New constructs a Logger. A nil sink disables logging outright (no
// stderr fallback, unlike the rest of the ambient stack, since a driver
// embedded in another program should not write to stderr unasked).
// componentLevels not set explicitly are read from the
// MONGODB_LOG_<COMPONENT>/MONGODB_LOG_ALL environment variables.
func New(sink LogSink, maxDocumentLength uint, componentLevels map[Component]Level) *Logger {
	if maxDocumentLength == 0 {
		maxDocumentLength = envMaxDocumentLength()
	}
	levels := envComponentLevels()
	for c, l := range componentLevels {
		levels[c] = l
	}
	l := &Logger{
		ComponentLevels:   levels,
		Sink:              sink,
		MaxDocumentLength: maxDocumentLength,
		jobs:              make(chan job, jobBufferSize),
	}
	if sink != nil {
		go l.listen()
	}
	return l
}

// Close stops the background listener. Safe to call at most once.
func (l *Logger) Close() {
	close(l.jobs)
}

// Is reports whether level is enabled for component.
func (l *Logger) Is(level Level, component Component) bool {
	return l.ComponentLevels[component] >= level
}

// Print enqueues msg for delivery to the sink if its component/level is
// enabled; never blocks the caller on a full queue.
func (l *Logger) Print(level Level, msg Message) {
	if l == nil || l.Sink == nil || !l.Is(level, msg.Component()) {
		return
	}
	select {
	case l.jobs <- job{level, msg}:
	default:
		// Drop rather than block a command path on a slow sink.
	}
}

func (l *Logger) listen() {
	for j := range l.jobs {
		kv, err := formatKeysAndValues(j.msg.Serialize(l.MaxDocumentLength), l.MaxDocumentLength)
		if err != nil {
			l.Sink.Info(int(j.level)-DiffToInfo, "error formatting log message", "error", err)
			continue
		}
		l.Sink.Info(int(j.level)-DiffToInfo, j.msg.Message(), kv...)
	}
}

func truncate(s string, width uint) string {
	if uint(len(s)) <= width {
		return s
	}
	cut := s[:width]
	// Don't split a multi-byte UTF-8 rune in half.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut + TruncationSuffix
}

func formatKeysAndValues(kv []interface{}, maxDocumentLength uint) ([]interface{}, error) {
	out := make([]interface{}, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		val := kv[i+1]

		if key == "command" || key == "reply" {
			raw, ok := val.(bson.Raw)
			if !ok {
				return nil, fmt.Errorf("expected %q to be a bson.Raw, got %T", key, val)
			}
			val = truncate(raw.String(), maxDocumentLength)
		}

		out[i], out[i+1] = key, val
	}
	return out, nil
}

func envMaxDocumentLength() uint {
	v := os.Getenv(envVarMaxDocumentLength)
	if v == "" {
		return DefaultMaxDocumentLength
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return DefaultMaxDocumentLength
	}
	return uint(n)
}

func envComponentLevels() map[Component]Level {
	levels := make(map[Component]Level, len(allComponents))
	global := ParseLevel(os.Getenv(envVarAll))
	for _, c := range allComponents {
		level := global
		if global == LevelOff {
			level = ParseLevel(os.Getenv(envVarForComponent(c)))
		}
		levels[c] = level
	}
	return levels
}

// NewOSSink returns a LogSink that writes to w (os.Stderr/os.Stdout,
// typically), one line per message in "level msg key=val ..." form.
func NewOSSink(w interface{ Write([]byte) (int, error) }) LogSink {
	return &osSink{w: w}
}

type osSink struct {
	w interface{ Write([]byte) (int, error) }
}

func (s *osSink) Info(level int, msg string, keysAndValues ...interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%d] %s", level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	b.WriteByte('\n')
	s.w.Write([]byte(b.String()))
}
