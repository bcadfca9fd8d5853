package logger

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Log is the process logger. It is nil until Init is called, in which case
// the package level helpers are no-ops.
var Log *slog.Logger

type asyncWriter struct {
	ch chan []byte
}

func (a *asyncWriter) Write(p []byte) (n int, err error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case a.ch <- cp:
	default:
		// queue full, drop rather than block the caller
	}
	return len(p), nil
}

var (
	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs an async buffered text logger. An empty level falls back to
// CHATSYNC_LOG_LEVEL. CHATSYNC_LOG_SINK=file:/path redirects output to a file.
func Init(level string) {
	if strings.TrimSpace(level) == "" {
		level = os.Getenv("CHATSYNC_LOG_LEVEL")
	}
	sink := os.Getenv("CHATSYNC_LOG_SINK")

	mu.Lock()
	defer mu.Unlock()
	stopLocked()

	ch := make(chan []byte, 10000)
	stopCh = make(chan struct{})
	Log = slog.New(slog.NewTextHandler(&asyncWriter{ch: ch}, &slog.HandlerOptions{Level: ParseLevel(level)}))

	wg.Add(1)
	go drain(ch, stopCh, openSink(sink))
}

// InitWriter installs a synchronous logger writing to w. Tests use it to
// capture output.
func InitWriter(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	stopLocked()
	Log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func openSink(sink string) io.WriteCloser {
	if path, ok := strings.CutPrefix(sink, "file:"); ok {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			return f
		}
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	return nopCloser{os.Stdout}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func drain(ch <-chan []byte, stop <-chan struct{}, out io.WriteCloser) {
	defer wg.Done()
	buf := bufio.NewWriterSize(out, 8192)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case b := <-ch:
			buf.Write(b)
		case <-ticker.C:
			buf.Flush()
		case <-stop:
			for {
				select {
				case b := <-ch:
					buf.Write(b)
				default:
					buf.Flush()
					out.Close()
					return
				}
			}
		}
	}
}

func stopLocked() {
	if stopCh != nil {
		close(stopCh)
		wg.Wait()
		stopCh = nil
	}
}

// Sync flushes buffered output and stops the writer goroutine.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	stopLocked()
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// LogConfigSummary prints a readable block of configuration results to
// stdout, independent of the configured level.
func LogConfigSummary(title string, items []string) {
	if len(items) == 0 {
		return
	}
	header := "== " + strings.ToUpper(strings.ReplaceAll(title, "_", " ")) + " "
	const width = 60
	if len(header) < width {
		header += strings.Repeat("=", width-len(header))
	}
	fmt.Fprintln(os.Stdout, header)
	for _, it := range items {
		fmt.Fprintln(os.Stdout, "- "+it)
	}
	fmt.Fprintln(os.Stdout)
}
