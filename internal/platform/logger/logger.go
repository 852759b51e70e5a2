package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures New. The zero value gives a debug-level console
// logger with redaction on.
type Options struct {
	// Mode "prod" or "production" selects JSON output.
	Mode  string
	Level string
	// DisableRedaction leaves secrets and caller ids untouched in output.
	DisableRedaction bool
	HashSalt         string
}

// Production reports whether mode names the production preset.
func Production(mode string) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		return true
	}
	return false
}

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	scrub         *scrubber
}

func New(opts Options) (*Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if Production(opts.Mode) {
		cfg = zap.NewProductionConfig()
	}
	lvl := zapcore.DebugLevel
	if raw := strings.TrimSpace(opts.Level); raw != "" {
		parsed, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", raw, err)
		}
		lvl = parsed
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	l := &Logger{SugaredLogger: z.Sugar()}
	if !opts.DisableRedaction {
		l.scrub = &scrubber{salt: opts.HashSalt}
	}
	return l, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() { _ = l.SugaredLogger.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.SugaredLogger.Debugw(msg, l.scrub.kvs(kv)...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.SugaredLogger.Infow(msg, l.scrub.kvs(kv)...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.SugaredLogger.Warnw(msg, l.scrub.kvs(kv)...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.SugaredLogger.Errorw(msg, l.scrub.kvs(kv)...) }
func (l *Logger) Fatal(msg string, kv ...interface{}) { l.SugaredLogger.Fatalw(msg, l.scrub.kvs(kv)...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(l.scrub.kvs(kv)...), scrub: l.scrub}
}

var redactedKeys = []string{"token", "authorization", "secret", "api_key", "apikey", "credential", "password"}

// scrubber rewrites key/value pairs before they reach zap. Secrets are
// replaced outright; caller ids are hashed so one caller's requests still
// correlate.
type scrubber struct {
	salt string
}

func (s *scrubber) kvs(kv []interface{}) []interface{} {
	if s == nil || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key := toString(kv[i])
		out = append(out, key, s.value(strings.ToLower(strings.TrimSpace(key)), kv[i+1]))
	}
	if len(kv)%2 == 1 {
		out = append(out, kv[len(kv)-1])
	}
	return out
}

func (s *scrubber) value(key string, val interface{}) interface{} {
	if key == "" {
		return val
	}
	for _, frag := range redactedKeys {
		if strings.Contains(key, frag) {
			return "[REDACTED]"
		}
	}
	if strings.HasSuffix(key, "owner_id") || strings.HasSuffix(key, "caller_id") {
		return s.hash(val)
	}
	if str, ok := val.(string); ok && looksLikeJWT(str) {
		return "[REDACTED]"
	}
	return val
}

func (s *scrubber) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
