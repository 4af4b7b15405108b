package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// fileTimeLayout is appended to the log prefix
const fileTimeLayout = "2006-01-02-15-04-05"

// RequestLog records one JSON object per line for every request, response and
// error. Records are correlated by id. Safe for concurrent use.
type RequestLog struct {
	logger *zap.Logger
	closer io.Closer
	path   string
}

// FileName returns "<prefix>-<YYYY-MM-DD-HH-MM-SS>.log"
func FileName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s.log", prefix, now.Format(fileTimeLayout))
}

// OpenRequestLog creates the request log file for a run started at now
func OpenRequestLog(prefix string, now time.Time) (*RequestLog, error) {
	path := FileName(prefix, now)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open request log: %w", err)
	}

	l := NewRequestLog(f)
	l.closer = f
	l.path = path
	return l, nil
}

// NewRequestLog writes records to w
func NewRequestLog(w io.Writer) *RequestLog {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.EpochTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), zapcore.InfoLevel)
	return &RequestLog{logger: zap.New(core)}
}

// Path returns the file backing the log, empty for writer-backed logs
func (l *RequestLog) Path() string {
	return l.path
}

type message struct {
	role    string
	content string
}

func (m message) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("role", m.role)
	enc.AddString("content", m.content)
	return nil
}

type messages []message

func (ms messages) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, m := range ms {
		if err := enc.AppendObject(m); err != nil {
			return err
		}
	}
	return nil
}

type payload struct {
	model     string
	prompt    string
	maxTokens int
}

func (p payload) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("model", p.model)
	if err := enc.AddArray("messages", messages{{role: "user", content: p.prompt}}); err != nil {
		return err
	}
	if p.maxTokens > 0 {
		enc.AddInt("max_tokens", p.maxTokens)
	} else {
		enc.AddReflected("max_tokens", nil)
	}
	return nil
}

// Request records an outgoing request with its prompt token count
func (l *RequestLog) Request(id, model, prompt string, maxTokens, tokenCount int) {
	l.logger.Info("",
		zap.String("type", "request"),
		zap.String("id", id),
		zap.Object("payload", payload{model: model, prompt: prompt, maxTokens: maxTokens}),
		zap.Int("token_count", tokenCount),
	)
}

// Response records a successful response
func (l *RequestLog) Response(id string, responseTime time.Duration, tokenCount int) {
	l.logger.Info("",
		zap.String("type", "response"),
		zap.String("id", id),
		zap.Duration("response_time", responseTime),
		zap.Int("token_count", tokenCount),
	)
}

// Error records a failed request. A JSON body is embedded as is.
func (l *RequestLog) Error(id string, statusCode int, body string, err error) {
	fields := []zap.Field{
		zap.String("type", "error"),
		zap.String("id", id),
		zap.Int("status_code", statusCode),
	}
	if body != "" && gjson.Valid(body) {
		fields = append(fields, zap.Reflect("response", json.RawMessage(body)))
	} else {
		fields = append(fields, zap.String("response", body))
	}
	if err != nil {
		fields = append(fields, zap.String("error", err.Error()))
	}
	l.logger.Info("", fields...)
}

// Close flushes and closes the underlying file
func (l *RequestLog) Close() error {
	_ = l.logger.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
