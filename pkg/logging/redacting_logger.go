package logging

import "strings"

// RedactingLogger is a decorator that masks secrets (the catalog
// API key, the webhook URL) in messages and string field values
// before passing them to the inner logger.
type RedactingLogger struct {
	inner   Logger
	secrets []string
}

// NewRedactingLogger creates a logger that redacts the given
// secrets. Secrets of four characters or fewer are ignored.
func NewRedactingLogger(
	inner Logger,
	secrets ...string,
) *RedactingLogger {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if len(s) > 4 {
			kept = append(kept, s)
		}
	}
	return &RedactingLogger{inner: inner, secrets: kept}
}

func (r *RedactingLogger) redact(msg string) string {
	for _, secret := range r.secrets {
		msg = strings.ReplaceAll(msg, secret, redactValue(secret))
	}
	return msg
}

// redactValue masks all but the first 4 characters.
func redactValue(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-4)
}

func (r *RedactingLogger) redactFields(fields []Field) []Field {
	result := make([]Field, len(fields))
	for i, f := range fields {
		if str, ok := f.Value.(string); ok {
			result[i] = Field{Key: f.Key, Value: r.redact(str)}
		} else {
			result[i] = f
		}
	}
	return result
}

func (r *RedactingLogger) Info(msg string, fields ...Field) {
	r.inner.Info(r.redact(msg), r.redactFields(fields)...)
}

func (r *RedactingLogger) Warn(msg string, fields ...Field) {
	r.inner.Warn(r.redact(msg), r.redactFields(fields)...)
}

func (r *RedactingLogger) Error(msg string, fields ...Field) {
	r.inner.Error(r.redact(msg), r.redactFields(fields)...)
}

func (r *RedactingLogger) Debug(msg string, fields ...Field) {
	r.inner.Debug(r.redact(msg), r.redactFields(fields)...)
}

// WithFields returns a RedactingLogger wrapping a new inner
// logger with the given fields applied.
func (r *RedactingLogger) WithFields(fields ...Field) Logger {
	return &RedactingLogger{
		inner:   r.inner.WithFields(r.redactFields(fields)...),
		secrets: r.secrets,
	}
}

// LogAPIRequest logs a request with its URL and sensitive
// headers masked.
func (r *RedactingLogger) LogAPIRequest(request APIRequestLog) {
	request.URL = r.redact(request.URL)
	request.Headers = redactHeaders(request.Headers)
	r.inner.LogAPIRequest(request)
}

func (r *RedactingLogger) LogAPIResponse(response APIResponseLog) {
	r.inner.LogAPIResponse(response)
}

func (r *RedactingLogger) Close() error {
	return r.inner.Close()
}

// redactHeaders replaces values of sensitive headers with
// "****".
func redactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}

	sensitiveKeys := map[string]bool{
		"authorization":  true,
		"x-ckan-api-key": true,
		"x-api-key":      true,
	}

	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			result[k] = "****"
		} else {
			result[k] = v
		}
	}
	return result
}
