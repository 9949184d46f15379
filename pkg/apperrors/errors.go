package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrConnectionEstablish = errors.New("connection establish failed")
	ErrConnectionParams    = errors.New("connection params error")
)

// ErrorKind discriminates the structured connection errors.
type ErrorKind string

const (
	KindConnectionEstablish ErrorKind = "connection_establish_failed"
	KindConnectionParams    ErrorKind = "connection_params_error"
)

// Diagnostic field keys carried by ConnectionError.
const (
	FieldReason = "reason"
	FieldDSN    = "dsn"
	FieldUser   = "user"
	FieldDBName = "dbname"
)

// Field is a single diagnostic key/value attached to a ConnectionError.
type Field struct {
	Key   string
	Value string
}

// Reason, DSN, User and DBName build the common diagnostic fields.
func Reason(v string) Field { return Field{Key: FieldReason, Value: v} }
func DSN(v string) Field    { return Field{Key: FieldDSN, Value: v} }
func User(v string) Field   { return Field{Key: FieldUser, Value: v} }

// DBName records the resolved database name. An unset database is recorded
// as an empty value so the key is still present.
func DBName(v string) Field { return Field{Key: FieldDBName, Value: v} }

// ConnectionError is the structured error returned when a connection cannot
// be established. Err holds the originating driver failure.
type ConnectionError struct {
	Kind   ErrorKind
	Name   string
	Fields map[string]string
	Err    error
}

// NewConnectionEstablishError wraps cause with the configuration name and
// the given diagnostic fields.
func NewConnectionEstablishError(name string, cause error, fields ...Field) *ConnectionError {
	return newConnectionError(KindConnectionEstablish, name, cause, fields)
}

// NewConnectionParamsError reports a malformed connection configuration.
// Connectors do not raise it themselves; it is reserved for configuration
// validation done above them.
func NewConnectionParamsError(name string, cause error, fields ...Field) *ConnectionError {
	return newConnectionError(KindConnectionParams, name, cause, fields)
}

func newConnectionError(kind ErrorKind, name string, cause error, fields []Field) *ConnectionError {
	e := &ConnectionError{
		Kind:   kind,
		Name:   name,
		Fields: make(map[string]string, len(fields)),
		Err:    cause,
	}
	for _, f := range fields {
		e.Fields[f.Key] = f.Value
	}
	return e
}

// Field returns a diagnostic value and whether it was set.
func (e *ConnectionError) Field(key string) (string, bool) {
	v, ok := e.Fields[key]
	return v, ok
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Name)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%q", k, e.Fields[k])
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is without
// type-asserting.
func (e *ConnectionError) Is(target error) bool {
	switch target {
	case ErrConnectionEstablish:
		return e.Kind == KindConnectionEstablish
	case ErrConnectionParams:
		return e.Kind == KindConnectionParams
	}
	return false
}
