package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Reason is why a record failed validation.
type Reason string

const (
	ReasonMalformedJSON Reason = "malformed_json"
	ReasonMissingField  Reason = "missing_field"
	ReasonBadType       Reason = "bad_type"
	ReasonOutOfRange    Reason = "out_of_range"
	ReasonBadEnum       Reason = "bad_enum"
)

// Invalid is the verdict returned when a raw message fails validation. It
// carries enough context for the caller to log and drop the record without
// re-deriving why.
type Invalid struct {
	Reason Reason
	Field  string
	Err    error
}

func (i *Invalid) Error() string {
	if i.Field != "" {
		return string(i.Reason) + ": " + i.Field
	}
	return string(i.Reason)
}

func (i *Invalid) Unwrap() error { return i.Err }

var projectPattern = regexp.MustCompile(`^[\w\s\-]+$`)

// wireRecord mirrors Record but keeps every field as a pointer so we can
// distinguish "missing", "wrong type", and "out of range" instead of
// letting encoding/json silently zero-value a bad field.
type wireRecord struct {
	Project   *string `json:"project"`
	Timestamp *string `json:"timestamp"`
	Level     *string `json:"level"`
	Module    *string `json:"module"`
	Function  *string `json:"function"`
	Message   *string `json:"message"`
	Code      *int64  `json:"code"`
}

// Validate parses and validates one raw message body per the LogRecord
// schema. It never has side effects: no I/O, no mutation of shared state.
func Validate(raw []byte) (*Record, *Invalid) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var w wireRecord
	if err := dec.Decode(&w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &Invalid{Reason: ReasonBadType, Field: typeErr.Field, Err: err}
		}
		return nil, &Invalid{Reason: ReasonMalformedJSON, Err: err}
	}
	if dec.More() {
		return nil, &Invalid{Reason: ReasonMalformedJSON, Err: errExtraJSON}
	}

	switch {
	case w.Project == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "project"}
	case w.Timestamp == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "timestamp"}
	case w.Level == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "level"}
	case w.Module == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "module"}
	case w.Function == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "function"}
	case w.Message == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "message"}
	case w.Code == nil:
		return nil, &Invalid{Reason: ReasonMissingField, Field: "code"}
	}

	if len(*w.Project) == 0 || len(*w.Project) > MaxProjectLen {
		return nil, &Invalid{Reason: ReasonOutOfRange, Field: "project"}
	}
	if !projectPattern.MatchString(*w.Project) {
		return nil, &Invalid{Reason: ReasonBadType, Field: "project"}
	}
	if len(*w.Module) > MaxModuleLen {
		return nil, &Invalid{Reason: ReasonOutOfRange, Field: "module"}
	}
	if len(*w.Function) > MaxFunctionLen {
		return nil, &Invalid{Reason: ReasonOutOfRange, Field: "function"}
	}
	if len(*w.Message) > MaxMessageLen {
		return nil, &Invalid{Reason: ReasonOutOfRange, Field: "message"}
	}
	if *w.Code < MinCode || *w.Code > MaxCode {
		return nil, &Invalid{Reason: ReasonOutOfRange, Field: "code"}
	}

	ts, err := time.Parse(time.RFC3339Nano, *w.Timestamp)
	if err != nil {
		return nil, &Invalid{Reason: ReasonBadType, Field: "timestamp", Err: err}
	}

	level := Level(strings.ToLower(*w.Level))
	if !level.valid() {
		return nil, &Invalid{Reason: ReasonBadEnum, Field: "level"}
	}

	return &Record{
		Project:   *w.Project,
		Timestamp: ts.UTC(),
		Level:     level,
		Module:    *w.Module,
		Function:  *w.Function,
		Message:   *w.Message,
		Code:      int(*w.Code),
	}, nil
}

var errExtraJSON = &trailingDataError{}

type trailingDataError struct{}

func (*trailingDataError) Error() string { return "trailing data after JSON value" }
