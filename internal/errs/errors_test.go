package errs

import (
	"errors"
	"testing"
)

func TestSinkErrorUnwrapsAndFormats(t *testing.T) {
	cause := errors.New("disk full")
	err := &SinkError{Sink: "file", Project: "billing", Cause: cause}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is did not find cause through Unwrap")
	}
	if got, want := err.Error(), "sink file: project billing: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStartErrorUnwraps(t *testing.T) {
	cause := errors.New("dial refused")
	err := &StartError{Component: "consumer", Cause: cause}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is did not find cause through Unwrap")
	}
}

func TestStopErrorUnwraps(t *testing.T) {
	cause := errors.New("channel already closed")
	err := &StopError{Component: "broker", Cause: cause}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is did not find cause through Unwrap")
	}
}

func TestConnectionErrorFormatsTarget(t *testing.T) {
	err := &ConnectionError{Target: "rabbitmq.internal", Cause: errors.New("timeout")}
	if got, want := err.Error(), "connection rabbitmq.internal: timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConfigUpdateErrorWithCause(t *testing.T) {
	err := &ConfigUpdateError{Reason: "invalid rotation", Cause: errors.New("negative size")}
	if got, want := err.Error(), "config update rejected: invalid rotation: negative size"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConfigUpdateErrorWithoutCause(t *testing.T) {
	err := &ConfigUpdateError{Reason: "invalid rotation"}
	if got, want := err.Error(), "config update rejected: invalid rotation"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if err.Unwrap() != nil {
		t.Errorf("Unwrap() = %v, want nil", err.Unwrap())
	}
}

func TestErrorsAsRecoversConcreteType(t *testing.T) {
	var wrapped error = &SinkError{Sink: "console", Project: "p", Cause: errors.New("boom")}

	var target *SinkError
	if !errors.As(wrapped, &target) {
		t.Fatalf("errors.As failed to recover *SinkError")
	}
	if target.Sink != "console" {
		t.Errorf("Sink = %q", target.Sink)
	}
}
