package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWire_TagsCaptureErrors(t *testing.T) {
	err := Capture(ErrSocket, fmt.Errorf("handshake timeout"))

	if got := Tag(err); got != "SocketError" {
		t.Fatalf("tag = %q", got)
	}
	if got := Wire(err); got != "SocketError: ingestion socket error: handshake timeout" {
		t.Fatalf("wire = %q", got)
	}
	if got := Wire(fmt.Errorf("plain")); got != "plain" {
		t.Fatalf("wire of untagged error = %q", got)
	}
	if Wire(nil) != "" {
		t.Fatal("wire of nil is not empty")
	}
}

func TestParseWire_RoundTrips(t *testing.T) {
	sentinels := []error{
		ErrInvalidSource,
		ErrWorkerUnavailable,
		ErrHandleUnavailable,
		ErrCaptureUnavailable,
		ErrSocket,
		ErrAlreadyActive,
		ErrUnknownCommand,
	}

	for _, sentinel := range sentinels {
		wire := Wire(Capture(sentinel, errors.New("cause")))
		parsed := ParseWire(wire)

		if !errors.Is(parsed, sentinel) {
			t.Fatalf("%q does not match its sentinel", wire)
		}
		if again := Wire(parsed); again != wire {
			t.Fatalf("round trip = %q, want %q", again, wire)
		}
	}
}

func TestParseWire_BareTagAndUnknown(t *testing.T) {
	if err := ParseWire("AlreadyActive"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("bare tag = %v", err)
	}

	err := ParseWire("Nope: something broke")
	if Tag(err) != "" || err.Error() != "Nope: something broke" {
		t.Fatalf("unknown tag parsed as %v", err)
	}
	if ParseWire("") != nil {
		t.Fatal("empty string parsed as an error")
	}
}
