package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := E(Store, "pinecone.upsert", errors.New("http 500"))
	wrapped := fmt.Errorf("ingest: %w", base)

	if !Is(wrapped, Store) {
		t.Fatalf("kind: want=%v got=%v", Store, KindOf(wrapped))
	}
	if Is(wrapped, Upstream) {
		t.Fatalf("unexpected upstream kind")
	}
}

func TestEKeepsExistingErrorOfSameKind(t *testing.T) {
	inner := Errorf(Configuration, "config.Validate", "missing %s", "OPENAI_API_KEY")
	outer := E(Configuration, "cmd", inner)
	if outer != inner {
		t.Fatalf("expected same error value, got %v", outer)
	}
}

func TestEOnNil(t *testing.T) {
	if err := E(Store, "op", nil); err != nil {
		t.Fatalf("want nil got %v", err)
	}
}

func TestSentinelReachable(t *testing.T) {
	err := E(Conflict, "service.Ingest", fmt.Errorf("namespace %q: %w", "report", ErrNamespaceExists))
	if !errors.Is(err, ErrNamespaceExists) {
		t.Fatalf("sentinel lost: %v", err)
	}
	if got := err.Error(); got != `service.Ingest: conflict: namespace "report": namespace already holds records` {
		t.Fatalf("message: got=%q", got)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("x")) != Unknown {
		t.Fatalf("plain errors must be Unknown")
	}
	if Is(nil, Unknown) {
		t.Fatalf("nil error must not match any kind")
	}
}
