package ctxkeys

import (
	"context"
	"testing"
)

func TestWithValue_SetsAndGetsTypedKey(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), Subject, "operator")
	got, ok := String(ctx, Subject)
	if !ok {
		t.Fatalf("expected a value")
	}
	if got != "operator" {
		t.Fatalf("expected operator, got %q", got)
	}
}

func TestString_IgnoresUntypedKeys(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // deliberately uses a plain string key
	ctx := context.WithValue(context.Background(), "subject", "intruder")
	if _, ok := String(ctx, Subject); ok {
		t.Fatal("plain string key must not satisfy the typed key")
	}
}

func TestString_EmptyIsAbsent(t *testing.T) {
	t.Parallel()

	ctx := WithValue(context.Background(), Subject, "")
	if _, ok := String(ctx, Subject); ok {
		t.Fatal("empty value should read as absent")
	}
}
