package shared_test

import (
	"context"
	"errors"
	"testing"

	"github.com/millstone-erp/millstone-erp/internal/shared"
)

func TestCSRFTokenReusedWithinSession(t *testing.T) {
	m := shared.NewCSRFManager("csrfsecret")
	sess := &shared.Session{ID: "abc"}

	first, err := m.EnsureToken(context.Background(), sess)
	if err != nil {
		t.Fatalf("ensure token: %v", err)
	}
	if first == "" {
		t.Fatalf("expected non-empty token")
	}
	second, err := m.EnsureToken(context.Background(), sess)
	if err != nil {
		t.Fatalf("ensure token again: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable token for one session")
	}
	if err := m.VerifyToken(context.Background(), sess, first); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestCSRFTokenMismatch(t *testing.T) {
	m := shared.NewCSRFManager("csrfsecret")
	sess := &shared.Session{ID: "abc"}
	if _, err := m.EnsureToken(context.Background(), sess); err != nil {
		t.Fatalf("ensure token: %v", err)
	}

	err := m.VerifyToken(context.Background(), sess, "forged")
	if !errors.Is(err, shared.ErrCSRFTokenMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}

	err = m.VerifyToken(context.Background(), sess, "")
	if !errors.Is(err, shared.ErrCSRFTokenMissing) {
		t.Fatalf("expected missing token error, got %v", err)
	}

	err = m.VerifyToken(context.Background(), nil, "anything")
	if !errors.Is(err, shared.ErrCSRFTokenMissing) {
		t.Fatalf("expected missing session error, got %v", err)
	}
}
