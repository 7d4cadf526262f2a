package postgresadapter

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestSQLStateClassification(t *testing.T) {
	wrapped := fmt.Errorf("commit edge insert: %w", &pgconn.PgError{Code: "40001"})
	if !isSerializationFailure(wrapped) {
		t.Fatalf("40001 not detected as serialization failure")
	}
	if isSerializationFailure(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("23505 misclassified as serialization failure")
	}
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("23505 not detected as unique violation")
	}
	if isUniqueViolation(fmt.Errorf("plain error")) {
		t.Fatalf("non-pg error misclassified as unique violation")
	}
}
