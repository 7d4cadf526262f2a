package postgresadapter

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestUniqueViolationConstraint(t *testing.T) {
	rankErr := fmt.Errorf("insert grant: %w", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: grantRankConstraint,
	})
	if got := uniqueViolationConstraint(rankErr); got != grantRankConstraint {
		t.Fatalf("constraint = %q, want %q", got, grantRankConstraint)
	}

	nameErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_iam_capability_grants_grant_name"}
	if got := uniqueViolationConstraint(nameErr); got == grantRankConstraint {
		t.Fatalf("grant name collision misattributed to the rank constraint")
	}
	if !isUniqueViolation(nameErr) {
		t.Fatalf("23505 not detected as unique violation")
	}

	if got := uniqueViolationConstraint(&pgconn.PgError{Code: "40001"}); got != "" {
		t.Fatalf("serialization failure reported a constraint: %q", got)
	}
}
