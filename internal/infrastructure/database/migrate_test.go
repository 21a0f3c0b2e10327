package database

import (
	"strings"
	"testing"
)

// The ease floor is enforced in code by the scheduler; the schema
// carries the same floor so rows written by other tools cannot drift
// below it.
func TestSchedulerStatesDeclaresEaseFloor(t *testing.T) {
	var ddl string
	for _, stmt := range migrations {
		if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS scheduler_states") {
			ddl = stmt
			break
		}
	}
	if ddl == "" {
		t.Fatal("scheduler_states migration not found")
	}
	for _, want := range []string{"CHECK (ease >= 1.3)", "DEFAULT 2.5"} {
		if !strings.Contains(ddl, want) {
			t.Errorf("scheduler_states DDL missing %q", want)
		}
	}
}
