package postgres

import (
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func columnNames(list string) []string {
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// rowOf builds one result row in column order, taking values from set and
// falling back to the zero value a NOT NULL column of that name would hold.
func rowOf(cols []string, set map[string]driver.Value) []driver.Value {
	out := make([]driver.Value, len(cols))
	for i, c := range cols {
		if v, ok := set[c]; ok {
			out[i] = v
			continue
		}
		out[i] = zeroFor(c)
	}
	return out
}

func zeroFor(col string) driver.Value {
	switch {
	case strings.HasSuffix(col, "_at") && col != "created_at" && col != "updated_at",
		col == "filter", col == "emails", col == "variants", col == "variables", col == "link_clicks",
		col == "scheduled_at", col == "last_calculated":
		return nil
	case strings.HasSuffix(col, "_count"), col == "revenue":
		return int64(0)
	case col == "created_at", col == "updated_at":
		return testTime
	}
	switch col {
	case "is_test_email", "sent", "delivered", "opened", "clicked", "bounced", "unsubscribed",
		"converted", "is_active":
		return false
	}
	return ""
}
