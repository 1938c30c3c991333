package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/phillipshepard1/phillipsnotes/internal/config"
	"github.com/phillipshepard1/phillipsnotes/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "phillipsnotes",
		Password: "phillipsnotes_pass",
		DBName:   "phillipsnotes_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.Exec(`TRUNCATE documents, note_chunks, chunk_index_state, embedding_cache`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// Vec returns a 768-dim embedding with the given leading components; the
// rest is zero. Matches the vector(768) column in the schema.
func Vec(leading ...float32) []float32 {
	out := make([]float32, 768)
	copy(out, leading)
	return out
}
