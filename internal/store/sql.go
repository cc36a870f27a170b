package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

const resultsTable = "execution_results"

// Pages, edges and screenshots are stored as JSON text so the record
// round-trips without a relational decomposition of the graph.
const schema = `
CREATE TABLE IF NOT EXISTS execution_results (
	id TEXT PRIMARY KEY,
	test_id TEXT NOT NULL,
	status TEXT NOT NULL,
	execution_time REAL NOT NULL,
	steps_executed INTEGER NOT NULL,
	agent_output TEXT NOT NULL,
	pages TEXT NOT NULL,
	edges TEXT NOT NULL,
	screenshots TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	executed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS execution_results_test_id ON execution_results (test_id);`

const insertResult = `INSERT INTO execution_results
	(id, test_id, status, execution_time, steps_executed, agent_output, pages, edges, screenshots, error_message, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectColumns = `test_id, status, execution_time, steps_executed, agent_output, pages, edges, screenshots, error_message, executed_at`

const selectByTest = `SELECT ` + selectColumns + `
	FROM execution_results WHERE test_id = ? ORDER BY executed_at DESC`

const selectPage = `SELECT ` + selectColumns + `
	FROM execution_results ORDER BY executed_at DESC LIMIT ? OFFSET ?`

// SQL stores outcome records in a relational database. The driver name,
// "sqlite" or "postgres", also selects the placeholder style.
type SQL struct {
	db     *sql.DB
	driver string
}

var _ Store = (*SQL)(nil)
var _ Store = (*Memory)(nil)

// OpenSQL opens the DSN with the named driver, verifies connectivity, and
// ensures the schema exists.
func OpenSQL(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errdefs.Database("open", resultsTable, err)
	}
	s := NewSQL(db, driver)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errdefs.Database("ping", resultsTable, err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQL wraps an existing handle without pinging or migrating.
func NewSQL(db *sql.DB, driver string) *SQL {
	return &SQL{db: db, driver: driver}
}

// Migrate creates the results table and its index if missing.
func (s *SQL) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errdefs.Database("migrate", resultsTable, err)
	}
	return nil
}

func (s *SQL) SaveResult(ctx context.Context, result *models.ExecutionResult) error {
	if result == nil || result.TestID == "" {
		return errdefs.InvalidInput("test_id", "a result with a test_id is required")
	}

	record := *result
	if record.Pages == nil {
		record.Pages = []models.PageNode{}
	}
	if record.Edges == nil {
		record.Edges = []models.Edge{}
	}
	if record.Screenshots == nil {
		record.Screenshots = []string{}
	}

	pages, err := json.Marshal(record.Pages)
	if err != nil {
		return errdefs.Database("marshal", resultsTable, err)
	}
	edges, err := json.Marshal(record.Edges)
	if err != nil {
		return errdefs.Database("marshal", resultsTable, err)
	}
	screenshots, err := json.Marshal(record.Screenshots)
	if err != nil {
		return errdefs.Database("marshal", resultsTable, err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(insertResult),
		uuid.NewString(),
		record.TestID,
		string(record.Status),
		record.ExecutionTime,
		record.StepsExecuted,
		record.AgentOutput,
		pages,
		edges,
		screenshots,
		record.ErrorMessage,
		record.ExecutedAt,
	)
	if err != nil {
		return errdefs.Database("insert", resultsTable, err)
	}
	return nil
}

func (s *SQL) GetResults(ctx context.Context, testID string) ([]models.ExecutionResult, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(selectByTest), testID)
	if err != nil {
		return nil, errdefs.Database("select", resultsTable, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (s *SQL) ListResults(ctx context.Context, limit, offset int) ([]models.ExecutionResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(selectPage), limit, offset)
	if err != nil {
		return nil, errdefs.Database("select", resultsTable, err)
	}
	defer rows.Close()
	return scanResults(rows)
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func scanResults(rows *sql.Rows) ([]models.ExecutionResult, error) {
	results := []models.ExecutionResult{}
	for rows.Next() {
		var (
			record                    models.ExecutionResult
			status                    string
			pages, edges, screenshots []byte
		)
		if err := rows.Scan(
			&record.TestID,
			&status,
			&record.ExecutionTime,
			&record.StepsExecuted,
			&record.AgentOutput,
			&pages,
			&edges,
			&screenshots,
			&record.ErrorMessage,
			&record.ExecutedAt,
		); err != nil {
			return nil, errdefs.Database("scan", resultsTable, err)
		}
		record.Status = models.RunStatus(status)
		if err := json.Unmarshal(orEmptyList(pages), &record.Pages); err != nil {
			return nil, errdefs.Database("scan", resultsTable, err)
		}
		if err := json.Unmarshal(orEmptyList(edges), &record.Edges); err != nil {
			return nil, errdefs.Database("scan", resultsTable, err)
		}
		if err := json.Unmarshal(orEmptyList(screenshots), &record.Screenshots); err != nil {
			return nil, errdefs.Database("scan", resultsTable, err)
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.Database("scan", resultsTable, err)
	}
	return results, nil
}

func orEmptyList(data []byte) []byte {
	if len(data) == 0 {
		return []byte("[]")
	}
	return data
}

// rebind rewrites ? placeholders into the $n style when the driver needs it.
func (s *SQL) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
