package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pageprobe/internal/model"
)

// FileName is the name of the history database file.
const FileName = "pageprobe.db"

// ErrNotFound is returned when an existing database is required but the
// file is missing.
var ErrNotFound = errors.New("history database not found")

// timestampLayout is fixed width so that probed_at sorts lexically.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// ProbeDB stores probe reports for later comparison.
type ProbeDB struct {
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures ProbeDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	// The history command opens without it so a typo in --db-dir is an
	// error instead of an empty result.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*ProbeDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file. Pragmas in the DSN apply
	// to every connection the pool opens.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; batch probes save concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pdb := &ProbeDB{
		db:     db,
		dbPath: dbPath,
	}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := pdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pdb, nil
}

// Path returns the database file path.
func (pdb *ProbeDB) Path() string {
	return pdb.dbPath
}

// Close closes the database connection.
func (pdb *ProbeDB) Close() error {
	return pdb.db.Close()
}

func (pdb *ProbeDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS probe_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		final_url TEXT,
		probed_at TEXT NOT NULL,
		status_code INTEGER,
		title TEXT,
		cookie_count INTEGER NOT NULL DEFAULT 0,
		screenshot_sha3 TEXT,
		failed INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		risk_summary TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_probe_runs_url ON probe_runs(url);
	CREATE INDEX IF NOT EXISTS idx_probe_runs_probed_at ON probe_runs(probed_at);

	CREATE TABLE IF NOT EXISTS probe_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES probe_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		method TEXT,
		resource_type TEXT,
		status_code INTEGER,
		mime_type TEXT,
		failed INTEGER NOT NULL DEFAULT 0,
		error_text TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_probe_requests_run ON probe_requests(run_id);
	`

	_, err := pdb.db.ExecContext(ctx, schema)
	return err
}

// SaveProbeReport stores a report and its requests and returns the run ID.
func (pdb *ProbeDB) SaveProbeReport(ctx context.Context, report *model.ProbeReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	riskJSON, _ := json.Marshal(riskSummary(report)) //nolint:errcheck,errchkjson // map[string]int always marshals

	var screenshotSHA3 string
	if report.Screenshot != nil {
		screenshotSHA3 = report.Screenshot.SHA3
	}

	tx, err := pdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO probe_runs (url, final_url, probed_at, status_code, title,
		cookie_count, screenshot_sha3, failed, report_json, risk_summary)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.URL,
		report.FinalURL,
		report.DateProbed.UTC().Format(timestampLayout),
		report.StatusCode,
		report.Title,
		report.CookieCount(),
		screenshotSHA3,
		report.Failed(),
		string(reportJSON),
		string(riskJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save probe report: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run ID: %w", err)
	}

	if len(report.Requests) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO probe_requests (run_id, url, method, resource_type,
			status_code, mime_type, failed, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, fmt.Errorf("failed to prepare request insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range report.Requests {
			if _, err := stmt.ExecContext(ctx, runID, r.URL, r.Method, r.ResourceType,
				r.StatusCode, r.MimeType, r.Failed, r.ErrorText); err != nil {
				return 0, fmt.Errorf("failed to save request %s: %w", r.URL, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit probe report: %w", err)
	}
	return runID, nil
}

// riskSummary counts findings by lower-case severity name.
func riskSummary(report *model.ProbeReport) map[string]int {
	summary := map[string]int{
		"critical": 0,
		"high":     0,
		"medium":   0,
		"low":      0,
		"info":     0,
	}
	if report.Summary != nil {
		summary["critical"] = report.Summary.CriticalCount
		summary["high"] = report.Summary.HighCount
		summary["medium"] = report.Summary.MediumCount
		summary["low"] = report.Summary.LowCount
		summary["info"] = report.Summary.InfoCount
	}
	return summary
}

// GetLatestProbeReport returns the most recent report for url, or nil if
// the URL was never probed.
func (pdb *ProbeDB) GetLatestProbeReport(ctx context.Context, url string) (*model.ProbeReport, error) {
	query := `
	SELECT report_json FROM probe_runs
	WHERE url = ?
	ORDER BY probed_at DESC, id DESC
	LIMIT 1
	`
	return pdb.queryReport(ctx, query, url)
}

// GetProbeReportByID returns the report stored under id, or nil.
func (pdb *ProbeDB) GetProbeReportByID(ctx context.Context, id int64) (*model.ProbeReport, error) {
	return pdb.queryReport(ctx, `SELECT report_json FROM probe_runs WHERE id = ?`, id)
}

func (pdb *ProbeDB) queryReport(ctx context.Context, query string, arg any) (*model.ProbeReport, error) {
	var reportJSON string
	err := pdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get probe report: %w", err)
	}
	return decodeReport(reportJSON)
}

func decodeReport(reportJSON string) (*model.ProbeReport, error) {
	var report model.ProbeReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListProbedURLs returns every URL with at least one stored run, sorted.
func (pdb *ProbeDB) ListProbedURLs(ctx context.Context) ([]string, error) {
	rows, err := pdb.db.QueryContext(ctx, `SELECT DISTINCT url FROM probe_runs ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan URL: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// GetProbeHistory returns all reports for url, newest first.
func (pdb *ProbeDB) GetProbeHistory(ctx context.Context, url string) ([]*model.ProbeReport, error) {
	query := `
	SELECT report_json FROM probe_runs
	WHERE url = ?
	ORDER BY probed_at DESC, id DESC
	`

	rows, err := pdb.db.QueryContext(ctx, query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to get probe history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ProbeReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// ProbeRunMetadata is one history row without the decoded report.
type ProbeRunMetadata struct {
	ID             int64
	URL            string
	Timestamp      time.Time
	StatusCode     int
	Title          string
	CookieCount    int
	ScreenshotSHA3 string
	Failed         bool

	// RiskSummary contains counts of findings by severity level.
	RiskSummary map[string]int
}

// GetProbeHistoryWithMetadata returns the runs for url, newest first.
// A zero since returns every run; otherwise only runs at or after since.
func (pdb *ProbeDB) GetProbeHistoryWithMetadata(ctx context.Context, url string, since time.Time) ([]ProbeRunMetadata, error) {
	query := `
	SELECT id, url, probed_at, status_code, title, cookie_count,
		screenshot_sha3, failed, risk_summary
	FROM probe_runs
	WHERE url = ? AND probed_at >= ?
	ORDER BY probed_at DESC, id DESC
	`

	var sinceText string
	if !since.IsZero() {
		sinceText = since.UTC().Format(timestampLayout)
	}

	rows, err := pdb.db.QueryContext(ctx, query, url, sinceText)
	if err != nil {
		return nil, fmt.Errorf("failed to get probe history: %w", err)
	}
	defer rows.Close()

	var results []ProbeRunMetadata
	for rows.Next() {
		var (
			meta      ProbeRunMetadata
			timestamp string
			status    sql.NullInt64
			title     sql.NullString
			digest    sql.NullString
			riskJSON  sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.URL, &timestamp, &status, &title,
			&meta.CookieCount, &digest, &meta.Failed, &riskJSON); err != nil {
			return nil, fmt.Errorf("failed to scan probe run: %w", err)
		}

		meta.Timestamp = parseTimestamp(timestamp)
		meta.StatusCode = int(status.Int64)
		meta.Title = title.String
		meta.ScreenshotSHA3 = digest.String

		meta.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &meta.RiskSummary); err != nil {
				meta.RiskSummary = make(map[string]int)
			}
		}

		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetRequests returns the requests stored for a run in capture order.
func (pdb *ProbeDB) GetRequests(ctx context.Context, runID int64) ([]model.Request, error) {
	query := `
	SELECT url, method, resource_type, status_code, mime_type, failed, error_text
	FROM probe_requests
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := pdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		var (
			r                                   model.Request
			method, resourceType, mime, errText sql.NullString
			status                              sql.NullInt64
		)
		if err := rows.Scan(&r.URL, &method, &resourceType, &status, &mime, &r.Failed, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		r.Method = method.String
		r.ResourceType = resourceType.String
		r.StatusCode = int(status.Int64)
		r.MimeType = mime.String
		r.ErrorText = errText.String
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// DeleteProbeHistory removes every run of url and returns how many were
// deleted. Requests go with their run.
func (pdb *ProbeDB) DeleteProbeHistory(ctx context.Context, url string) (int64, error) {
	result, err := pdb.db.ExecContext(ctx, `DELETE FROM probe_runs WHERE url = ?`, url)
	if err != nil {
		return 0, fmt.Errorf("failed to delete probe history: %w", err)
	}
	return result.RowsAffected()
}

// timestampFormats contains the timestamp formats probed_at may hold.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
	time.RFC3339Nano,
}

// parseTimestamp tries each known format and returns the zero time if
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
