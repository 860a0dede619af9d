package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"jobsift/internal/model"
)

// Outcome reports what Store did with a record.
type Outcome int

const (
	OutcomeStored Outcome = iota
	// OutcomeDuplicate means the unique constraint rejected the insert:
	// a sibling worker stored the same URL between our pre-check and the
	// insert. Not an error.
	OutcomeDuplicate
)

const pgUniqueViolation = "23505"

// Store owns the persisted job set. All reads and writes from the
// processing pool go through it; the mutex serializes the
// check-then-insert sequence across workers, and the database unique
// constraint backstops anything that slips through.
type Store struct {
	DB  *sql.DB
	rdb *redis.Client

	mu sync.Mutex
}

// New wraps a shared *sql.DB. rdb may be nil; when present it is used as
// a best-effort seen-URL cache in front of the database existence check.
func New(database *sql.DB, rdb *redis.Client) *Store {
	return &Store{DB: database, rdb: rdb}
}

// Open connects with the pgx stdlib driver and applies pool settings
// suitable for a small worker pool.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

const seenSetKey = "jobsift:seen_urls"

// IsDuplicate reports whether a record for url already exists. The cache
// answer is trusted only when positive; a miss always falls through to
// the database.
func (s *Store) IsDuplicate(ctx context.Context, url string) (bool, error) {
	if s.rdb != nil {
		if seen, err := s.rdb.SIsMember(ctx, seenSetKey, url).Result(); err == nil && seen {
			return true, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE url = $1)`, url,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return exists, nil
}

// Store inserts rec. A unique violation on the url key is reported as
// OutcomeDuplicate rather than an error.
func (s *Store) Store(ctx context.Context, rec *model.Record) (Outcome, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var matchScore sql.NullInt32
	if rec.MatchScore != nil {
		matchScore = sql.NullInt32{Int32: int32(*rec.MatchScore), Valid: true}
	}

	s.mu.Lock()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO jobs (
			url, job_title, description, ai_response,
			company_name, location, remote, contract_type, seniority,
			currency, hourly_min, hourly_max, salary_text,
			tech_keywords, missing_skills, strengths,
			confidence, summary, recommendation, notes,
			match_score, score, rejected, marked, applied, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)`,
		rec.URL, rec.JobTitle, rec.Description, rec.AIResponse,
		rec.CompanyName, rec.Location, rec.Remote, rec.ContractType, rec.Seniority,
		rec.Currency, rec.HourlyMin, rec.HourlyMax, rec.SalaryText,
		joinList(rec.TechKeywords), joinList(rec.MissingSkills), joinList(rec.Strengths),
		rec.Confidence, rec.Summary, rec.Recommendation, rec.Notes,
		matchScore, rec.Score, rec.Rejected, rec.Marked, rec.Applied, rec.CreatedAt,
	)
	s.mu.Unlock()

	if err != nil {
		if isUniqueViolation(err) {
			return OutcomeDuplicate, nil
		}
		return 0, fmt.Errorf("insert job: %w", err)
	}

	s.markSeen(ctx, rec.URL)
	return OutcomeStored, nil
}

// markSeen records the URL in the redis cache. Failures are ignored; the
// database remains the source of truth.
func (s *Store) markSeen(ctx context.Context, url string) {
	if s.rdb == nil {
		return
	}
	_ = s.rdb.SAdd(ctx, seenSetKey, url).Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// ListFilter narrows ListJobs results for the review API.
type ListFilter struct {
	Rejected *bool
	MinScore *int
	Limit    int
}

const jobColumns = `url, job_title, description, ai_response,
	company_name, location, remote, contract_type, seniority,
	currency, hourly_min, hourly_max, salary_text,
	tech_keywords, missing_skills, strengths,
	confidence, summary, recommendation, notes,
	match_score, score, rejected, marked, applied, created_at`

// ListJobs returns stored records, newest first.
func (s *Store) ListJobs(ctx context.Context, filter ListFilter) ([]model.Record, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var conds []string
	var args []any

	if filter.Rejected != nil {
		args = append(args, *filter.Rejected)
		conds = append(conds, fmt.Sprintf("rejected = $%d", len(args)))
	}
	if filter.MinScore != nil {
		args = append(args, *filter.MinScore)
		conds = append(conds, fmt.Sprintf("score >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetJob fetches one record by url.
func (s *Store) GetJob(ctx context.Context, url string) (model.Record, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE url = $1`, url)
	return scanRecord(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.Record, error) {
	var rec model.Record
	var matchScore sql.NullInt32
	var tech, missing, strengths string

	err := row.Scan(
		&rec.URL, &rec.JobTitle, &rec.Description, &rec.AIResponse,
		&rec.CompanyName, &rec.Location, &rec.Remote, &rec.ContractType, &rec.Seniority,
		&rec.Currency, &rec.HourlyMin, &rec.HourlyMax, &rec.SalaryText,
		&tech, &missing, &strengths,
		&rec.Confidence, &rec.Summary, &rec.Recommendation, &rec.Notes,
		&matchScore, &rec.Score, &rec.Rejected, &rec.Marked, &rec.Applied, &rec.CreatedAt,
	)
	if err != nil {
		return model.Record{}, err
	}

	if matchScore.Valid {
		v := int(matchScore.Int32)
		rec.MatchScore = &v
	}
	rec.TechKeywords = splitList(tech)
	rec.MissingSkills = splitList(missing)
	rec.Strengths = splitList(strengths)
	return rec, nil
}

// SetMarked flips the review "marked" flag on a stored job.
func (s *Store) SetMarked(ctx context.Context, url string, marked bool) error {
	return s.setFlag(ctx, "marked", url, marked)
}

// SetApplied flips the "applied" flag on a stored job.
func (s *Store) SetApplied(ctx context.Context, url string, applied bool) error {
	return s.setFlag(ctx, "applied", url, applied)
}

func (s *Store) setFlag(ctx context.Context, column, url string, value bool) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE jobs SET `+column+` = $1 WHERE url = $2`, value, url)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteExpiredRejected removes rejected jobs stored before cutoff.
// Accepted jobs are never aged out here; they carry review state.
func (s *Store) DeleteExpiredRejected(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM jobs WHERE rejected = TRUE AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired rejected jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpiredRuns removes crawl run summaries finished before cutoff.
func (s *Store) DeleteExpiredRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM crawl_runs WHERE finished_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired runs: %w", err)
	}
	return res.RowsAffected()
}

// InsertRunSummary records the aggregate outcome of one batch run.
func (s *Store) InsertRunSummary(ctx context.Context, sum model.RunSummary) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, total, succeeded, duplicates, empty, errors, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), sum.Total, sum.Succeeded, sum.Duplicates, sum.Empty, sum.Errors,
		sum.StartedAt, sum.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}
