// Package pg implements the portal's durable store on Postgres.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"regelrecht.org/internal/portal"
)

// Store implements portal.Store over database/sql. It also satisfies the
// retention purger consumed by the background reaper.
type Store struct {
	db *sql.DB
}

var _ portal.Store = (*Store)(nil)

// New wraps an open connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Submissions(context.Context) portal.SubmissionStore { return (*submissions)(s) }
func (s *Store) Documents(context.Context) portal.DocumentStore     { return (*documents)(s) }

// PurgeExpired removes submissions past their retention date. Documents and
// uploader sessions cascade through foreign keys.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from submissions where retention_expiry_date < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type submissions Store

const submissionCols = `id, slug, submitter_name, submitter_email, organization, department,
	status, notes, created_at, updated_at, submitted_at, retention_expiry_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*portal.Submission, error) {
	var (
		sub         portal.Submission
		email       sql.NullString
		department  sql.NullString
		notes       sql.NullString
		submittedAt sql.NullTime
	)
	err := row.Scan(&sub.ID, &sub.Slug, &sub.SubmitterName, &email, &sub.Organization, &department,
		&sub.Status, &notes, &sub.CreatedAt, &sub.UpdatedAt, &submittedAt, &sub.RetentionExpiryDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, portal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.SubmitterEmail = email.String
	sub.Department = department.String
	sub.Notes = notes.String
	if submittedAt.Valid {
		t := submittedAt.Time
		sub.SubmittedAt = &t
	}
	return &sub, nil
}

func (s *submissions) Create(ctx context.Context, sub *portal.Submission) error {
	_, err := s.db.ExecContext(ctx,
		`insert into submissions(id, slug, submitter_name, submitter_email, organization, department,
		 status, notes, created_at, updated_at, retention_expiry_date)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sub.ID, sub.Slug, sub.SubmitterName, nullable(sub.SubmitterEmail), sub.Organization,
		nullable(sub.Department), string(sub.Status), nullable(sub.Notes),
		sub.CreatedAt, sub.UpdatedAt, sub.RetentionExpiryDate,
	)
	return err
}

func (s *submissions) Find(ctx context.Context, id uuid.UUID) (*portal.Submission, error) {
	return scanSubmission(s.db.QueryRowContext(ctx,
		`select `+submissionCols+` from submissions where id = $1`, id))
}

func (s *submissions) FindBySlug(ctx context.Context, slug string) (*portal.Submission, error) {
	return scanSubmission(s.db.QueryRowContext(ctx,
		`select `+submissionCols+` from submissions where slug = $1`, slug))
}

func (s *submissions) Update(ctx context.Context, sub *portal.Submission) error {
	res, err := s.db.ExecContext(ctx,
		`update submissions set submitter_name = $2, submitter_email = $3, organization = $4,
		 department = $5, notes = $6, updated_at = $7 where id = $1`,
		sub.ID, sub.SubmitterName, nullable(sub.SubmitterEmail), sub.Organization,
		nullable(sub.Department), nullable(sub.Notes), sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return portal.ErrNotFound
	}
	return nil
}

func (s *submissions) UpdateStatus(ctx context.Context, id uuid.UUID, from, to portal.SubmissionStatus, submittedAt *time.Time, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update submissions set status = $3, updated_at = $4,
		 submitted_at = coalesce($5, submitted_at)
		 where id = $1 and status = $2`,
		id, string(from), string(to), at, submittedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *submissions) List(ctx context.Context, f portal.ListFilter) ([]portal.Submission, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf(
			"(slug ilike $%d or submitter_name ilike $%d or organization ilike $%d)",
			len(args), len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " where " + strings.Join(conds, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`select %s from submissions%s order by created_at desc limit $%d offset $%d`,
		submissionCols, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []portal.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *submissions) CountByStatus(ctx context.Context) (map[portal.SubmissionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`select status, count(*) from submissions group by status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[portal.SubmissionStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[portal.SubmissionStatus(status)] = n
	}
	return out, rows.Err()
}

func (s *submissions) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return (*Store)(s).PurgeExpired(ctx, now)
}

type documents Store

const documentCols = `id, submission_id, category, classification, external_url, external_title,
	filename, original_filename, file_path, file_size, mime_type, description, created_at`

func scanDocument(row rowScanner) (*portal.Document, error) {
	var (
		d                portal.Document
		externalURL      sql.NullString
		externalTitle    sql.NullString
		filename         sql.NullString
		originalFilename sql.NullString
		filePath         sql.NullString
		fileSize         sql.NullInt64
		mimeType         sql.NullString
		description      sql.NullString
	)
	err := row.Scan(&d.ID, &d.SubmissionID, &d.Category, &d.Classification, &externalURL, &externalTitle,
		&filename, &originalFilename, &filePath, &fileSize, &mimeType, &description, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, portal.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.ExternalURL = externalURL.String
	d.ExternalTitle = externalTitle.String
	d.Filename = filename.String
	d.OriginalFilename = originalFilename.String
	d.FilePath = filePath.String
	d.FileSize = fileSize.Int64
	d.MimeType = mimeType.String
	d.Description = description.String
	return &d, nil
}

func (s *documents) Create(ctx context.Context, d *portal.Document) error {
	_, err := s.db.ExecContext(ctx,
		`insert into documents(id, submission_id, category, classification, external_url, external_title,
		 filename, original_filename, file_path, file_size, mime_type, description, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		d.ID, d.SubmissionID, string(d.Category), string(d.Classification),
		nullable(d.ExternalURL), nullable(d.ExternalTitle),
		nullable(d.Filename), nullable(d.OriginalFilename), nullable(d.FilePath),
		nullableInt(d.FileSize), nullable(d.MimeType), nullable(d.Description), d.CreatedAt,
	)
	return err
}

func (s *documents) Find(ctx context.Context, id uuid.UUID) (*portal.Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		`select `+documentCols+` from documents where id = $1`, id))
}

func (s *documents) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]portal.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+documentCols+` from documents where submission_id = $1 order by created_at`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []portal.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *documents) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `delete from documents where id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *documents) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `select count(*) from documents`).Scan(&n)
	return n, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
