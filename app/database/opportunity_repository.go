package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const opportunityColumns = `id, title, company, location, description, requirements, type, category,
	salary, deadline, application_url, source, source_id, source_url, last_fetched_at,
	auto_fetched, is_deleted, created_at, updated_at`

type opportunityRow struct {
	ID             int64          `db:"id"`
	Title          string         `db:"title"`
	Company        string         `db:"company"`
	Location       string         `db:"location"`
	Description    string         `db:"description"`
	Requirements   string         `db:"requirements"`
	Type           string         `db:"type"`
	Category       string         `db:"category"`
	Salary         string         `db:"salary"`
	Deadline       sql.NullTime   `db:"deadline"`
	ApplicationURL string         `db:"application_url"`
	Source         sql.NullString `db:"source"`
	SourceID       sql.NullString `db:"source_id"`
	SourceURL      string         `db:"source_url"`
	LastFetchedAt  sql.NullTime   `db:"last_fetched_at"`
	AutoFetched    bool           `db:"auto_fetched"`
	IsDeleted      bool           `db:"is_deleted"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (row opportunityRow) toOpportunity() Opportunity {
	opp := Opportunity{
		ID:             row.ID,
		Title:          row.Title,
		Company:        row.Company,
		Location:       row.Location,
		Description:    row.Description,
		Requirements:   row.Requirements,
		Type:           OpportunityType(row.Type),
		Category:       row.Category,
		Salary:         row.Salary,
		ApplicationURL: row.ApplicationURL,
		Source:         row.Source.String,
		SourceID:       row.SourceID.String,
		SourceURL:      row.SourceURL,
		AutoFetched:    row.AutoFetched,
		IsDeleted:      row.IsDeleted,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}

	if row.Deadline.Valid {
		deadline := row.Deadline.Time
		opp.Deadline = &deadline
	}
	if row.LastFetchedAt.Valid {
		lastFetched := row.LastFetchedAt.Time
		opp.LastFetchedAt = &lastFetched
	}

	return opp
}

type OpportunityRepo struct {
	db  *DB
	now func() time.Time
}

var _ OpportunityRepository = (*OpportunityRepo)(nil)

func NewOpportunityRepository(db *DB) *OpportunityRepo {
	return &OpportunityRepo{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *OpportunityRepo) FindBySourceID(ctx context.Context, source, sourceID string) (*Opportunity, error) {
	if source == "" || sourceID == "" {
		return nil, nil
	}

	var row opportunityRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE source = ? AND source_id = ?
	`), source, sourceID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find opportunity by source id: %w", err)
	}

	opp := row.toOpportunity()
	return &opp, nil
}

func (r *OpportunityRepo) FindByFuzzyKey(ctx context.Context, key FuzzyKey, includeDeleted bool) ([]Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE type = ?`
	if !includeDeleted {
		query += ` AND is_deleted = FALSE`
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	var rows []opportunityRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), string(key.Type)); err != nil {
		return nil, fmt.Errorf("failed to find fuzzy match candidates: %w", err)
	}

	return toOpportunities(rows), nil
}

func (r *OpportunityRepo) Insert(ctx context.Context, opp *Opportunity) (int64, error) {
	now := r.now()
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = now
	}
	if opp.UpdatedAt.IsZero() {
		opp.UpdatedAt = now
	}

	var id int64
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO opportunities (
			title, company, location, description, requirements, type, category,
			salary, deadline, application_url, source, source_id, source_url,
			last_fetched_at, auto_fetched, is_deleted, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), opp.Title, opp.Company, opp.Location, opp.Description, opp.Requirements,
		string(opp.Type), opp.Category, opp.Salary, nullTime(opp.Deadline),
		opp.ApplicationURL, nullString(opp.Source), nullString(opp.SourceID),
		opp.SourceURL, nullTime(opp.LastFetchedAt), opp.AutoFetched, opp.IsDeleted,
		opp.CreatedAt, opp.UpdatedAt).Scan(&id)

	if isUniqueViolation(err) {
		return 0, fmt.Errorf("failed to insert opportunity %s/%s: %w", opp.Source, opp.SourceID, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert opportunity: %w", err)
	}

	opp.ID = id
	return id, nil
}

// Update rewrites the descriptive and fetch columns of opp.ID. Identity,
// provenance and created_at are never touched.
func (r *OpportunityRepo) Update(ctx context.Context, opp *Opportunity) error {
	opp.UpdatedAt = r.now()

	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE opportunities
		SET title = ?, company = ?, location = ?, description = ?, requirements = ?,
		    type = ?, category = ?, salary = ?, deadline = ?, application_url = ?,
		    source_url = ?, last_fetched_at = ?, updated_at = ?
		WHERE id = ?
	`), opp.Title, opp.Company, opp.Location, opp.Description, opp.Requirements,
		string(opp.Type), opp.Category, opp.Salary, nullTime(opp.Deadline),
		opp.ApplicationURL, opp.SourceURL, nullTime(opp.LastFetchedAt), opp.UpdatedAt,
		opp.ID)
	if err != nil {
		return fmt.Errorf("failed to update opportunity %d: %w", opp.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update opportunity %d: %w", opp.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("opportunity %d not found", opp.ID)
	}

	return nil
}

func (r *OpportunityRepo) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE opportunities SET is_deleted = TRUE, updated_at = ? WHERE id = ?
	`), r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to soft delete opportunity %d: %w", id, err)
	}
	return nil
}

func (r *OpportunityRepo) ListActive(ctx context.Context, filter ListFilter) ([]Opportunity, error) {
	var (
		conditions = []string{"is_deleted = FALSE"}
		args       []any
	)

	if filter.AutoFetchedOnly {
		conditions = append(conditions, "auto_fetched = TRUE")
	}
	if filter.SourceContains != "" {
		conditions = append(conditions, "LOWER(source) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.SourceContains)+"%")
	}

	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []opportunityRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list active opportunities: %w", err)
	}

	return toOpportunities(rows), nil
}

func (r *OpportunityRepo) GetStats(ctx context.Context) (*OpportunityStats, error) {
	var stats OpportunityStats
	err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_deleted = FALSE THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN auto_fetched = TRUE THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN is_deleted = TRUE THEN 1 ELSE 0 END), 0)
		FROM opportunities
	`).Scan(&stats.Total, &stats.Active, &stats.AutoFetched, &stats.Deleted)
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity stats: %w", err)
	}
	return &stats, nil
}

func toOpportunities(rows []opportunityRow) []Opportunity {
	opportunities := make([]Opportunity, 0, len(rows))
	for _, row := range rows {
		opportunities = append(opportunities, row.toOpportunity())
	}
	return opportunities
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
