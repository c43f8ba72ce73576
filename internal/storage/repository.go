package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"rewards/internal/core"
	"rewards/internal/sources"

	_ "modernc.org/sqlite"
)

// SQLiteRepository serves report collections from a local replica of the
// rewards API.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ sources.Source = (*SQLiteRepository)(nil)

// Dataset groups the collections mirrored by Import.
type Dataset struct {
	Nominations []core.Nomination
	Rewards     []core.Reward
	Categories  []core.RewardCategory
	Employees   []core.Employee
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Import replaces the replica contents with d in a single transaction, so
// records deleted upstream disappear with the next sync. Readers see either
// the old or the new dataset.
func (r *SQLiteRepository) Import(ctx context.Context, d Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := r.queries.WithTx(tx)
	if err := q.DeleteNominations(ctx); err != nil {
		return fmt.Errorf("clear nominations: %w", err)
	}
	if err := q.DeleteRewards(ctx); err != nil {
		return fmt.Errorf("clear rewards: %w", err)
	}
	if err := q.DeleteCategories(ctx); err != nil {
		return fmt.Errorf("clear reward categories: %w", err)
	}
	if err := q.DeleteEmployees(ctx); err != nil {
		return fmt.Errorf("clear employees: %w", err)
	}
	for _, c := range d.Categories {
		if err := q.UpsertCategory(ctx, CategoryRow{CategoryID: c.ID, CategoryName: c.Name}); err != nil {
			return fmt.Errorf("upsert category %d: %w", c.ID, err)
		}
	}
	for _, rw := range d.Rewards {
		if err := q.UpsertReward(ctx, RewardRow{RewardID: rw.ID, RewardName: rw.Name, CategoryID: rw.CategoryID}); err != nil {
			return fmt.Errorf("upsert reward %d: %w", rw.ID, err)
		}
	}
	for _, e := range d.Employees {
		row := EmployeeRow{EmployeeID: e.ID, FirstName: e.FirstName, LastName: e.LastName, DepartmentID: e.DepartmentID}
		if err := q.UpsertEmployee(ctx, row); err != nil {
			return fmt.Errorf("upsert employee %d: %w", e.ID, err)
		}
	}
	for _, n := range d.Nominations {
		if err := q.UpsertNomination(ctx, nominationRow(n)); err != nil {
			return fmt.Errorf("upsert nomination %d: %w", n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Replica import completed",
		"nominations", len(d.Nominations),
		"rewards", len(d.Rewards),
		"categories", len(d.Categories),
		"employees", len(d.Employees))
	return nil
}

// ListNominations implements sources.NominationLister
func (r *SQLiteRepository) ListNominations(ctx context.Context) ([]core.Nomination, error) {
	rows, err := r.queries.ListNominations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list nominations: %w", err)
	}
	out := make([]core.Nomination, 0, len(rows))
	for _, row := range rows {
		n := core.Nomination{
			ID:          row.NominationID,
			NomineeID:   row.NomineeID,
			NominatorID: row.NominatorID,
			RewardID:    row.RewardID,
		}
		if row.NominationDate.Valid {
			n.Date = core.ParseDate(row.NominationDate.String)
		}
		if row.ApprovalStatus.Valid {
			n.ApprovalStatus = core.Status(core.ApprovalStatus(row.ApprovalStatus.String))
		}
		out = append(out, n)
	}
	return out, nil
}

// ListRewards implements sources.RewardLister
func (r *SQLiteRepository) ListRewards(ctx context.Context) ([]core.Reward, error) {
	rows, err := r.queries.ListRewards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	out := make([]core.Reward, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Reward{ID: row.RewardID, Name: row.RewardName, CategoryID: row.CategoryID})
	}
	return out, nil
}

// ListRewardCategories implements sources.CategoryLister
func (r *SQLiteRepository) ListRewardCategories(ctx context.Context) ([]core.RewardCategory, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reward categories: %w", err)
	}
	out := make([]core.RewardCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.RewardCategory{ID: row.CategoryID, Name: row.CategoryName})
	}
	return out, nil
}

// ListEmployees implements sources.EmployeeLister
func (r *SQLiteRepository) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	rows, err := r.queries.ListEmployees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	out := make([]core.Employee, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.Employee{
			ID:           row.EmployeeID,
			FirstName:    row.FirstName,
			LastName:     row.LastName,
			DepartmentID: row.DepartmentID,
		})
	}
	return out, nil
}

func nominationRow(n core.Nomination) NominationRow {
	row := NominationRow{
		NominationID: n.ID,
		NomineeID:    n.NomineeID,
		NominatorID:  n.NominatorID,
		RewardID:     n.RewardID,
	}
	if n.Date.Raw != "" {
		row.NominationDate = sql.NullString{String: n.Date.Raw, Valid: true}
	}
	if n.ApprovalStatus != nil {
		row.ApprovalStatus = sql.NullString{String: string(*n.ApprovalStatus), Valid: true}
	}
	return row
}
