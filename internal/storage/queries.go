package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type NominationRow struct {
	NominationID   int64
	NomineeID      int64
	NominatorID    int64
	RewardID       int64
	NominationDate sql.NullString
	ApprovalStatus sql.NullString
}

type RewardRow struct {
	RewardID   int64
	RewardName string
	CategoryID int64
}

type CategoryRow struct {
	CategoryID   int64
	CategoryName string
}

type EmployeeRow struct {
	EmployeeID   int64
	FirstName    string
	LastName     string
	DepartmentID int64
}

const listNominations = `SELECT nomination_id, nominee_id, nominator_id, reward_id, nomination_date, approval_status
FROM nominations ORDER BY nomination_id`

func (q *Queries) ListNominations(ctx context.Context) ([]NominationRow, error) {
	rows, err := q.db.QueryContext(ctx, listNominations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []NominationRow{}
	for rows.Next() {
		var i NominationRow
		if err := rows.Scan(&i.NominationID, &i.NomineeID, &i.NominatorID, &i.RewardID, &i.NominationDate, &i.ApprovalStatus); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listRewards = `SELECT reward_id, reward_name, category_id FROM rewards ORDER BY reward_id`

func (q *Queries) ListRewards(ctx context.Context) ([]RewardRow, error) {
	rows, err := q.db.QueryContext(ctx, listRewards)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RewardRow{}
	for rows.Next() {
		var i RewardRow
		if err := rows.Scan(&i.RewardID, &i.RewardName, &i.CategoryID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listCategories = `SELECT category_id, category_name FROM reward_categories ORDER BY category_id`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CategoryRow{}
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.CategoryID, &i.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listEmployees = `SELECT employee_id, first_name, last_name, department_id FROM employees ORDER BY employee_id`

func (q *Queries) ListEmployees(ctx context.Context) ([]EmployeeRow, error) {
	rows, err := q.db.QueryContext(ctx, listEmployees)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []EmployeeRow{}
	for rows.Next() {
		var i EmployeeRow
		if err := rows.Scan(&i.EmployeeID, &i.FirstName, &i.LastName, &i.DepartmentID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertNomination = `INSERT INTO nominations (nomination_id, nominee_id, nominator_id, reward_id, nomination_date, approval_status)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(nomination_id) DO UPDATE SET
    nominee_id = excluded.nominee_id,
    nominator_id = excluded.nominator_id,
    reward_id = excluded.reward_id,
    nomination_date = excluded.nomination_date,
    approval_status = excluded.approval_status`

func (q *Queries) UpsertNomination(ctx context.Context, arg NominationRow) error {
	_, err := q.db.ExecContext(ctx, upsertNomination,
		arg.NominationID, arg.NomineeID, arg.NominatorID, arg.RewardID, arg.NominationDate, arg.ApprovalStatus)
	return err
}

const upsertReward = `INSERT INTO rewards (reward_id, reward_name, category_id) VALUES (?, ?, ?)
ON CONFLICT(reward_id) DO UPDATE SET reward_name = excluded.reward_name, category_id = excluded.category_id`

func (q *Queries) UpsertReward(ctx context.Context, arg RewardRow) error {
	_, err := q.db.ExecContext(ctx, upsertReward, arg.RewardID, arg.RewardName, arg.CategoryID)
	return err
}

const upsertCategory = `INSERT INTO reward_categories (category_id, category_name) VALUES (?, ?)
ON CONFLICT(category_id) DO UPDATE SET category_name = excluded.category_name`

func (q *Queries) UpsertCategory(ctx context.Context, arg CategoryRow) error {
	_, err := q.db.ExecContext(ctx, upsertCategory, arg.CategoryID, arg.CategoryName)
	return err
}

const upsertEmployee = `INSERT INTO employees (employee_id, first_name, last_name, department_id) VALUES (?, ?, ?, ?)
ON CONFLICT(employee_id) DO UPDATE SET
    first_name = excluded.first_name,
    last_name = excluded.last_name,
    department_id = excluded.department_id`

func (q *Queries) UpsertEmployee(ctx context.Context, arg EmployeeRow) error {
	_, err := q.db.ExecContext(ctx, upsertEmployee, arg.EmployeeID, arg.FirstName, arg.LastName, arg.DepartmentID)
	return err
}

const deleteNominations = `DELETE FROM nominations`

func (q *Queries) DeleteNominations(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteNominations)
	return err
}

const deleteRewards = `DELETE FROM rewards`

func (q *Queries) DeleteRewards(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteRewards)
	return err
}

const deleteCategories = `DELETE FROM reward_categories`

func (q *Queries) DeleteCategories(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteCategories)
	return err
}

const deleteEmployees = `DELETE FROM employees`

func (q *Queries) DeleteEmployees(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteEmployees)
	return err
}
