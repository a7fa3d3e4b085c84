package repository

import (
	"context"
	"fmt"
	"strings"

	"taskmanager/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `t.id, t.name, t.description, t.status, t.priority, t.author_id, u.email`

func (r *TaskRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE name = $1)`, name,
	).Scan(&exists)
	return exists, err
}

func (r *TaskRepository) FindByName(ctx context.Context, name string) (*domain.Task, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT `+taskColumns+`
		 FROM tasks t
		 JOIN users u ON u.id = t.author_id
		 WHERE t.name = $1`,
		name,
	)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	err := conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO tasks (name, description, status, priority, author_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		t.Name, t.Description, string(t.Status), string(t.Priority), t.AuthorID,
	).Scan(&t.ID)
	if isUniqueViolation(err) {
		return domain.ErrRecordExists
	}
	return err
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE tasks SET description = $1, status = $2, priority = $3 WHERE id = $4`,
		t.Description, string(t.Status), string(t.Priority), t.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DeleteByName relies on ON DELETE CASCADE for comments and executors_tasks.
func (r *TaskRepository) DeleteByName(ctx context.Context, name string) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM tasks WHERE name = $1`, name)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *TaskRepository) AddExecutor(ctx context.Context, taskID, userID int64) error {
	_, err := conn(ctx, r.db).Exec(ctx,
		`INSERT INTO executors_tasks (task_id, executor_id)
		 VALUES ($1, $2)
		 ON CONFLICT (task_id, executor_id) DO NOTHING`,
		taskID, userID,
	)
	return err
}

func (r *TaskRepository) IsExecutor(ctx context.Context, taskID int64, email string) (bool, error) {
	var ok bool
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM executors_tasks et
			JOIN users e ON e.id = et.executor_id
			WHERE et.task_id = $1 AND e.email = $2)`,
		taskID, email,
	).Scan(&ok)
	return ok, err
}

func (r *TaskRepository) ListExecutors(ctx context.Context, taskID int64) ([]domain.User, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT u.id, u.email, u.created_at
		 FROM executors_tasks et
		 JOIN users u ON u.id = et.executor_id
		 WHERE et.task_id = $1
		 ORDER BY et.id`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *TaskRepository) AddComment(ctx context.Context, c *domain.Comment) error {
	return conn(ctx, r.db).QueryRow(ctx,
		`INSERT INTO comments (author_id, text, task_id)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		c.AuthorID, c.Text, c.TaskID,
	).Scan(&c.ID)
}

func (r *TaskRepository) ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	rows, err := conn(ctx, r.db).Query(ctx,
		`SELECT c.id, c.task_id, c.author_id, u.email, c.text
		 FROM comments c
		 JOIN users u ON u.id = c.author_id
		 WHERE c.task_id = $1
		 ORDER BY c.id`,
		taskID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorEmail, &c.Text); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *TaskRepository) Find(ctx context.Context, q domain.TaskQuery) ([]domain.Task, error) {
	sql, args := buildFindQuery(q)
	rows, err := conn(ctx, r.db).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	return res, rows.Err()
}

func buildFindQuery(q domain.TaskQuery) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + taskColumns + `
		FROM tasks t
		JOIN users u ON u.id = t.author_id
		WHERE t.status = ANY($1) AND t.priority = ANY($2)`)
	args := []any{domain.StatusStrings(q.Statuses), domain.PriorityStrings(q.Priorities)}

	if q.AuthorEmail != "" {
		args = append(args, q.AuthorEmail)
		fmt.Fprintf(&b, ` AND u.email = $%d`, len(args))
	}
	if q.ExecutorEmail != "" {
		args = append(args, q.ExecutorEmail)
		fmt.Fprintf(&b, ` AND EXISTS (
			SELECT 1 FROM executors_tasks et
			JOIN users e ON e.id = et.executor_id
			WHERE et.task_id = t.id AND e.email = $%d)`, len(args))
	}

	args = append(args, q.Limit, q.Offset)
	fmt.Fprintf(&b, ` ORDER BY t.id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	return b.String(), args
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	var status, priority string
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &status, &priority, &t.AuthorID, &t.AuthorEmail); err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	return &t, nil
}
