package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskdesk/domain"
	"github.com/fastygo/taskdesk/repository"
)

const taskColumns = `id, title, description, instruction, department, created_by, assigned_to, user_role,
	status, priority, due_date, progress, documents, approved_by, approved_at, version, created_at, updated_at`

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	query, args := listQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// listQuery builds the listing statement. Without a limit every matching
// row is returned.
func listQuery(filter repository.TaskFilter) (string, []interface{}) {
	query := `SELECT ` + taskColumns + `
	FROM tasks
	WHERE ($1 = '' OR assigned_to = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY created_at DESC, id`
	args := []interface{}{filter.AssignedTo, string(filter.Status)}

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Version == 0 {
		task.Version = 1
	}

	const query = `
	INSERT INTO tasks (id, title, description, instruction, department, created_by, assigned_to, user_role,
		status, priority, due_date, progress, documents, version, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, NOW()))
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Instruction,
		task.Department,
		task.CreatedBy,
		task.AssignedTo,
		string(task.UserRole),
		string(task.Status),
		string(task.Priority),
		task.DueDate,
		task.Progress,
		marshalDocuments(task.Documents),
		task.Version,
		nullTime(task.CreatedAt),
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, err
	}

	return task, nil
}

// Update never touches created_by, created_at or department.
func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE tasks
	SET title = $3,
		description = $4,
		instruction = $5,
		assigned_to = $6,
		status = $7,
		priority = $8,
		due_date = $9,
		progress = $10,
		documents = $11,
		approved_by = $12,
		approved_at = $13,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND version = $2
	RETURNING version, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Version,
		task.Title,
		task.Description,
		task.Instruction,
		task.AssignedTo,
		string(task.Status),
		string(task.Priority),
		task.DueDate,
		task.Progress,
		marshalDocuments(task.Documents),
		task.ApprovedBy,
		task.ApprovedAt,
	).Scan(&task.Version, &task.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrTaskNotFound
	}
	return domain.ErrVersionConflict
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var task domain.Task
	var (
		userRole, status, priority string
		documents                  []byte
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Instruction,
		&task.Department,
		&task.CreatedBy,
		&task.AssignedTo,
		&userRole,
		&status,
		&priority,
		&task.DueDate,
		&task.Progress,
		&documents,
		&task.ApprovedBy,
		&task.ApprovedAt,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.UserRole = domain.Role(userRole)
	task.Status = domain.Status(status)
	task.Priority = domain.Priority(priority)
	docs, err := unmarshalDocuments(documents)
	if err != nil {
		return nil, fmt.Errorf("task %s documents: %w", task.ID, err)
	}
	task.Documents = docs

	return &task, nil
}
