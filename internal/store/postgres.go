package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---- users ----

func (s *PostgresStore) EnsureUser(ctx context.Context, user User) (User, error) {
	const findUser = `SELECT id, name, email, created_at FROM users WHERE email = $1`
	var existing User
	err := s.db.QueryRowContext(ctx, findUser, user.Email).Scan(&existing.ID, &existing.Name, &existing.Email, &existing.CreatedAt)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, created_at
	`, user.ID, user.Name, user.Email).Scan(&existing.ID, &existing.Name, &existing.Email, &existing.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return existing, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, created_at FROM users WHERE id=$1`, userID).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, created_at FROM users WHERE email=$1`, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ---- workspaces ----

// InsertWorkspace writes the workspace and its owner membership edge as one
// unit, so the owner-in-members invariant holds from the first read.
func (s *PostgresStore) InsertWorkspace(ctx context.Context, workspace Workspace) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspaces (id, name, description, color, owner_id)
			VALUES ($1, $2, $3, $4, $5)
		`, workspace.ID, workspace.Name, workspace.Description, workspace.Color, workspace.OwnerID); err != nil {
			return fmt.Errorf("insert workspace: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id, role)
			VALUES ($1, $2, 'owner')
		`, workspace.ID, workspace.OwnerID); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, owner_id, created_at, updated_at
		FROM workspaces
		WHERE id=$1
	`, workspaceID).Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.id, w.name, w.description, w.color, w.owner_id, w.created_at, w.updated_at
		FROM workspaces w
		JOIN workspace_members wm ON wm.workspace_id = w.id
		WHERE wm.user_id=$1
		ORDER BY w.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var item Workspace
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Color, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name, description, color string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workspaces
		SET name=$2, description=$3, color=$4, updated_at=NOW()
		WHERE id=$1
	`, workspaceID, name, description, color)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (WorkspaceMember, error) {
	var member WorkspaceMember
	err := s.db.QueryRowContext(ctx, `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID).Scan(&member.WorkspaceID, &member.UserID, &member.Role, &member.JoinedAt)
	if err != nil {
		return WorkspaceMember{}, err
	}
	return member, nil
}

func (s *PostgresStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]WorkspaceMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id=$1
		ORDER BY joined_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace members: %w", err)
	}
	defer rows.Close()

	items := make([]WorkspaceMember, 0)
	for rows.Next() {
		var item WorkspaceMember
		if err := rows.Scan(&item.WorkspaceID, &item.UserID, &item.Role, &item.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan workspace member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspace members: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) AddWorkspaceMember(ctx context.Context, member WorkspaceMember) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
	`, member.WorkspaceID, member.UserID, member.Role, member.JoinedAt)
	if err != nil {
		return fmt.Errorf("add workspace member: %w", err)
	}
	return nil
}

// UpdateWorkspaceMemberRole rewrites one member's role. Last writer wins on
// concurrent updates. Returns false when the member does not exist.
func (s *PostgresStore) UpdateWorkspaceMemberRole(ctx context.Context, workspaceID, userID, role string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workspace_members SET role=$3
		WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID, role)
	if err != nil {
		return false, fmt.Errorf("update member role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update member role rows: %w", err)
	}
	return affected > 0, nil
}

// TransferOwnership demotes the old owner to admin, promotes the new owner
// and rewrites the owner field in one transaction, so no reader can observe
// a workspace with zero or two owners.
func (s *PostgresStore) TransferOwnership(ctx context.Context, workspaceID, oldOwnerID, newOwnerID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE workspace_members SET role='admin'
			WHERE workspace_id=$1 AND user_id=$2 AND role='owner'
		`, workspaceID, oldOwnerID); err != nil {
			return fmt.Errorf("demote old owner: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE workspace_members SET role='owner'
			WHERE workspace_id=$1 AND user_id=$2
		`, workspaceID, newOwnerID); err != nil {
			return fmt.Errorf("promote new owner: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE workspaces SET owner_id=$2, updated_at=NOW() WHERE id=$1
		`, workspaceID, newOwnerID); err != nil {
			return fmt.Errorf("update workspace owner: %w", err)
		}
		return nil
	})
}

// DeleteWorkspaceCascade removes every child of the workspace before the
// workspace row itself. Children go first so a crash mid-sequence can only
// leave orphans discoverable by a sweep, never a parent pointing at nothing.
func (s *PostgresStore) DeleteWorkspaceCascade(ctx context.Context, workspaceID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		const taskScope = `SELECT t.id FROM tasks t JOIN projects p ON p.id = t.project_id WHERE p.workspace_id=$1`
		steps := []struct {
			name  string
			query string
		}{
			{"delete subtasks", `DELETE FROM subtasks WHERE task_id IN (` + taskScope + `)`},
			{"delete attachments", `DELETE FROM attachments WHERE task_id IN (` + taskScope + `)`},
			{"delete comments", `DELETE FROM comments WHERE task_id IN (` + taskScope + `)`},
			{"delete task assignees", `DELETE FROM task_assignees WHERE task_id IN (` + taskScope + `)`},
			{"delete task watchers", `DELETE FROM task_watchers WHERE task_id IN (` + taskScope + `)`},
			{"delete tasks", `DELETE FROM tasks WHERE project_id IN (SELECT id FROM projects WHERE workspace_id=$1)`},
			{"delete project members", `DELETE FROM project_members WHERE project_id IN (SELECT id FROM projects WHERE workspace_id=$1)`},
			{"delete projects", `DELETE FROM projects WHERE workspace_id=$1`},
			{"delete invites", `DELETE FROM workspace_invites WHERE workspace_id=$1`},
			{"delete memberships", `DELETE FROM workspace_members WHERE workspace_id=$1`},
			{"delete workspace", `DELETE FROM workspaces WHERE id=$1`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, workspaceID); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
}

// ---- invites ----

func (s *PostgresStore) GetInvite(ctx context.Context, userID, workspaceID string) (WorkspaceInvite, error) {
	var invite WorkspaceInvite
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, workspace_id, token_hash, role, expires_at, created_at
		FROM workspace_invites
		WHERE user_id=$1 AND workspace_id=$2
	`, userID, workspaceID).Scan(&invite.ID, &invite.UserID, &invite.WorkspaceID, &invite.TokenHash, &invite.Role, &invite.ExpiresAt, &invite.CreatedAt)
	if err != nil {
		return WorkspaceInvite{}, err
	}
	return invite, nil
}

func (s *PostgresStore) InsertInvite(ctx context.Context, invite WorkspaceInvite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_invites (id, user_id, workspace_id, token_hash, role, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, invite.ID, invite.UserID, invite.WorkspaceID, invite.TokenHash, invite.Role, invite.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteInvite(ctx context.Context, inviteID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workspace_invites WHERE id=$1`, inviteID)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}

// RedeemInvite applies the three redemption effects atomically: membership
// append, invite removal, activity record. Partial application would leave a
// stale invite or a missing membership edge.
func (s *PostgresStore) RedeemInvite(ctx context.Context, inviteID string, member WorkspaceMember, activity ActivityEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO workspace_members (workspace_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, member.WorkspaceID, member.UserID, member.Role, member.JoinedAt); err != nil {
			return fmt.Errorf("append membership: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM workspace_invites WHERE id=$1`, inviteID); err != nil {
			return fmt.Errorf("consume invite: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activity_logs (id, user_id, action, resource_type, resource_id, description)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, activity.ID, activity.UserID, activity.Action, activity.ResourceType, activity.ResourceID, activity.Description); err != nil {
			return fmt.Errorf("record join activity: %w", err)
		}
		return nil
	})
}

// ---- projects ----

func (s *PostgresStore) InsertProject(ctx context.Context, project Project, members []ProjectMember) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, workspace_id, title, description, status, tags, created_by)
			VALUES ($1, $2, $3, $4, $5, string_to_array(NULLIF($6, ''), ','), $7)
		`, project.ID, project.WorkspaceID, project.Title, project.Description, project.Status, joinTags(project.Tags), project.CreatedBy); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		for _, member := range members {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO project_members (project_id, user_id, role)
				VALUES ($1, $2, $3)
				ON CONFLICT (project_id, user_id) DO NOTHING
			`, project.ID, member.UserID, member.Role); err != nil {
				return fmt.Errorf("insert project member: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var item Project
	var tags string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, title, description, status, array_to_string(tags, ','), is_archived, created_by, created_at, updated_at
		FROM projects
		WHERE id=$1
	`, projectID).Scan(&item.ID, &item.WorkspaceID, &item.Title, &item.Description, &item.Status, &tags, &item.IsArchived, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Project{}, err
	}
	item.Tags = splitTags(tags)
	return item, nil
}

func (s *PostgresStore) ListProjectsForMember(ctx context.Context, workspaceID, userID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.workspace_id, p.title, p.description, p.status, array_to_string(p.tags, ','), p.is_archived, p.created_by, p.created_at, p.updated_at
		FROM projects p
		JOIN project_members pm ON pm.project_id = p.id
		WHERE p.workspace_id=$1 AND pm.user_id=$2 AND p.is_archived=FALSE
		ORDER BY p.created_at DESC
	`, workspaceID, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *PostgresStore) ListProjects(ctx context.Context, workspaceID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, description, status, array_to_string(tags, ','), is_archived, created_by, created_at, updated_at
		FROM projects
		WHERE workspace_id=$1
		ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list workspace projects: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func (s *PostgresStore) ListArchivedProjects(ctx context.Context, workspaceID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, title, description, status, array_to_string(tags, ','), is_archived, created_by, created_at, updated_at
		FROM projects
		WHERE workspace_id=$1 AND is_archived=TRUE
		ORDER BY created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list archived projects: %w", err)
	}
	defer rows.Close()
	return scanProjects(rows)
}

func scanProjects(rows *sql.Rows) ([]Project, error) {
	items := make([]Project, 0)
	for rows.Next() {
		var item Project
		var tags string
		if err := rows.Scan(&item.ID, &item.WorkspaceID, &item.Title, &item.Description, &item.Status, &tags, &item.IsArchived, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		item.Tags = splitTags(tags)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID, title, description, status string, tags []string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE projects
		SET title=$2, description=$3, status=$4, tags=COALESCE(string_to_array(NULLIF($5, ''), ','), '{}'), updated_at=NOW()
		WHERE id=$1
	`, projectID, title, description, status, joinTags(tags))
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// ToggleProjectArchived flips the archived flag and returns the new value.
func (s *PostgresStore) ToggleProjectArchived(ctx context.Context, projectID string) (bool, error) {
	var archived bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE projects SET is_archived = NOT is_archived, updated_at=NOW()
		WHERE id=$1
		RETURNING is_archived
	`, projectID).Scan(&archived)
	if err != nil {
		return false, fmt.Errorf("toggle project archived: %w", err)
	}
	return archived, nil
}

func (s *PostgresStore) GetProjectMember(ctx context.Context, projectID, userID string) (ProjectMember, error) {
	var member ProjectMember
	err := s.db.QueryRowContext(ctx, `
		SELECT project_id, user_id, role
		FROM project_members
		WHERE project_id=$1 AND user_id=$2
	`, projectID, userID).Scan(&member.ProjectID, &member.UserID, &member.Role)
	if err != nil {
		return ProjectMember{}, err
	}
	return member, nil
}

// DeleteProjectCascade deletes the project's tasks and their children, then
// the project's notifications, then the project itself.
func (s *PostgresStore) DeleteProjectCascade(ctx context.Context, projectID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		const taskScope = `SELECT id FROM tasks WHERE project_id=$1`
		steps := []struct {
			name  string
			query string
		}{
			{"delete subtasks", `DELETE FROM subtasks WHERE task_id IN (` + taskScope + `)`},
			{"delete attachments", `DELETE FROM attachments WHERE task_id IN (` + taskScope + `)`},
			{"delete comments", `DELETE FROM comments WHERE task_id IN (` + taskScope + `)`},
			{"delete task assignees", `DELETE FROM task_assignees WHERE task_id IN (` + taskScope + `)`},
			{"delete task watchers", `DELETE FROM task_watchers WHERE task_id IN (` + taskScope + `)`},
			{"delete tasks", `DELETE FROM tasks WHERE project_id=$1`},
			{"delete project members", `DELETE FROM project_members WHERE project_id=$1`},
			{"delete project notifications", `DELETE FROM notifications WHERE target_type='project' AND target_id=$1`},
			{"delete project", `DELETE FROM projects WHERE id=$1`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, projectID); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
}

// ---- tasks ----

func (s *PostgresStore) InsertTask(ctx context.Context, task Task) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, project_id, title, description, status, priority, due_date, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, task.ID, task.ProjectID, task.Title, task.Description, task.Status, task.Priority, task.DueDate, task.CreatedBy); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		for _, userID := range task.Assignees {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO task_assignees (task_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (task_id, user_id) DO NOTHING
			`, task.ID, userID); err != nil {
				return fmt.Errorf("insert task assignee: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	var item Task
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, title, description, status, priority, due_date, is_archived, created_by, created_at, updated_at
		FROM tasks
		WHERE id=$1
	`, taskID).Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.Status, &item.Priority, &item.DueDate, &item.IsArchived, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	if item.Assignees, err = s.listTaskUsers(ctx, "task_assignees", taskID); err != nil {
		return Task{}, err
	}
	if item.Watchers, err = s.listTaskUsers(ctx, "task_watchers", taskID); err != nil {
		return Task{}, err
	}
	return item, nil
}

func (s *PostgresStore) listTaskUsers(ctx context.Context, table, taskID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM `+table+` WHERE task_id=$1 ORDER BY user_id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	users := make([]string, 0)
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return users, nil
}

func (s *PostgresStore) ListTasksForProject(ctx context.Context, projectID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority, t.due_date, t.is_archived, t.created_by, t.created_at, t.updated_at,
			COALESCE((SELECT array_to_string(array_agg(ta.user_id ORDER BY ta.user_id), ',') FROM task_assignees ta WHERE ta.task_id = t.id), '')
		FROM tasks t
		WHERE t.project_id=$1 AND t.is_archived=FALSE
		ORDER BY t.created_at DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *PostgresStore) ListTasksAssignedTo(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority, t.due_date, t.is_archived, t.created_by, t.created_at, t.updated_at,
			COALESCE((SELECT array_to_string(array_agg(ta2.user_id ORDER BY ta2.user_id), ',') FROM task_assignees ta2 WHERE ta2.task_id = t.id), '')
		FROM tasks t
		JOIN task_assignees ta ON ta.task_id = t.id
		WHERE ta.user_id=$1
		ORDER BY t.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (s *PostgresStore) ListArchivedTasks(ctx context.Context, workspaceID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority, t.due_date, t.is_archived, t.created_by, t.created_at, t.updated_at,
			COALESCE((SELECT array_to_string(array_agg(ta.user_id ORDER BY ta.user_id), ',') FROM task_assignees ta WHERE ta.task_id = t.id), '')
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE p.workspace_id=$1 AND t.is_archived=TRUE
		ORDER BY t.created_at DESC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list archived tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// DueSoonTasks returns non-archived, unfinished tasks whose due date falls
// inside [from, to], assignees included, for the reminder job.
func (s *PostgresStore) DueSoonTasks(ctx context.Context, from, to time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.project_id, t.title, t.description, t.status, t.priority, t.due_date, t.is_archived, t.created_by, t.created_at, t.updated_at,
			COALESCE((SELECT array_to_string(array_agg(ta.user_id ORDER BY ta.user_id), ',') FROM task_assignees ta WHERE ta.task_id = t.id), '')
		FROM tasks t
		WHERE t.due_date IS NOT NULL
		  AND t.due_date >= $1 AND t.due_date <= $2
		  AND t.status <> 'Done'
		  AND t.is_archived=FALSE
		ORDER BY t.due_date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due soon tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		var assignees string
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description, &item.Status, &item.Priority, &item.DueDate, &item.IsArchived, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &assignees); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		item.Assignees = splitTags(assignees)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateTaskTitle(ctx context.Context, taskID, title string) error {
	return s.updateTaskField(ctx, taskID, "title", title)
}

func (s *PostgresStore) UpdateTaskDescription(ctx context.Context, taskID, description string) error {
	return s.updateTaskField(ctx, taskID, "description", description)
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID, status string) error {
	return s.updateTaskField(ctx, taskID, "status", status)
}

func (s *PostgresStore) UpdateTaskPriority(ctx context.Context, taskID, priority string) error {
	return s.updateTaskField(ctx, taskID, "priority", priority)
}

func (s *PostgresStore) updateTaskField(ctx context.Context, taskID, column, value string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+column+`=$2, updated_at=NOW() WHERE id=$1`, taskID, value)
	if err != nil {
		return fmt.Errorf("update task %s: %w", column, err)
	}
	return nil
}

func (s *PostgresStore) ReplaceTaskAssignees(ctx context.Context, taskID string, assignees []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=$1`, taskID); err != nil {
			return fmt.Errorf("clear task assignees: %w", err)
		}
		for _, userID := range assignees {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO task_assignees (task_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT (task_id, user_id) DO NOTHING
			`, taskID, userID); err != nil {
				return fmt.Errorf("insert task assignee: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at=NOW() WHERE id=$1`, taskID); err != nil {
			return fmt.Errorf("touch task: %w", err)
		}
		return nil
	})
}

// ToggleTaskWatcher adds the user as a watcher, or removes them if already
// watching. Returns true when the user is watching after the call.
func (s *PostgresStore) ToggleTaskWatcher(ctx context.Context, taskID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM task_watchers WHERE task_id=$1 AND user_id=$2
	`, taskID, userID)
	if err != nil {
		return false, fmt.Errorf("delete task watcher: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task watcher rows: %w", err)
	}
	if affected > 0 {
		return false, nil
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO task_watchers (task_id, user_id) VALUES ($1, $2)
	`, taskID, userID); err != nil {
		return false, fmt.Errorf("insert task watcher: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ToggleTaskArchived(ctx context.Context, taskID string) (bool, error) {
	var archived bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE tasks SET is_archived = NOT is_archived, updated_at=NOW()
		WHERE id=$1
		RETURNING is_archived
	`, taskID).Scan(&archived)
	if err != nil {
		return false, fmt.Errorf("toggle task archived: %w", err)
	}
	return archived, nil
}

// DeleteTaskCascade removes the task's inline children and its activity
// entries before the task row.
func (s *PostgresStore) DeleteTaskCascade(ctx context.Context, taskID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		steps := []struct {
			name  string
			query string
		}{
			{"delete subtasks", `DELETE FROM subtasks WHERE task_id=$1`},
			{"delete attachments", `DELETE FROM attachments WHERE task_id=$1`},
			{"delete comments", `DELETE FROM comments WHERE task_id=$1`},
			{"delete task assignees", `DELETE FROM task_assignees WHERE task_id=$1`},
			{"delete task watchers", `DELETE FROM task_watchers WHERE task_id=$1`},
			{"delete task activity", `DELETE FROM activity_logs WHERE resource_id=$1`},
			{"delete task", `DELETE FROM tasks WHERE id=$1`},
		}
		for _, step := range steps {
			if _, err := tx.ExecContext(ctx, step.query, taskID); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
}

// ---- subtasks, attachments, comments ----

func (s *PostgresStore) InsertSubtask(ctx context.Context, subtask Subtask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subtasks (id, task_id, title, completed)
		VALUES ($1, $2, $3, $4)
	`, subtask.ID, subtask.TaskID, subtask.Title, subtask.Completed)
	if err != nil {
		return fmt.Errorf("insert subtask: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, title, completed, created_at
		FROM subtasks
		WHERE task_id=$1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	items := make([]Subtask, 0)
	for rows.Next() {
		var item Subtask
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Title, &item.Completed, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subtasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSubtaskCompleted(ctx context.Context, taskID, subtaskID string, completed bool) (Subtask, error) {
	var item Subtask
	err := s.db.QueryRowContext(ctx, `
		UPDATE subtasks SET completed=$3
		WHERE task_id=$1 AND id=$2
		RETURNING id, task_id, title, completed, created_at
	`, taskID, subtaskID, completed).Scan(&item.ID, &item.TaskID, &item.Title, &item.Completed, &item.CreatedAt)
	if err != nil {
		return Subtask{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (id, task_id, kind, file_name, file_url, file_type, file_size, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, attachment.ID, attachment.TaskID, attachment.Kind, attachment.FileName, attachment.FileURL, attachment.FileType, attachment.FileSize, attachment.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, taskID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, kind, file_name, file_url, file_type, file_size, uploaded_by, created_at
		FROM attachments
		WHERE task_id=$1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Kind, &item.FileName, &item.FileURL, &item.FileType, &item.FileSize, &item.UploadedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, taskID, attachmentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM attachments WHERE task_id=$1 AND id=$2
	`, taskID, attachmentID)
	if err != nil {
		return false, fmt.Errorf("delete attachment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attachment rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, task_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.TaskID, comment.Author, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, author_id, body, created_at
		FROM comments
		WHERE task_id=$1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.TaskID, &item.Author, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ---- notifications ----

func (s *PostgresStore) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, title, message, target_type, target_id, project_id, workspace_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, notification.ID, notification.UserID, notification.Title, notification.Message, notification.TargetType, notification.TargetID, notification.ProjectID, notification.WorkspaceID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, is_read, target_type, target_id, project_id, workspace_id, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Message, &item.IsRead, &item.TargetType, &item.TargetID, &item.ProjectID, &item.WorkspaceID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

// MarkNotificationRead is recipient-scoped: an id owned by another user
// matches nothing and is reported as not found, not as an error.
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read=TRUE WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteNotification(ctx context.Context, userID, notificationID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id=$1 AND user_id=$2
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete notification rows: %w", err)
	}
	return affected > 0, nil
}

// NotificationExists is the reminder job's dedup check.
func (s *PostgresStore) NotificationExists(ctx context.Context, userID, targetType, targetID, title string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE user_id=$1 AND target_type=$2 AND target_id=$3 AND title=$4
		)
	`, userID, targetType, targetID, title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification exists: %w", err)
	}
	return exists, nil
}

// ---- activity ----

func (s *PostgresStore) InsertActivity(ctx context.Context, entry ActivityEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, resource_type, resource_id, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.UserID, entry.Action, entry.ResourceType, entry.ResourceID, entry.Description)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActivityByResource(ctx context.Context, resourceID string) ([]ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, resource_type, resource_id, description, created_at
		FROM activity_logs
		WHERE resource_id=$1
		ORDER BY created_at DESC
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	items := make([]ActivityEntry, 0)
	for rows.Next() {
		var item ActivityEntry
		if err := rows.Scan(&item.ID, &item.UserID, &item.Action, &item.ResourceType, &item.ResourceID, &item.Description, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return items, nil
}

// ---- helpers ----

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(joined string) []string {
	if joined == "" {
		return []string{}
	}
	return strings.Split(joined, ",")
}
