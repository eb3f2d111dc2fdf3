package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"path"
	"strings"
	"time"

	"taskhub/api/internal/notify"
	"taskhub/api/internal/rbac"
	"taskhub/api/internal/search"
	"taskhub/api/internal/store"
	"taskhub/api/internal/util"
)

type CreateProjectInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	Members     []string `json:"members"`
}

type CreateTaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	Assignees   []string   `json:"assignees"`
}

// requireProjectMember resolves the project and checks the caller's
// membership. Project-tier authorization is a plain membership check; roles
// are not distinguished. Existence before membership, same as workspaces.
func (s *Service) requireProjectMember(ctx context.Context, projectID, userID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, errNotFound("project not found")
		}
		return store.Project{}, err
	}
	if _, err := s.store.GetProjectMember(ctx, projectID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Project{}, errForbidden("not a member of this project")
		}
		return store.Project{}, err
	}
	return project, nil
}

// resolveTask loads the task and gates on membership of its parent project.
func (s *Service) resolveTask(ctx context.Context, taskID, userID string) (store.Task, store.Project, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Task{}, store.Project{}, errNotFound("task not found")
		}
		return store.Task{}, store.Project{}, err
	}
	project, err := s.requireProjectMember(ctx, task.ProjectID, userID)
	if err != nil {
		return store.Task{}, store.Project{}, err
	}
	return task, project, nil
}

// ---- projects ----

func (s *Service) CreateProject(ctx context.Context, session Session, workspaceID string, input CreateProjectInput) (map[string]any, error) {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errValidation("title is required")
	}
	status := input.Status
	if status == "" {
		status = "Planning"
	}
	if _, ok := allowedProjectStatuses[status]; !ok {
		return nil, errValidation("invalid project status")
	}

	// Member snapshot: only current workspace members make it in, creator
	// always included.
	members := []store.ProjectMember{{UserID: session.UserID, Role: "manager"}}
	notified := make([]string, 0, len(input.Members))
	for _, userID := range input.Members {
		if userID == session.UserID {
			continue
		}
		if _, err := s.store.GetWorkspaceMember(ctx, workspaceID, userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		members = append(members, store.ProjectMember{UserID: userID, Role: "contributor"})
		notified = append(notified, userID)
	}

	project := store.Project{
		ID:          util.NewID("proj"),
		WorkspaceID: workspaceID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Tags:        input.Tags,
		CreatedBy:   session.UserID,
	}
	for i := range members {
		members[i].ProjectID = project.ID
	}
	if err := s.store.InsertProject(ctx, project, members); err != nil {
		return nil, err
	}

	s.notifier.Fanout(ctx, notified, notify.Event{
		Title:       "Project assigned",
		Message:     fmt.Sprintf("You were added to %q project", title),
		TargetType:  "project",
		TargetID:    project.ID,
		ProjectID:   project.ID,
		WorkspaceID: workspaceID,
	})

	s.recordActivity(ctx, session.UserID, "created", "project", project.ID,
		fmt.Sprintf("created project %s in %s", truncate(title, 50), truncate(workspace.Name, 50)))

	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{
			ID:          project.ID,
			Title:       project.Title,
			Description: project.Description,
			WorkspaceID: workspaceID,
			Status:      project.Status,
		})
	}

	return projectPayload(project), nil
}

func projectPayload(project store.Project) map[string]any {
	tags := project.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":          project.ID,
		"workspaceId": project.WorkspaceID,
		"title":       project.Title,
		"description": project.Description,
		"status":      project.Status,
		"tags":        tags,
		"isArchived":  project.IsArchived,
		"createdBy":   project.CreatedBy,
		"createdAt":   project.CreatedAt,
		"updatedAt":   project.UpdatedAt,
	}
}

func (s *Service) ListWorkspaceProjects(ctx context.Context, session Session, workspaceID string) ([]map[string]any, error) {
	if _, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionRead); err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjectsForMember(ctx, workspaceID, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		items = append(items, projectPayload(project))
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, err := s.requireProjectMember(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	taskItems := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		taskItems = append(taskItems, taskPayload(task))
	}
	payload := projectPayload(project)
	payload["tasks"] = taskItems
	return payload, nil
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID string, input CreateProjectInput) (map[string]any, error) {
	project, err := s.requireProjectMember(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = project.Title
	}
	description := input.Description
	if strings.TrimSpace(description) == "" {
		description = project.Description
	}
	status := input.Status
	if status == "" {
		status = project.Status
	}
	if _, ok := allowedProjectStatuses[status]; !ok {
		return nil, errValidation("invalid project status")
	}
	tags := input.Tags
	if tags == nil {
		tags = project.Tags
	}

	if err := s.store.UpdateProject(ctx, projectID, title, description, status, tags); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "updated", "project", projectID,
		fmt.Sprintf("updated project %s", truncate(title, 50)))

	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{
			ID:          projectID,
			Title:       title,
			Description: description,
			WorkspaceID: project.WorkspaceID,
			Status:      status,
		})
	}

	updated, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return projectPayload(updated), nil
}

func (s *Service) ToggleProjectArchived(ctx context.Context, session Session, projectID string) (map[string]any, error) {
	project, err := s.requireProjectMember(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}

	archived, err := s.store.ToggleProjectArchived(ctx, projectID)
	if err != nil {
		return nil, err
	}

	verb := "archived"
	if !archived {
		verb = "unarchived"
	}
	s.recordActivity(ctx, session.UserID, verb, "project", projectID,
		fmt.Sprintf("%s project %s", verb, truncate(project.Title, 50)))

	return map[string]any{"id": projectID, "isArchived": archived}, nil
}

// DeleteProject is creator-only. A workspace admin who did not create the
// project cannot delete it.
func (s *Service) DeleteProject(ctx context.Context, session Session, projectID string) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("project not found")
		}
		return err
	}
	if project.CreatedBy != session.UserID {
		return errForbidden("only the project creator can delete it")
	}

	tasks, err := s.store.ListTasksForProject(ctx, projectID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteProjectCascade(ctx, projectID); err != nil {
		return err
	}

	if s.search != nil {
		s.search.DeleteProject(projectID)
		for _, task := range tasks {
			s.search.DeleteTask(task.ID)
		}
	}

	s.recordActivity(ctx, session.UserID, "deleted", "project", project.WorkspaceID,
		fmt.Sprintf("deleted project %s", truncate(project.Title, 50)))
	return nil
}

func (s *Service) ListArchived(ctx context.Context, session Session, workspaceID string) (map[string]any, error) {
	if _, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionRead); err != nil {
		return nil, err
	}

	projects, err := s.store.ListArchivedProjects(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListArchivedTasks(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	projectItems := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		projectItems = append(projectItems, projectPayload(project))
	}
	taskItems := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		taskItems = append(taskItems, taskPayload(task))
	}
	return map[string]any{"projects": projectItems, "tasks": taskItems}, nil
}

// ---- tasks ----

func (s *Service) CreateTask(ctx context.Context, session Session, projectID string, input CreateTaskInput) (map[string]any, error) {
	project, err := s.requireProjectMember(ctx, projectID, session.UserID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errValidation("title is required")
	}
	status := input.Status
	if status == "" {
		status = "To Do"
	}
	if _, ok := allowedTaskStatuses[status]; !ok {
		return nil, errValidation("invalid task status")
	}
	priority := input.Priority
	if priority == "" {
		priority = "Medium"
	}
	if _, ok := allowedTaskPriorities[priority]; !ok {
		return nil, errValidation("invalid task priority")
	}

	task := store.Task{
		ID:          util.NewID("task"),
		ProjectID:   projectID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		Assignees:   dedupe(input.Assignees),
		CreatedBy:   session.UserID,
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}

	recipients := make([]string, 0, len(task.Assignees))
	for _, userID := range task.Assignees {
		if userID == session.UserID {
			continue
		}
		recipients = append(recipients, userID)
	}
	s.notifier.Fanout(ctx, recipients, notify.Event{
		Title:       "Task assigned",
		Message:     fmt.Sprintf("You were assigned to task %q", title),
		TargetType:  "task",
		TargetID:    task.ID,
		ProjectID:   projectID,
		WorkspaceID: project.WorkspaceID,
	})

	s.recordActivity(ctx, session.UserID, "created", "task", task.ID,
		fmt.Sprintf("created task %s", truncate(title, 50)))

	if s.search != nil {
		s.search.IndexTask(search.TaskRecord{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			ProjectID:   projectID,
			WorkspaceID: project.WorkspaceID,
			Status:      task.Status,
			Priority:    task.Priority,
		})
	}

	return taskPayload(task), nil
}

func taskPayload(task store.Task) map[string]any {
	assignees := task.Assignees
	if assignees == nil {
		assignees = []string{}
	}
	watchers := task.Watchers
	if watchers == nil {
		watchers = []string{}
	}
	return map[string]any{
		"id":          task.ID,
		"projectId":   task.ProjectID,
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"priority":    task.Priority,
		"dueDate":     task.DueDate,
		"assignees":   assignees,
		"watchers":    watchers,
		"isArchived":  task.IsArchived,
		"createdBy":   task.CreatedBy,
		"createdAt":   task.CreatedAt,
		"updatedAt":   task.UpdatedAt,
	}
}

func (s *Service) GetTask(ctx context.Context, session Session, taskID string) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}

	subtasks, err := s.store.ListSubtasks(ctx, taskID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, taskID)
	if err != nil {
		return nil, err
	}

	payload := taskPayload(task)
	payload["subtasks"] = subtaskItems(subtasks)
	payload["comments"] = commentItems(comments)
	payload["attachments"] = attachmentItems(attachments)
	return payload, nil
}

func subtaskItems(subtasks []store.Subtask) []map[string]any {
	items := make([]map[string]any, 0, len(subtasks))
	for _, subtask := range subtasks {
		items = append(items, map[string]any{
			"id":        subtask.ID,
			"title":     subtask.Title,
			"completed": subtask.Completed,
			"createdAt": subtask.CreatedAt,
		})
	}
	return items
}

func commentItems(comments []store.Comment) []map[string]any {
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, map[string]any{
			"id":        comment.ID,
			"authorId":  comment.Author,
			"body":      comment.Body,
			"createdAt": comment.CreatedAt,
		})
	}
	return items
}

func attachmentItems(attachments []store.Attachment) []map[string]any {
	items := make([]map[string]any, 0, len(attachments))
	for _, attachment := range attachments {
		items = append(items, map[string]any{
			"id":         attachment.ID,
			"kind":       attachment.Kind,
			"fileName":   attachment.FileName,
			"fileUrl":    attachment.FileURL,
			"fileType":   attachment.FileType,
			"fileSize":   attachment.FileSize,
			"uploadedBy": attachment.UploadedBy,
			"createdAt":  attachment.CreatedAt,
		})
	}
	return items
}

func (s *Service) ListProjectTasks(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, err := s.requireProjectMember(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task))
	}
	return items, nil
}

func (s *Service) ListMyTasks(ctx context.Context, session Session) ([]map[string]any, error) {
	tasks, err := s.store.ListTasksAssignedTo(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task))
	}
	return items, nil
}

func (s *Service) UpdateTaskTitle(ctx context.Context, session Session, taskID, title string) error {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}
	newTitle := strings.TrimSpace(title)
	if newTitle == "" {
		return errValidation("title is required")
	}
	if err := s.store.UpdateTaskTitle(ctx, taskID, newTitle); err != nil {
		return err
	}
	s.recordActivity(ctx, session.UserID, "updated", "task", taskID,
		fmt.Sprintf("updated task title from %s to %s", truncate(task.Title, 50), truncate(newTitle, 50)))
	s.reindexTask(ctx, taskID)
	return nil
}

func (s *Service) UpdateTaskDescription(ctx context.Context, session Session, taskID, description string) error {
	_, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}
	if err := s.store.UpdateTaskDescription(ctx, taskID, description); err != nil {
		return err
	}
	s.recordActivity(ctx, session.UserID, "updated", "task", taskID, "updated task description")
	s.reindexTask(ctx, taskID)
	return nil
}

func (s *Service) UpdateTaskStatus(ctx context.Context, session Session, taskID, status string) error {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}
	if _, ok := allowedTaskStatuses[status]; !ok {
		return errValidation("invalid task status")
	}
	if err := s.store.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return err
	}
	s.recordActivity(ctx, session.UserID, "updated", "task", taskID,
		fmt.Sprintf("updated task status from %s to %s", task.Status, status))
	s.reindexTask(ctx, taskID)
	return nil
}

func (s *Service) UpdateTaskPriority(ctx context.Context, session Session, taskID, priority string) error {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}
	if _, ok := allowedTaskPriorities[priority]; !ok {
		return errValidation("invalid task priority")
	}
	if err := s.store.UpdateTaskPriority(ctx, taskID, priority); err != nil {
		return err
	}
	s.recordActivity(ctx, session.UserID, "updated", "task", taskID,
		fmt.Sprintf("updated task priority from %s to %s", task.Priority, priority))
	return nil
}

// UpdateTaskAssignees replaces the assignee set. Only principals newly added
// by this call are notified.
func (s *Service) UpdateTaskAssignees(ctx context.Context, session Session, taskID string, assignees []string) error {
	task, project, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}

	next := dedupe(assignees)
	current := make(map[string]struct{}, len(task.Assignees))
	for _, userID := range task.Assignees {
		current[userID] = struct{}{}
	}
	added := make([]string, 0, len(next))
	for _, userID := range next {
		if _, ok := current[userID]; ok {
			continue
		}
		if userID == session.UserID {
			continue
		}
		added = append(added, userID)
	}

	if err := s.store.ReplaceTaskAssignees(ctx, taskID, next); err != nil {
		return err
	}

	s.notifier.Fanout(ctx, added, notify.Event{
		Title:       "Task assigned",
		Message:     fmt.Sprintf("You were assigned to task %q", task.Title),
		TargetType:  "task",
		TargetID:    taskID,
		ProjectID:   task.ProjectID,
		WorkspaceID: project.WorkspaceID,
	})

	s.recordActivity(ctx, session.UserID, "updated", "task", taskID,
		fmt.Sprintf("updated assignees of %s", truncate(task.Title, 50)))
	return nil
}

func (s *Service) ToggleWatchTask(ctx context.Context, session Session, taskID string) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}

	watching, err := s.store.ToggleTaskWatcher(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}

	verb := "started watching"
	if !watching {
		verb = "stopped watching"
	}
	s.recordActivity(ctx, session.UserID, "watched", "task", taskID,
		fmt.Sprintf("%s %s", verb, truncate(task.Title, 50)))

	return map[string]any{"id": taskID, "watching": watching}, nil
}

func (s *Service) ToggleTaskArchived(ctx context.Context, session Session, taskID string) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}

	archived, err := s.store.ToggleTaskArchived(ctx, taskID)
	if err != nil {
		return nil, err
	}

	verb := "archived"
	if !archived {
		verb = "unarchived"
	}
	s.recordActivity(ctx, session.UserID, verb, "task", taskID,
		fmt.Sprintf("%s task %s", verb, truncate(task.Title, 50)))

	return map[string]any{"id": taskID, "isArchived": archived}, nil
}

// DeleteTask is gated on project membership. The existence check still runs
// first so a missing task reads as NOT_FOUND regardless of the caller.
func (s *Service) DeleteTask(ctx context.Context, session Session, taskID string) error {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTaskCascade(ctx, taskID); err != nil {
		return err
	}

	if s.search != nil {
		s.search.DeleteTask(taskID)
	}

	s.recordActivity(ctx, session.UserID, "deleted", "task", task.ProjectID,
		fmt.Sprintf("deleted task %s", truncate(task.Title, 50)))
	return nil
}

func (s *Service) reindexTask(ctx context.Context, taskID string) {
	if s.search == nil {
		return
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return
	}
	project, err := s.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		ProjectID:   task.ProjectID,
		WorkspaceID: project.WorkspaceID,
		Status:      task.Status,
		Priority:    task.Priority,
	})
}

// ---- subtasks ----

func (s *Service) AddSubtask(ctx context.Context, session Session, taskID, title string) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}
	subtaskTitle := strings.TrimSpace(title)
	if subtaskTitle == "" {
		return nil, errValidation("title is required")
	}

	subtask := store.Subtask{
		ID:     util.NewID("sub"),
		TaskID: taskID,
		Title:  subtaskTitle,
	}
	if err := s.store.InsertSubtask(ctx, subtask); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "created", "task", taskID,
		fmt.Sprintf("added subtask to %s", truncate(task.Title, 50)))

	return map[string]any{
		"id":        subtask.ID,
		"title":     subtask.Title,
		"completed": false,
	}, nil
}

func (s *Service) ToggleSubtask(ctx context.Context, session Session, taskID, subtaskID string) (map[string]any, error) {
	if _, _, err := s.resolveTask(ctx, taskID, session.UserID); err != nil {
		return nil, err
	}

	subtasks, err := s.store.ListSubtasks(ctx, taskID)
	if err != nil {
		return nil, err
	}
	var target *store.Subtask
	for i := range subtasks {
		if subtasks[i].ID == subtaskID {
			target = &subtasks[i]
			break
		}
	}
	if target == nil {
		return nil, errNotFound("subtask not found")
	}

	updated, err := s.store.UpdateSubtaskCompleted(ctx, taskID, subtaskID, !target.Completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("subtask not found")
		}
		return nil, err
	}

	return map[string]any{
		"id":        updated.ID,
		"title":     updated.Title,
		"completed": updated.Completed,
	}, nil
}

// ---- comments ----

func (s *Service) AddComment(ctx context.Context, session Session, taskID, body string) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}
	commentBody := strings.TrimSpace(body)
	if commentBody == "" {
		return nil, errValidation("body is required")
	}

	comment := store.Comment{
		ID:     util.NewID("cmt"),
		TaskID: taskID,
		Author: session.UserID,
		Body:   commentBody,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "commented", "task", taskID,
		fmt.Sprintf("commented on %s", truncate(task.Title, 50)))

	return map[string]any{
		"id":       comment.ID,
		"authorId": comment.Author,
		"body":     comment.Body,
	}, nil
}

func (s *Service) ListTaskComments(ctx context.Context, session Session, taskID string) ([]map[string]any, error) {
	if _, _, err := s.resolveTask(ctx, taskID, session.UserID); err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return commentItems(comments), nil
}

// ---- attachments ----

func (s *Service) AddURLAttachment(ctx context.Context, session Session, taskID, name, url string) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, errValidation("url is required")
	}
	attachmentName := strings.TrimSpace(name)
	if attachmentName == "" {
		attachmentName = url
	}

	attachment := store.Attachment{
		ID:         util.NewID("att"),
		TaskID:     taskID,
		Kind:       "url",
		FileName:   attachmentName,
		FileURL:    url,
		UploadedBy: session.UserID,
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "attached", "task", taskID,
		fmt.Sprintf("attached a link to %s", truncate(task.Title, 50)))

	return map[string]any{"id": attachment.ID, "kind": "url", "fileName": attachmentName, "fileUrl": url}, nil
}

func (s *Service) AddFileAttachment(ctx context.Context, session Session, taskID, fileName, contentType string, size int64, reader io.Reader) (map[string]any, error) {
	task, _, err := s.resolveTask(ctx, taskID, session.UserID)
	if err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, domainError(503, "UPLOADS_UNAVAILABLE", "File storage is not configured", nil)
	}
	cleanName := path.Base(strings.TrimSpace(fileName))
	if cleanName == "" || cleanName == "." || cleanName == "/" {
		return nil, errValidation("fileName is required")
	}

	objectName := taskID + "/" + util.NewID("") + "-" + cleanName
	key, err := s.blobs.Put(ctx, objectName, reader, size, contentType)
	if err != nil {
		return nil, err
	}
	fileURL, err := s.blobs.PresignedURL(ctx, key, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	attachment := store.Attachment{
		ID:         util.NewID("att"),
		TaskID:     taskID,
		Kind:       "file",
		FileName:   cleanName,
		FileURL:    fileURL,
		FileType:   contentType,
		FileSize:   size,
		UploadedBy: session.UserID,
	}
	if err := s.store.InsertAttachment(ctx, attachment); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "attached", "task", taskID,
		fmt.Sprintf("attached %s to %s", truncate(cleanName, 50), truncate(task.Title, 50)))

	return map[string]any{
		"id":       attachment.ID,
		"kind":     "file",
		"fileName": cleanName,
		"fileUrl":  fileURL,
		"fileType": contentType,
		"fileSize": size,
	}, nil
}

func (s *Service) RemoveAttachment(ctx context.Context, session Session, taskID, attachmentID string) error {
	if _, _, err := s.resolveTask(ctx, taskID, session.UserID); err != nil {
		return err
	}

	attachments, err := s.store.ListAttachments(ctx, taskID)
	if err != nil {
		return err
	}
	var target *store.Attachment
	for i := range attachments {
		if attachments[i].ID == attachmentID {
			target = &attachments[i]
			break
		}
	}

	found, err := s.store.DeleteAttachment(ctx, taskID, attachmentID)
	if err != nil {
		return err
	}
	if !found {
		return errNotFound("attachment not found")
	}

	// The row is the record; removing the blob is best effort.
	if target != nil && target.Kind == "file" && s.blobs != nil {
		if key := objectKeyFromURL(target.FileURL); key != "" {
			if err := s.blobs.Remove(ctx, key); err != nil {
				log.Printf("attachment: remove blob %s: %v", key, err)
			}
		}
	}
	return nil
}

// objectKeyFromURL recovers the object name from a presigned download URL,
// whose path is /<bucket>/<objectName>.
func objectKeyFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.SplitN(strings.TrimPrefix(parsed.Path, "/"), "/", 2)
	if len(segments) != 2 {
		return ""
	}
	return segments[1]
}

// ---- activity ----

func (s *Service) ListTaskActivity(ctx context.Context, session Session, taskID string) ([]map[string]any, error) {
	if _, _, err := s.resolveTask(ctx, taskID, session.UserID); err != nil {
		return nil, err
	}
	return s.ListActivity(ctx, taskID)
}

func (s *Service) ListProjectActivity(ctx context.Context, session Session, projectID string) ([]map[string]any, error) {
	if _, err := s.requireProjectMember(ctx, projectID, session.UserID); err != nil {
		return nil, err
	}
	return s.ListActivity(ctx, projectID)
}

// ---- search ----

func (s *Service) Search(ctx context.Context, session Session, text, filterType, workspaceID string, limit, offset int) (search.Response, error) {
	if workspaceID != "" {
		if _, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionRead); err != nil {
			return search.Response{}, err
		}
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		Text:              text,
		FilterType:        search.ResultType(filterType),
		FilterWorkspaceID: workspaceID,
		Limit:             limit,
		Offset:            offset,
	}), nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
