package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"taskhub/api/internal/auth"
	"taskhub/api/internal/config"
	"taskhub/api/internal/email"
	"taskhub/api/internal/notify"
	"taskhub/api/internal/rbac"
	"taskhub/api/internal/search"
	"taskhub/api/internal/store"
	"taskhub/api/internal/uploads"
	"taskhub/api/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	JTI       string
	ExpiresAt time.Time
}

var allowedTaskStatuses = map[string]struct{}{
	"To Do":       {},
	"In Progress": {},
	"Done":        {},
}

var allowedTaskPriorities = map[string]struct{}{
	"Low":    {},
	"Medium": {},
	"High":   {},
}

var allowedProjectStatuses = map[string]struct{}{
	"Planning":    {},
	"In Progress": {},
	"On Hold":     {},
	"Completed":   {},
}

type dataStore interface {
	EnsureUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	InsertWorkspace(context.Context, store.Workspace) error
	GetWorkspace(context.Context, string) (store.Workspace, error)
	ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error)
	UpdateWorkspace(context.Context, string, string, string, string) error
	GetWorkspaceMember(context.Context, string, string) (store.WorkspaceMember, error)
	ListWorkspaceMembers(context.Context, string) ([]store.WorkspaceMember, error)
	AddWorkspaceMember(context.Context, store.WorkspaceMember) error
	UpdateWorkspaceMemberRole(context.Context, string, string, string) (bool, error)
	TransferOwnership(context.Context, string, string, string) error
	DeleteWorkspaceCascade(context.Context, string) error
	GetInvite(context.Context, string, string) (store.WorkspaceInvite, error)
	InsertInvite(context.Context, store.WorkspaceInvite) error
	DeleteInvite(context.Context, string) error
	RedeemInvite(context.Context, string, store.WorkspaceMember, store.ActivityEntry) error
	InsertProject(context.Context, store.Project, []store.ProjectMember) error
	GetProject(context.Context, string) (store.Project, error)
	ListProjects(context.Context, string) ([]store.Project, error)
	ListProjectsForMember(context.Context, string, string) ([]store.Project, error)
	ListArchivedProjects(context.Context, string) ([]store.Project, error)
	UpdateProject(context.Context, string, string, string, string, []string) error
	ToggleProjectArchived(context.Context, string) (bool, error)
	GetProjectMember(context.Context, string, string) (store.ProjectMember, error)
	DeleteProjectCascade(context.Context, string) error
	InsertTask(context.Context, store.Task) error
	GetTask(context.Context, string) (store.Task, error)
	ListTasksForProject(context.Context, string) ([]store.Task, error)
	ListTasksAssignedTo(context.Context, string) ([]store.Task, error)
	ListArchivedTasks(context.Context, string) ([]store.Task, error)
	DueSoonTasks(context.Context, time.Time, time.Time) ([]store.Task, error)
	UpdateTaskTitle(context.Context, string, string) error
	UpdateTaskDescription(context.Context, string, string) error
	UpdateTaskStatus(context.Context, string, string) error
	UpdateTaskPriority(context.Context, string, string) error
	ReplaceTaskAssignees(context.Context, string, []string) error
	ToggleTaskWatcher(context.Context, string, string) (bool, error)
	ToggleTaskArchived(context.Context, string) (bool, error)
	DeleteTaskCascade(context.Context, string) error
	InsertSubtask(context.Context, store.Subtask) error
	ListSubtasks(context.Context, string) ([]store.Subtask, error)
	UpdateSubtaskCompleted(context.Context, string, string, bool) (store.Subtask, error)
	InsertAttachment(context.Context, store.Attachment) error
	ListAttachments(context.Context, string) ([]store.Attachment, error)
	DeleteAttachment(context.Context, string, string) (bool, error)
	InsertComment(context.Context, store.Comment) error
	ListComments(context.Context, string) ([]store.Comment, error)
	InsertActivity(context.Context, store.ActivityEntry) error
	ListActivityByResource(context.Context, string) ([]store.ActivityEntry, error)
	Ping(ctx context.Context) error
}

type notifier interface {
	Send(ctx context.Context, event notify.Event) (store.Notification, error)
	Fanout(ctx context.Context, recipients []string, event notify.Event)
	List(ctx context.Context, userID string) ([]store.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, notificationID string) (bool, error)
	Exists(ctx context.Context, userID, targetType, targetID, title string) (bool, error)
}

type searcher interface {
	Search(q search.Query) search.Response
	IndexProject(p search.ProjectRecord)
	IndexTask(t search.TaskRecord)
	DeleteProject(id string)
	DeleteTask(id string)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	notifier notifier
	search   searcher
	email    *email.Service
	blobs    uploads.BlobStore
}

func New(cfg config.Config, dataStore *store.PostgresStore, notifier *notify.Service, searchSvc *search.Service, emailSvc *email.Service, blobs uploads.BlobStore) *Service {
	svc := &Service{
		cfg:      cfg,
		store:    dataStore,
		notifier: notifier,
		email:    emailSvc,
		blobs:    blobs,
	}
	if searchSvc != nil {
		svc.search = searchSvc
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---- sessions ----

func (s *Service) Login(ctx context.Context, name, emailAddr string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}
	address := strings.ToLower(strings.TrimSpace(emailAddr))
	if address == "" || !strings.Contains(address, "@") {
		return Session{}, errValidation("a valid email is required")
	}

	user, err := s.store.EnsureUser(ctx, store.User{
		ID:    util.NewID("usr"),
		Name:  userName,
		Email: address,
	})
	if err != nil {
		return Session{}, err
	}

	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.Name,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.Name,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

// ---- workspaces ----

// requireWorkspaceRole resolves the workspace and the caller's membership.
// Existence is checked before membership: a missing workspace is NOT_FOUND
// even for a caller who would not have been a member.
func (s *Service) requireWorkspaceRole(ctx context.Context, workspaceID, userID string, action rbac.Action) (store.Workspace, store.WorkspaceMember, error) {
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Workspace{}, store.WorkspaceMember{}, errNotFound("workspace not found")
		}
		return store.Workspace{}, store.WorkspaceMember{}, err
	}
	member, err := s.store.GetWorkspaceMember(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Workspace{}, store.WorkspaceMember{}, errForbidden("not a member of this workspace")
		}
		return store.Workspace{}, store.WorkspaceMember{}, err
	}
	if !rbac.Can(rbac.Normalize(member.Role), action) {
		return store.Workspace{}, store.WorkspaceMember{}, errForbidden("insufficient workspace role")
	}
	return workspace, member, nil
}

func (s *Service) CreateWorkspace(ctx context.Context, session Session, name, description, color string) (map[string]any, error) {
	workspaceName := strings.TrimSpace(name)
	if workspaceName == "" {
		return nil, errValidation("name is required")
	}

	workspace := store.Workspace{
		ID:          util.NewID("ws"),
		Name:        workspaceName,
		Description: strings.TrimSpace(description),
		Color:       strings.TrimSpace(color),
		OwnerID:     session.UserID,
	}
	if err := s.store.InsertWorkspace(ctx, workspace); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "created", "workspace", workspace.ID,
		fmt.Sprintf("created workspace %s", truncate(workspaceName, 50)))

	return s.workspacePayload(ctx, workspace)
}

func (s *Service) ListWorkspaces(ctx context.Context, session Session) ([]map[string]any, error) {
	workspaces, err := s.store.ListWorkspacesForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(workspaces))
	for _, workspace := range workspaces {
		items = append(items, map[string]any{
			"id":          workspace.ID,
			"name":        workspace.Name,
			"description": workspace.Description,
			"color":       workspace.Color,
			"ownerId":     workspace.OwnerID,
			"createdAt":   workspace.CreatedAt,
		})
	}
	return items, nil
}

func (s *Service) GetWorkspace(ctx context.Context, session Session, workspaceID string) (map[string]any, error) {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return s.workspacePayload(ctx, workspace)
}

func (s *Service) workspacePayload(ctx context.Context, workspace store.Workspace) (map[string]any, error) {
	members, err := s.store.ListWorkspaceMembers(ctx, workspace.ID)
	if err != nil {
		return nil, err
	}
	memberItems := make([]map[string]any, 0, len(members))
	for _, member := range members {
		item := map[string]any{
			"userId":   member.UserID,
			"role":     member.Role,
			"joinedAt": member.JoinedAt,
		}
		if user, err := s.store.GetUserByID(ctx, member.UserID); err == nil {
			item["name"] = user.Name
			item["email"] = user.Email
		}
		memberItems = append(memberItems, item)
	}
	return map[string]any{
		"id":          workspace.ID,
		"name":        workspace.Name,
		"description": workspace.Description,
		"color":       workspace.Color,
		"ownerId":     workspace.OwnerID,
		"members":     memberItems,
		"createdAt":   workspace.CreatedAt,
		"updatedAt":   workspace.UpdatedAt,
	}, nil
}

func (s *Service) UpdateWorkspace(ctx context.Context, session Session, workspaceID, name, description, color string) (map[string]any, error) {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}

	newName := strings.TrimSpace(name)
	if newName == "" {
		newName = workspace.Name
	}
	newDescription := description
	if strings.TrimSpace(description) == "" {
		newDescription = workspace.Description
	}
	newColor := color
	if strings.TrimSpace(color) == "" {
		newColor = workspace.Color
	}

	if err := s.store.UpdateWorkspace(ctx, workspaceID, newName, newDescription, newColor); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "updated", "workspace", workspaceID,
		fmt.Sprintf("updated workspace %s", truncate(newName, 50)))

	updated, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.workspacePayload(ctx, updated)
}

// DeleteWorkspace is owner-only. Admins can mutate a workspace but not
// destroy it.
func (s *Service) DeleteWorkspace(ctx context.Context, session Session, workspaceID string) error {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionDelete)
	if err != nil {
		return err
	}

	projects, err := s.store.ListProjects(ctx, workspaceID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteWorkspaceCascade(ctx, workspaceID); err != nil {
		return err
	}

	if s.search != nil {
		for _, project := range projects {
			s.search.DeleteProject(project.ID)
		}
	}

	s.recordActivity(ctx, session.UserID, "deleted", "workspace", workspaceID,
		fmt.Sprintf("deleted workspace %s", truncate(workspace.Name, 50)))
	return nil
}

func (s *Service) TransferOwnership(ctx context.Context, session Session, workspaceID, newOwnerID string) (map[string]any, error) {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionDelete)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(newOwnerID) == "" {
		return nil, errValidation("newOwnerId is required")
	}
	if newOwnerID == session.UserID {
		return nil, errConflict("caller is already the owner")
	}
	if _, err := s.store.GetWorkspaceMember(ctx, workspaceID, newOwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("new owner is not a workspace member")
		}
		return nil, err
	}

	if err := s.store.TransferOwnership(ctx, workspaceID, workspace.OwnerID, newOwnerID); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, session.UserID, "transferred", "workspace", workspaceID,
		fmt.Sprintf("transferred ownership of %s", truncate(workspace.Name, 50)))

	updated, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	return s.workspacePayload(ctx, updated)
}

// UpdateMemberRole rewrites a member's role. Last writer wins on concurrent
// updates. The owner's role can only change via TransferOwnership.
func (s *Service) UpdateMemberRole(ctx context.Context, session Session, workspaceID, memberID, role string) error {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionManage)
	if err != nil {
		return err
	}
	if memberID == workspace.OwnerID {
		return errConflict("cannot change the owner's role")
	}
	newRole := rbac.Normalize(role)
	if newRole == rbac.RoleOwner {
		return errValidation("use ownership transfer to assign the owner role")
	}

	updated, err := s.store.UpdateWorkspaceMemberRole(ctx, workspaceID, memberID, string(newRole))
	if err != nil {
		return err
	}
	if !updated {
		return errNotFound("member not found")
	}
	return nil
}

// ---- invites ----

func (s *Service) InviteMember(ctx context.Context, session Session, workspaceID, inviteeEmail, role string) (map[string]any, error) {
	workspace, _, err := s.requireWorkspaceRole(ctx, workspaceID, session.UserID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}

	invitee, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(inviteeEmail)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("no user with this email")
		}
		return nil, err
	}

	if _, err := s.store.GetWorkspaceMember(ctx, workspaceID, invitee.ID); err == nil {
		return nil, errConflict("user is already a member")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// One live invite per (user, workspace); an expired one is replaced.
	if existing, err := s.store.GetInvite(ctx, invitee.ID, workspaceID); err == nil {
		if time.Now().Before(existing.ExpiresAt) {
			return nil, errConflict("an invite is already pending for this user")
		}
		if err := s.store.DeleteInvite(ctx, existing.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	grantRole := rbac.Normalize(role)
	if grantRole == rbac.RoleOwner {
		grantRole = rbac.RoleMember
	}
	expiresAt := time.Now().Add(s.cfg.InviteTTL)

	token, err := auth.IssueInviteToken([]byte(s.cfg.JWTSecret), auth.InviteClaims{
		Sub:         invitee.ID,
		WorkspaceID: workspaceID,
		Role:        string(grantRole),
		Exp:         expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	invite := store.WorkspaceInvite{
		ID:          util.NewID("inv"),
		UserID:      invitee.ID,
		WorkspaceID: workspaceID,
		TokenHash:   auth.HashToken(token),
		Role:        string(grantRole),
		ExpiresAt:   expiresAt,
	}
	if err := s.store.InsertInvite(ctx, invite); err != nil {
		return nil, err
	}

	inviteURL := fmt.Sprintf("%s/workspace-invite/%s?tk=%s", strings.TrimRight(s.cfg.FrontendURL, "/"), workspaceID, token)
	if s.email != nil && s.email.IsConfigured() {
		if err := s.email.SendWorkspaceInvite(invitee.Email, session.UserName, workspace.Name, string(grantRole), inviteURL); err != nil {
			log.Printf("invite: send email to %s: %v", invitee.Email, err)
		}
	}

	s.recordActivity(ctx, session.UserID, "invited", "workspace", workspaceID,
		fmt.Sprintf("invited %s to %s", invitee.Name, truncate(workspace.Name, 50)))

	return map[string]any{
		"inviteId":  invite.ID,
		"userId":    invitee.ID,
		"role":      string(grantRole),
		"expiresAt": expiresAt,
		"inviteUrl": inviteURL,
		"token":     token,
	}, nil
}

// RedeemInviteToken verifies the token before touching any state, then
// applies the membership append, invite removal, and activity record as one
// transaction.
func (s *Service) RedeemInviteToken(ctx context.Context, token string) (map[string]any, error) {
	claims, err := auth.ParseInviteToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return nil, domainError(http.StatusGone, "INVITE_EXPIRED", "Invite has expired", nil)
		}
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid invite token", nil)
	}

	invite, err := s.store.GetInvite(ctx, claims.Sub, claims.WorkspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Token is valid but the server-side record is gone: revoked or
			// already redeemed.
			return nil, errNotFound("invite not found")
		}
		return nil, err
	}
	if invite.TokenHash != auth.HashToken(token) {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Invite token has been superseded", nil)
	}

	if _, err := s.store.GetWorkspaceMember(ctx, claims.WorkspaceID, claims.Sub); err == nil {
		return nil, errConflict("already a member of this workspace")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	workspace, err := s.store.GetWorkspace(ctx, claims.WorkspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("workspace not found")
		}
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return nil, err
	}

	member := store.WorkspaceMember{
		WorkspaceID: claims.WorkspaceID,
		UserID:      claims.Sub,
		Role:        string(rbac.Normalize(invite.Role)),
		JoinedAt:    time.Now().UTC(),
	}
	activity := store.ActivityEntry{
		ID:           util.NewID("act"),
		UserID:       claims.Sub,
		Action:       "joined",
		ResourceType: "workspace",
		ResourceID:   claims.WorkspaceID,
		Description:  fmt.Sprintf("%s joined %s", user.Name, truncate(workspace.Name, 50)),
	}
	if err := s.store.RedeemInvite(ctx, invite.ID, member, activity); err != nil {
		return nil, err
	}

	return map[string]any{
		"workspaceId": claims.WorkspaceID,
		"userId":      claims.Sub,
		"role":        member.Role,
	}, nil
}

// RedeemDirectInvite is the self-service accept path: no token, always
// grants the member role.
func (s *Service) RedeemDirectInvite(ctx context.Context, session Session, workspaceID string) (map[string]any, error) {
	workspace, err := s.store.GetWorkspace(ctx, workspaceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("workspace not found")
		}
		return nil, err
	}

	if _, err := s.store.GetWorkspaceMember(ctx, workspaceID, session.UserID); err == nil {
		return nil, errConflict("already a member of this workspace")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	member := store.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      session.UserID,
		Role:        string(rbac.RoleMember),
		JoinedAt:    time.Now().UTC(),
	}
	activity := store.ActivityEntry{
		ID:           util.NewID("act"),
		UserID:       session.UserID,
		Action:       "joined",
		ResourceType: "workspace",
		ResourceID:   workspaceID,
		Description:  fmt.Sprintf("%s joined %s", session.UserName, truncate(workspace.Name, 50)),
	}

	// Consume any pending invite row in the same transaction when one exists.
	if invite, err := s.store.GetInvite(ctx, session.UserID, workspaceID); err == nil {
		if err := s.store.RedeemInvite(ctx, invite.ID, member, activity); err != nil {
			return nil, err
		}
	} else if errors.Is(err, sql.ErrNoRows) {
		if err := s.store.AddWorkspaceMember(ctx, member); err != nil {
			return nil, err
		}
		s.recordActivity(ctx, activity.UserID, activity.Action, activity.ResourceType, activity.ResourceID, activity.Description)
	} else {
		return nil, err
	}

	return map[string]any{
		"workspaceId": workspaceID,
		"userId":      session.UserID,
		"role":        member.Role,
	}, nil
}

// ---- notifications ----

func (s *Service) ListNotifications(ctx context.Context, session Session) ([]map[string]any, error) {
	notifications, err := s.notifier.List(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(notifications))
	for _, notification := range notifications {
		items = append(items, notificationPayload(notification))
	}
	return items, nil
}

func notificationPayload(notification store.Notification) map[string]any {
	return map[string]any{
		"id":          notification.ID,
		"title":       notification.Title,
		"message":     notification.Message,
		"isRead":      notification.IsRead,
		"targetType":  notification.TargetType,
		"targetId":    notification.TargetID,
		"projectId":   notification.ProjectID,
		"workspaceId": notification.WorkspaceID,
		"createdAt":   notification.CreatedAt,
	}
}

// MarkNotificationRead is a silent no-op for ids that do not exist or belong
// to another recipient; it never reveals other users' notifications.
func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	_, err := s.notifier.MarkRead(ctx, session.UserID, notificationID)
	return err
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.notifier.MarkAllRead(ctx, session.UserID)
}

// DeleteNotification is recipient-scoped with the same silent no-op
// contract as MarkNotificationRead.
func (s *Service) DeleteNotification(ctx context.Context, session Session, notificationID string) error {
	_, err := s.notifier.Delete(ctx, session.UserID, notificationID)
	return err
}

// ---- activity ----

// recordActivity is best effort: a failed append is logged and never fails
// the calling operation.
func (s *Service) recordActivity(ctx context.Context, userID, action, resourceType, resourceID, description string) {
	entry := store.ActivityEntry{
		ID:           util.NewID("act"),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Description:  description,
	}
	if err := s.store.InsertActivity(ctx, entry); err != nil {
		log.Printf("activity: record %s %s: %v", action, resourceID, err)
	}
}

func (s *Service) ListActivity(ctx context.Context, resourceID string) ([]map[string]any, error) {
	entries, err := s.store.ListActivityByResource(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":           entry.ID,
			"userId":       entry.UserID,
			"action":       entry.Action,
			"resourceType": entry.ResourceType,
			"resourceId":   entry.ResourceID,
			"description":  entry.Description,
			"createdAt":    entry.CreatedAt,
		})
	}
	return items, nil
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max] + "..."
}
