package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taskhub/api/internal/auth"
	"taskhub/api/internal/config"
	"taskhub/api/internal/notify"
	"taskhub/api/internal/store"
)

type fakeStore struct {
	getUserByIDFn            func(context.Context, string) (store.User, error)
	getUserByEmailFn         func(context.Context, string) (store.User, error)
	getWorkspaceFn           func(context.Context, string) (store.Workspace, error)
	getWorkspaceMemberFn     func(context.Context, string, string) (store.WorkspaceMember, error)
	listWorkspaceMembersFn   func(context.Context, string) ([]store.WorkspaceMember, error)
	addWorkspaceMemberFn     func(context.Context, store.WorkspaceMember) error
	transferOwnershipFn      func(context.Context, string, string, string) error
	deleteWorkspaceCascadeFn func(context.Context, string) error
	getInviteFn              func(context.Context, string, string) (store.WorkspaceInvite, error)
	insertInviteFn           func(context.Context, store.WorkspaceInvite) error
	deleteInviteFn           func(context.Context, string) error
	redeemInviteFn           func(context.Context, string, store.WorkspaceMember, store.ActivityEntry) error
	insertProjectFn          func(context.Context, store.Project, []store.ProjectMember) error
	getProjectFn             func(context.Context, string) (store.Project, error)
	getProjectMemberFn       func(context.Context, string, string) (store.ProjectMember, error)
	deleteProjectCascadeFn   func(context.Context, string) error
	insertTaskFn             func(context.Context, store.Task) error
	getTaskFn                func(context.Context, string) (store.Task, error)
	replaceTaskAssigneesFn   func(context.Context, string, []string) error
	deleteTaskCascadeFn      func(context.Context, string) error
	dueSoonTasksFn           func(context.Context, time.Time, time.Time) ([]store.Task, error)
	listTasksForProjectFn    func(context.Context, string) ([]store.Task, error)
}

func (f *fakeStore) EnsureUser(ctx context.Context, user store.User) (store.User, error) {
	return user, nil
}
func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID}, nil
}
func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmailFn != nil {
		return f.getUserByEmailFn(ctx, email)
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) InsertWorkspace(context.Context, store.Workspace) error { return nil }
func (f *fakeStore) GetWorkspace(ctx context.Context, workspaceID string) (store.Workspace, error) {
	if f.getWorkspaceFn != nil {
		return f.getWorkspaceFn(ctx, workspaceID)
	}
	return store.Workspace{}, sql.ErrNoRows
}
func (f *fakeStore) ListWorkspacesForUser(context.Context, string) ([]store.Workspace, error) {
	return nil, nil
}
func (f *fakeStore) UpdateWorkspace(context.Context, string, string, string, string) error {
	return nil
}
func (f *fakeStore) GetWorkspaceMember(ctx context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
	if f.getWorkspaceMemberFn != nil {
		return f.getWorkspaceMemberFn(ctx, workspaceID, userID)
	}
	return store.WorkspaceMember{}, sql.ErrNoRows
}
func (f *fakeStore) ListWorkspaceMembers(ctx context.Context, workspaceID string) ([]store.WorkspaceMember, error) {
	if f.listWorkspaceMembersFn != nil {
		return f.listWorkspaceMembersFn(ctx, workspaceID)
	}
	return nil, nil
}
func (f *fakeStore) AddWorkspaceMember(ctx context.Context, member store.WorkspaceMember) error {
	if f.addWorkspaceMemberFn != nil {
		return f.addWorkspaceMemberFn(ctx, member)
	}
	return nil
}
func (f *fakeStore) UpdateWorkspaceMemberRole(context.Context, string, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) TransferOwnership(ctx context.Context, workspaceID, oldOwnerID, newOwnerID string) error {
	if f.transferOwnershipFn != nil {
		return f.transferOwnershipFn(ctx, workspaceID, oldOwnerID, newOwnerID)
	}
	return nil
}
func (f *fakeStore) DeleteWorkspaceCascade(ctx context.Context, workspaceID string) error {
	if f.deleteWorkspaceCascadeFn != nil {
		return f.deleteWorkspaceCascadeFn(ctx, workspaceID)
	}
	return nil
}
func (f *fakeStore) GetInvite(ctx context.Context, userID, workspaceID string) (store.WorkspaceInvite, error) {
	if f.getInviteFn != nil {
		return f.getInviteFn(ctx, userID, workspaceID)
	}
	return store.WorkspaceInvite{}, sql.ErrNoRows
}
func (f *fakeStore) InsertInvite(ctx context.Context, invite store.WorkspaceInvite) error {
	if f.insertInviteFn != nil {
		return f.insertInviteFn(ctx, invite)
	}
	return nil
}
func (f *fakeStore) DeleteInvite(ctx context.Context, inviteID string) error {
	if f.deleteInviteFn != nil {
		return f.deleteInviteFn(ctx, inviteID)
	}
	return nil
}
func (f *fakeStore) RedeemInvite(ctx context.Context, inviteID string, member store.WorkspaceMember, activity store.ActivityEntry) error {
	if f.redeemInviteFn != nil {
		return f.redeemInviteFn(ctx, inviteID, member, activity)
	}
	return nil
}
func (f *fakeStore) InsertProject(ctx context.Context, project store.Project, members []store.ProjectMember) error {
	if f.insertProjectFn != nil {
		return f.insertProjectFn(ctx, project, members)
	}
	return nil
}
func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) ListProjects(context.Context, string) ([]store.Project, error) { return nil, nil }
func (f *fakeStore) ListProjectsForMember(context.Context, string, string) ([]store.Project, error) {
	return nil, nil
}
func (f *fakeStore) ListArchivedProjects(context.Context, string) ([]store.Project, error) {
	return nil, nil
}
func (f *fakeStore) UpdateProject(context.Context, string, string, string, string, []string) error {
	return nil
}
func (f *fakeStore) ToggleProjectArchived(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) GetProjectMember(ctx context.Context, projectID, userID string) (store.ProjectMember, error) {
	if f.getProjectMemberFn != nil {
		return f.getProjectMemberFn(ctx, projectID, userID)
	}
	return store.ProjectMember{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteProjectCascade(ctx context.Context, projectID string) error {
	if f.deleteProjectCascadeFn != nil {
		return f.deleteProjectCascadeFn(ctx, projectID)
	}
	return nil
}
func (f *fakeStore) InsertTask(ctx context.Context, task store.Task) error {
	if f.insertTaskFn != nil {
		return f.insertTaskFn(ctx, task)
	}
	return nil
}
func (f *fakeStore) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, taskID)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) ListTasksForProject(ctx context.Context, projectID string) ([]store.Task, error) {
	if f.listTasksForProjectFn != nil {
		return f.listTasksForProjectFn(ctx, projectID)
	}
	return nil, nil
}
func (f *fakeStore) ListTasksAssignedTo(context.Context, string) ([]store.Task, error) {
	return nil, nil
}
func (f *fakeStore) ListArchivedTasks(context.Context, string) ([]store.Task, error) {
	return nil, nil
}
func (f *fakeStore) DueSoonTasks(ctx context.Context, from, to time.Time) ([]store.Task, error) {
	if f.dueSoonTasksFn != nil {
		return f.dueSoonTasksFn(ctx, from, to)
	}
	return nil, nil
}
func (f *fakeStore) UpdateTaskTitle(context.Context, string, string) error       { return nil }
func (f *fakeStore) UpdateTaskDescription(context.Context, string, string) error { return nil }
func (f *fakeStore) UpdateTaskStatus(context.Context, string, string) error      { return nil }
func (f *fakeStore) UpdateTaskPriority(context.Context, string, string) error    { return nil }
func (f *fakeStore) ReplaceTaskAssignees(ctx context.Context, taskID string, assignees []string) error {
	if f.replaceTaskAssigneesFn != nil {
		return f.replaceTaskAssigneesFn(ctx, taskID, assignees)
	}
	return nil
}
func (f *fakeStore) ToggleTaskWatcher(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) ToggleTaskArchived(context.Context, string) (bool, error) { return true, nil }
func (f *fakeStore) DeleteTaskCascade(ctx context.Context, taskID string) error {
	if f.deleteTaskCascadeFn != nil {
		return f.deleteTaskCascadeFn(ctx, taskID)
	}
	return nil
}
func (f *fakeStore) InsertSubtask(context.Context, store.Subtask) error { return nil }
func (f *fakeStore) ListSubtasks(context.Context, string) ([]store.Subtask, error) {
	return nil, nil
}
func (f *fakeStore) UpdateSubtaskCompleted(context.Context, string, string, bool) (store.Subtask, error) {
	return store.Subtask{}, nil
}
func (f *fakeStore) InsertAttachment(context.Context, store.Attachment) error { return nil }
func (f *fakeStore) ListAttachments(context.Context, string) ([]store.Attachment, error) {
	return nil, nil
}
func (f *fakeStore) DeleteAttachment(context.Context, string, string) (bool, error) {
	return true, nil
}
func (f *fakeStore) InsertComment(context.Context, store.Comment) error { return nil }
func (f *fakeStore) ListComments(context.Context, string) ([]store.Comment, error) {
	return nil, nil
}
func (f *fakeStore) InsertActivity(context.Context, store.ActivityEntry) error { return nil }
func (f *fakeStore) ListActivityByResource(context.Context, string) ([]store.ActivityEntry, error) {
	return nil, nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }

type fanoutCall struct {
	recipients []string
	event      notify.Event
}

type fakeNotifier struct {
	sends    []notify.Event
	fanouts  []fanoutCall
	existsFn func(context.Context, string, string, string, string) (bool, error)
}

func (f *fakeNotifier) Send(ctx context.Context, event notify.Event) (store.Notification, error) {
	f.sends = append(f.sends, event)
	return store.Notification{ID: "ntf_test", UserID: event.RecipientID}, nil
}
func (f *fakeNotifier) Fanout(ctx context.Context, recipients []string, event notify.Event) {
	f.fanouts = append(f.fanouts, fanoutCall{recipients: recipients, event: event})
}
func (f *fakeNotifier) List(context.Context, string) ([]store.Notification, error) {
	return nil, nil
}
func (f *fakeNotifier) MarkRead(context.Context, string, string) (bool, error) { return true, nil }
func (f *fakeNotifier) MarkAllRead(context.Context, string) error              { return nil }
func (f *fakeNotifier) Delete(context.Context, string, string) (bool, error)   { return true, nil }
func (f *fakeNotifier) Exists(ctx context.Context, userID, targetType, targetID, title string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, userID, targetType, targetID, title)
	}
	return false, nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:   "test-secret",
		AccessTTL:   time.Hour,
		InviteTTL:   7 * 24 * time.Hour,
		FrontendURL: "http://localhost:5173",
	}
}

func newTestService(st *fakeStore, n *fakeNotifier) *Service {
	return &Service{cfg: testConfig(), store: st, notifier: n}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError %s, got %v", code, err)
	}
	if domainErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, domainErr.Code, domainErr.Message)
	}
}

func memberOf(role string) func(context.Context, string, string) (store.WorkspaceMember, error) {
	return func(_ context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
		return store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: role}, nil
	}
}

func TestWorkspaceExistenceCheckedBeforeMembership(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeNotifier{})
	session := Session{UserID: "u1"}

	_, err := svc.GetWorkspace(context.Background(), session, "ws_missing")
	assertCode(t, err, "NOT_FOUND")

	st.getWorkspaceFn = func(context.Context, string) (store.Workspace, error) {
		return store.Workspace{ID: "ws1", OwnerID: "u2"}, nil
	}
	_, err = svc.GetWorkspace(context.Background(), session, "ws1")
	assertCode(t, err, "FORBIDDEN")
}

func TestDeleteWorkspaceOwnerOnly(t *testing.T) {
	cascaded := false
	st := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws1", Name: "Acme", OwnerID: "u1"}, nil
		},
		getWorkspaceMemberFn: memberOf("admin"),
		deleteWorkspaceCascadeFn: func(context.Context, string) error {
			cascaded = true
			return nil
		},
	}
	svc := newTestService(st, &fakeNotifier{})

	err := svc.DeleteWorkspace(context.Background(), Session{UserID: "u2"}, "ws1")
	assertCode(t, err, "FORBIDDEN")
	if cascaded {
		t.Fatal("cascade ran for a non-owner")
	}

	st.getWorkspaceMemberFn = memberOf("owner")
	if err := svc.DeleteWorkspace(context.Background(), Session{UserID: "u1"}, "ws1"); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}
	if !cascaded {
		t.Fatal("cascade did not run for the owner")
	}
}

func TestTransferOwnership(t *testing.T) {
	var gotOld, gotNew string
	st := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws1", Name: "Acme", OwnerID: "u1"}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
			switch userID {
			case "u1":
				return store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: "owner"}, nil
			case "u2":
				return store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: "member"}, nil
			}
			return store.WorkspaceMember{}, sql.ErrNoRows
		},
		transferOwnershipFn: func(_ context.Context, _, oldOwnerID, newOwnerID string) error {
			gotOld, gotNew = oldOwnerID, newOwnerID
			return nil
		},
	}
	svc := newTestService(st, &fakeNotifier{})
	session := Session{UserID: "u1"}

	_, err := svc.TransferOwnership(context.Background(), session, "ws1", "u9")
	assertCode(t, err, "NOT_FOUND")

	_, err = svc.TransferOwnership(context.Background(), session, "ws1", "u1")
	assertCode(t, err, "CONFLICT")

	if _, err := svc.TransferOwnership(context.Background(), session, "ws1", "u2"); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if gotOld != "u1" || gotNew != "u2" {
		t.Fatalf("transfer recorded %s -> %s", gotOld, gotNew)
	}
}

func TestInviteMember(t *testing.T) {
	st := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws1", Name: "Acme", OwnerID: "u1"}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
			if userID == "u1" {
				return store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: "owner"}, nil
			}
			return store.WorkspaceMember{}, sql.ErrNoRows
		},
	}
	svc := newTestService(st, &fakeNotifier{})
	session := Session{UserID: "u1", UserName: "Alice"}

	_, err := svc.InviteMember(context.Background(), session, "ws1", "ghost@example.com", "member")
	assertCode(t, err, "NOT_FOUND")

	st.getUserByEmailFn = func(context.Context, string) (store.User, error) {
		return store.User{ID: "u2", Name: "Bob", Email: "bob@example.com"}, nil
	}

	// Live invite already pending.
	st.getInviteFn = func(context.Context, string, string) (store.WorkspaceInvite, error) {
		return store.WorkspaceInvite{ID: "inv_live", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	_, err = svc.InviteMember(context.Background(), session, "ws1", "bob@example.com", "member")
	assertCode(t, err, "CONFLICT")

	// Expired invite is replaced.
	deleted := ""
	var inserted store.WorkspaceInvite
	st.getInviteFn = func(context.Context, string, string) (store.WorkspaceInvite, error) {
		return store.WorkspaceInvite{ID: "inv_old", ExpiresAt: time.Now().Add(-time.Hour)}, nil
	}
	st.deleteInviteFn = func(_ context.Context, inviteID string) error {
		deleted = inviteID
		return nil
	}
	st.insertInviteFn = func(_ context.Context, invite store.WorkspaceInvite) error {
		inserted = invite
		return nil
	}

	payload, err := svc.InviteMember(context.Background(), session, "ws1", "bob@example.com", "owner")
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if deleted != "inv_old" {
		t.Fatalf("expired invite not removed, deleted=%q", deleted)
	}
	if inserted.UserID != "u2" || inserted.TokenHash == "" {
		t.Fatalf("unexpected invite row: %+v", inserted)
	}
	// Requesting the owner role grants member instead.
	if payload["role"] != "member" {
		t.Fatalf("expected role member, got %v", payload["role"])
	}
}

func TestRedeemInviteToken(t *testing.T) {
	cfg := testConfig()
	issue := func(exp time.Time) string {
		token, err := auth.IssueInviteToken([]byte(cfg.JWTSecret), auth.InviteClaims{
			Sub:         "u2",
			WorkspaceID: "ws1",
			Role:        "admin",
			Exp:         exp.Unix(),
		})
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		return token
	}
	token := issue(time.Now().Add(time.Hour))

	var redeemed store.WorkspaceMember
	st := &fakeStore{
		getInviteFn: func(context.Context, string, string) (store.WorkspaceInvite, error) {
			return store.WorkspaceInvite{ID: "inv1", UserID: "u2", WorkspaceID: "ws1", TokenHash: auth.HashToken(token), Role: "admin", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws1", Name: "Acme", OwnerID: "u1"}, nil
		},
		getUserByIDFn: func(_ context.Context, userID string) (store.User, error) {
			return store.User{ID: userID, Name: "Bob"}, nil
		},
		redeemInviteFn: func(_ context.Context, _ string, member store.WorkspaceMember, _ store.ActivityEntry) error {
			redeemed = member
			return nil
		},
	}
	svc := newTestService(st, &fakeNotifier{})

	payload, err := svc.RedeemInviteToken(context.Background(), token)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if redeemed.UserID != "u2" || redeemed.Role != "admin" {
		t.Fatalf("unexpected membership: %+v", redeemed)
	}
	if payload["role"] != "admin" {
		t.Fatalf("expected role admin, got %v", payload["role"])
	}

	// Expired token maps to its own code, not a plain 401.
	_, err = svc.RedeemInviteToken(context.Background(), issue(time.Now().Add(-time.Hour)))
	assertCode(t, err, "INVITE_EXPIRED")
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr.Status != 410 {
		t.Fatalf("expected status 410, got %d", domainErr.Status)
	}

	// A reissued invite supersedes the old token.
	st.getInviteFn = func(context.Context, string, string) (store.WorkspaceInvite, error) {
		return store.WorkspaceInvite{ID: "inv2", TokenHash: "other-hash", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	_, err = svc.RedeemInviteToken(context.Background(), token)
	assertCode(t, err, "UNAUTHORIZED")

	// Already a member.
	st.getInviteFn = func(context.Context, string, string) (store.WorkspaceInvite, error) {
		return store.WorkspaceInvite{ID: "inv1", TokenHash: auth.HashToken(token), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	st.getWorkspaceMemberFn = memberOf("member")
	_, err = svc.RedeemInviteToken(context.Background(), token)
	assertCode(t, err, "CONFLICT")
}

func TestCreateProjectSnapshotsWorkspaceMembers(t *testing.T) {
	var insertedMembers []store.ProjectMember
	st := &fakeStore{
		getWorkspaceFn: func(context.Context, string) (store.Workspace, error) {
			return store.Workspace{ID: "ws1", Name: "Acme", OwnerID: "u1"}, nil
		},
		getWorkspaceMemberFn: func(_ context.Context, workspaceID, userID string) (store.WorkspaceMember, error) {
			if userID == "u1" || userID == "u2" {
				return store.WorkspaceMember{WorkspaceID: workspaceID, UserID: userID, Role: "member"}, nil
			}
			return store.WorkspaceMember{}, sql.ErrNoRows
		},
		insertProjectFn: func(_ context.Context, _ store.Project, members []store.ProjectMember) error {
			insertedMembers = members
			return nil
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(st, notifier)

	_, err := svc.CreateProject(context.Background(), Session{UserID: "u1"}, "ws1", CreateProjectInput{
		Title:   "Website",
		Members: []string{"u2", "u_outsider", "u1"},
	})
	if err != nil {
		t.Fatalf("create project failed: %v", err)
	}

	// Creator plus the one valid workspace member; the outsider is dropped.
	if len(insertedMembers) != 2 {
		t.Fatalf("expected 2 project members, got %d", len(insertedMembers))
	}
	if insertedMembers[0].UserID != "u1" || insertedMembers[1].UserID != "u2" {
		t.Fatalf("unexpected snapshot: %+v", insertedMembers)
	}

	if len(notifier.fanouts) != 1 {
		t.Fatalf("expected 1 fanout, got %d", len(notifier.fanouts))
	}
	call := notifier.fanouts[0]
	if len(call.recipients) != 1 || call.recipients[0] != "u2" {
		t.Fatalf("unexpected recipients: %v", call.recipients)
	}
	if call.event.Title != "Project assigned" {
		t.Fatalf("unexpected title: %q", call.event.Title)
	}
	if call.event.Message != `You were added to "Website" project` {
		t.Fatalf("unexpected message: %q", call.event.Message)
	}
}

func TestCreateTaskValidatesAndNotifiesAssignees(t *testing.T) {
	st := &fakeStore{
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "p1", WorkspaceID: "ws1", Title: "Website"}, nil
		},
		getProjectMemberFn: func(_ context.Context, projectID, userID string) (store.ProjectMember, error) {
			return store.ProjectMember{ProjectID: projectID, UserID: userID}, nil
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(st, notifier)
	session := Session{UserID: "u1"}

	_, err := svc.CreateTask(context.Background(), session, "p1", CreateTaskInput{Title: "Ship it", Status: "Shipped"})
	assertCode(t, err, "VALIDATION_ERROR")

	_, err = svc.CreateTask(context.Background(), session, "p1", CreateTaskInput{
		Title:     "Ship it",
		Assignees: []string{"u1", "u2"},
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}

	if len(notifier.fanouts) != 1 {
		t.Fatalf("expected 1 fanout, got %d", len(notifier.fanouts))
	}
	call := notifier.fanouts[0]
	if len(call.recipients) != 1 || call.recipients[0] != "u2" {
		t.Fatalf("creator must not be notified: %v", call.recipients)
	}
	if call.event.Message != `You were assigned to task "Ship it"` {
		t.Fatalf("unexpected message: %q", call.event.Message)
	}
}

func TestUpdateTaskAssigneesNotifiesOnlyNewlyAdded(t *testing.T) {
	var replaced []string
	st := &fakeStore{
		getTaskFn: func(context.Context, string) (store.Task, error) {
			return store.Task{ID: "t1", ProjectID: "p1", Title: "Ship it", Assignees: []string{"u2"}}, nil
		},
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "p1", WorkspaceID: "ws1"}, nil
		},
		getProjectMemberFn: func(_ context.Context, projectID, userID string) (store.ProjectMember, error) {
			return store.ProjectMember{ProjectID: projectID, UserID: userID}, nil
		},
		replaceTaskAssigneesFn: func(_ context.Context, _ string, assignees []string) error {
			replaced = assignees
			return nil
		},
	}
	notifier := &fakeNotifier{}
	svc := newTestService(st, notifier)

	err := svc.UpdateTaskAssignees(context.Background(), Session{UserID: "u1"}, "t1", []string{"u2", "u3"})
	if err != nil {
		t.Fatalf("update assignees failed: %v", err)
	}
	if len(replaced) != 2 {
		t.Fatalf("expected full replacement, got %v", replaced)
	}
	if len(notifier.fanouts) != 1 {
		t.Fatalf("expected 1 fanout, got %d", len(notifier.fanouts))
	}
	call := notifier.fanouts[0]
	if len(call.recipients) != 1 || call.recipients[0] != "u3" {
		t.Fatalf("only the newly added assignee should be notified: %v", call.recipients)
	}
}

func TestDeleteProjectCreatorOnly(t *testing.T) {
	cascaded := false
	st := &fakeStore{
		getProjectFn: func(context.Context, string) (store.Project, error) {
			return store.Project{ID: "p1", WorkspaceID: "ws1", Title: "Website", CreatedBy: "u1"}, nil
		},
		getProjectMemberFn: func(_ context.Context, projectID, userID string) (store.ProjectMember, error) {
			return store.ProjectMember{ProjectID: projectID, UserID: userID}, nil
		},
		deleteProjectCascadeFn: func(context.Context, string) error {
			cascaded = true
			return nil
		},
	}
	svc := newTestService(st, &fakeNotifier{})

	err := svc.DeleteProject(context.Background(), Session{UserID: "u2"}, "p1")
	assertCode(t, err, "FORBIDDEN")
	if cascaded {
		t.Fatal("cascade ran for a non-creator")
	}

	if err := svc.DeleteProject(context.Background(), Session{UserID: "u1"}, "p1"); err != nil {
		t.Fatalf("creator delete failed: %v", err)
	}
	if !cascaded {
		t.Fatal("cascade did not run for the creator")
	}
}

func TestDeleteTaskRequiresProjectMembership(t *testing.T) {
	st := &fakeStore{}
	svc := newTestService(st, &fakeNotifier{})
	session := Session{UserID: "u1"}

	err := svc.DeleteTask(context.Background(), session, "t_missing")
	assertCode(t, err, "NOT_FOUND")

	st.getTaskFn = func(context.Context, string) (store.Task, error) {
		return store.Task{ID: "t1", ProjectID: "p1", Title: "Ship it"}, nil
	}
	st.getProjectFn = func(context.Context, string) (store.Project, error) {
		return store.Project{ID: "p1", WorkspaceID: "ws1"}, nil
	}
	err = svc.DeleteTask(context.Background(), session, "t1")
	assertCode(t, err, "FORBIDDEN")

	st.getProjectMemberFn = func(_ context.Context, projectID, userID string) (store.ProjectMember, error) {
		return store.ProjectMember{ProjectID: projectID, UserID: userID}, nil
	}
	if err := svc.DeleteTask(context.Background(), session, "t1"); err != nil {
		t.Fatalf("member delete failed: %v", err)
	}
}
