package store

import "time"

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

type Workspace struct {
	ID          string
	Name        string
	Description string
	Color       string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorkspaceMember struct {
	WorkspaceID string
	UserID      string
	Role        string
	JoinedAt    time.Time
}

// Project membership is a snapshot taken when the member is added; it is not
// re-validated when the parent workspace's membership later changes.
type Project struct {
	ID          string
	WorkspaceID string
	Title       string
	Description string
	Status      string
	Tags        []string
	IsArchived  bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProjectMember struct {
	ProjectID string
	UserID    string
	Role      string
}

type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Assignees   []string
	Watchers    []string
	IsArchived  bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Subtask struct {
	ID        string
	TaskID    string
	Title     string
	Completed bool
	CreatedAt time.Time
}

type Attachment struct {
	ID         string
	TaskID     string
	Kind       string
	FileName   string
	FileURL    string
	FileType   string
	FileSize   int64
	UploadedBy string
	CreatedAt  time.Time
}

type Comment struct {
	ID        string
	TaskID    string
	Author    string
	Body      string
	CreatedAt time.Time
}

type WorkspaceInvite struct {
	ID          string
	UserID      string
	WorkspaceID string
	TokenHash   string
	Role        string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Notification rows are immutable once written except for IsRead.
type Notification struct {
	ID          string
	UserID      string
	Title       string
	Message     string
	IsRead      bool
	TargetType  string
	TargetID    string
	ProjectID   string
	WorkspaceID string
	CreatedAt   time.Time
}

type ActivityEntry struct {
	ID           string
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Description  string
	CreatedAt    time.Time
}
