package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	RoleProjectOwner = "project_owner"
	RoleDataProvider = "data_provider"
	RoleCollaborator = "collaborator"
)

func CheckValidRole(role string) error {
	switch role {
	case RoleProjectOwner, RoleDataProvider, RoleCollaborator:
		return nil
	}
	return fmt.Errorf("invalid role '%v', must be one of '%v', '%v', or '%v'", role, RoleProjectOwner, RoleDataProvider, RoleCollaborator)
}

const (
	AccessEditor = "editor"
	AccessViewer = "viewer"
	AccessNone   = "no_access"
)

func CheckValidAccessLevel(level string) error {
	switch level {
	case AccessEditor, AccessViewer, AccessNone:
		return nil
	}
	return fmt.Errorf("invalid access level '%v', must be one of '%v', '%v', or '%v'", level, AccessEditor, AccessViewer, AccessNone)
}

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	IsAdmin bool `gorm:"not null;default:false"`

	Projects []Project
	Roles    []ProjectRole `gorm:"constraint:OnDelete:CASCADE"`
}

type Project struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"size:100;not null"`
	Type string `gorm:"size:100;not null"`

	// Serialized json list of label class definitions.
	LabelClasses string

	// Names the upload root directory for the project's files.
	FolderId uuid.UUID `gorm:"type:uuid;not null;index"`

	HasData   bool `gorm:"not null;default:false"`
	CreatedAt time.Time

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User

	Roles      []ProjectRole `gorm:"constraint:OnDelete:CASCADE"`
	Tasks      []Task        `gorm:"constraint:OnDelete:CASCADE"`
	DataAccess []DataAccess  `gorm:"constraint:OnDelete:CASCADE"`
}

// Role uniqueness per (project, user) is a database constraint via the
// composite primary key, assignments use upsert semantics.
type ProjectRole struct {
	ProjectId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;primaryKey"`

	RoleType   string    `gorm:"size:50;not null"`
	AssignedBy uuid.UUID `gorm:"type:uuid"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
	User    *User    `gorm:"constraint:OnDelete:CASCADE"`
}

type Task struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name           string `gorm:"size:100;not null"`
	AnnotationType string `gorm:"size:100;not null"`

	// ';'-joined relative paths of the files selected for this task.
	SelectedFiles string

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User

	ProjectId uuid.UUID `gorm:"type:uuid;not null"`
	Project   *Project  `gorm:"constraint:OnDelete:CASCADE"`

	Access []TaskAccess `gorm:"constraint:OnDelete:CASCADE"`
}

type TaskAccess struct {
	TaskId uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;primaryKey"`

	AccessLevel string    `gorm:"size:50;not null"`
	AssignedBy  uuid.UUID `gorm:"type:uuid"`

	Task *Task `gorm:"constraint:OnDelete:CASCADE"`
	User *User `gorm:"constraint:OnDelete:CASCADE"`
}

// DataAccess is the single source of truth for whether a user folder in a
// project's upload tree is readable. Absence of a row means enabled.
type DataAccess struct {
	ProjectId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserFolder string    `gorm:"size:254;primaryKey"`

	IsEnabled bool `gorm:"not null;default:true"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE"`
}

type Notification struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	UserId  uuid.UUID `gorm:"type:uuid;not null;index"`
	Message string    `gorm:"not null"`
	IsRead  bool      `gorm:"not null;default:false"`

	RelatedProjectId *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}
