package resources

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
)

// Meta describes one page of a paginated listing.
type Meta struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Pages    int `json:"pages"`
	Total    int `json:"total"`
}

// DefaultMeta is the pagination state before the first fetch.
func DefaultMeta() Meta {
	return Meta{Page: defaultPage, PageSize: defaultPageSize}
}

// Page is the data of a paginated list response.
type Page[T any] struct {
	Result []T  `json:"result"`
	Meta   Meta `json:"meta"`
}

// ListParams selects a page and narrows a listing by field filters.
type ListParams struct {
	Page     int
	PageSize int
	Filters  map[string]string
}

// Values encodes the params as the backend query string. Page and page size
// fall back to 1 and 10; empty filters are omitted.
func (params ListParams) Values() url.Values {
	page := params.Page
	if page <= 0 {
		page = defaultPage
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	values := url.Values{}
	values.Set("current", strconv.Itoa(page))
	values.Set("pageSize", strconv.Itoa(pageSize))
	keys := make([]string, 0, len(params.Filters))
	for key := range params.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := strings.TrimSpace(params.Filters[key]); value != "" {
			values.Set(key, value)
		}
	}
	return values
}

// Role is an authorization role.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

func (role Role) Key() int64 { return role.ID }

// RoleInput is the body of role create and update calls.
type RoleInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// User is a dashboard account.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

func (user User) Key() int64 { return user.ID }

// CreateUser is the body of a user create call.
type CreateUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"roleId"`
}

// UpdateUser patches the fields that are set.
type UpdateUser struct {
	ID     int64   `json:"-"`
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	RoleID *int64  `json:"roleId,omitempty"`
}

// Permission grants access to one API path and method.
type Permission struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	APIPath string `json:"apiPath"`
	Method  string `json:"method"`
	Module  string `json:"module"`
}

func (permission Permission) Key() int64 { return permission.ID }

// PermissionInput is the body of permission create and update calls.
type PermissionInput struct {
	Name    string `json:"name"`
	APIPath string `json:"apiPath"`
	Method  string `json:"method"`
	Module  string `json:"module"`
}

// Device is an inventoried asset.
type Device struct {
	ID                   int64  `json:"id"`
	Code                 string `json:"code"`
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	Status               string `json:"status"`
	Department           string `json:"department"`
	Description          string `json:"description,omitempty"`
	MaintenanceCycleDays int    `json:"maintenanceCycleDays"`
	LastMaintenanceDate  string `json:"lastMaintenanceDate,omitempty"`
	UpdatedAt            string `json:"updatedAt,omitempty"`
}

func (device Device) Key() int64 { return device.ID }

// CreateDevice is the body of a device create call.
type CreateDevice struct {
	Code                 string `json:"code"`
	Name                 string `json:"name"`
	Type                 string `json:"type"`
	Status               string `json:"status"`
	Department           string `json:"department"`
	Description          string `json:"description,omitempty"`
	MaintenanceCycleDays int    `json:"maintenanceCycleDays"`
}

// UpdateDevice patches the fields that are set.
type UpdateDevice struct {
	ID                   int64   `json:"-"`
	Code                 *string `json:"code,omitempty"`
	Name                 *string `json:"name,omitempty"`
	Type                 *string `json:"type,omitempty"`
	Status               *string `json:"status,omitempty"`
	Department           *string `json:"department,omitempty"`
	Description          *string `json:"description,omitempty"`
	MaintenanceCycleDays *int    `json:"maintenanceCycleDays,omitempty"`
	LastMaintenanceDate  *string `json:"lastMaintenanceDate,omitempty"`
}

// Issue statuses.
const (
	IssuePending    = "PENDING"
	IssueInProgress = "IN_PROGRESS"
	IssueResolved   = "RESOLVED"
	IssueClosed     = "CLOSED"
)

// Issue is a reported device problem.
type Issue struct {
	ID           int64  `json:"id"`
	ReporterName string `json:"reporterName"`
	Department   string `json:"department"`
	DeviceName   string `json:"deviceName"`
	ErrorType    string `json:"errorType"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Status       string `json:"status"`
	ReportedAt   string `json:"reportedAt,omitempty"`
	ResolvedAt   string `json:"resolvedAt,omitempty"`
}

func (issue Issue) Key() int64 { return issue.ID }

// CreateIssue is the body of an issue report. An empty status is left to the
// backend, which defaults it to PENDING.
type CreateIssue struct {
	ReporterName string `json:"reporterName"`
	Department   string `json:"department"`
	DeviceName   string `json:"deviceName"`
	ErrorType    string `json:"errorType"`
	Description  string `json:"description"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Mail statuses.
const (
	MailSent      = "SENT"
	MailScheduled = "SCHEDULED"
	MailFailed    = "FAILED"
	MailPending   = "PENDING"
)

// Mail is an outbound notification.
type Mail struct {
	ID          int64  `json:"id"`
	To          string `json:"to"`
	CC          string `json:"cc,omitempty"`
	BCC         string `json:"bcc,omitempty"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Status      string `json:"status"`
	ScheduledAt string `json:"scheduledAt,omitempty"`
	SentAt      string `json:"sentAt,omitempty"`
}

func (mail Mail) Key() int64 { return mail.ID }

// MailInput is the body of mail send and update calls.
type MailInput struct {
	To          string  `json:"to"`
	CC          string  `json:"cc,omitempty"`
	BCC         string  `json:"bcc,omitempty"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body"`
	ScheduledAt *string `json:"scheduledAt,omitempty"`
}

// FileData describes a stored upload.
type FileData struct {
	ID         int64  `json:"id"`
	FileName   string `json:"fileName"`
	FileURL    string `json:"fileUrl"`
	FileType   string `json:"fileType"`
	FileSize   int64  `json:"fileSize"`
	S3Key      string `json:"s3Key"`
	UploadDate string `json:"uploadDate"`
	CreatedBy  string `json:"createdBy"`
}

func (file FileData) Key() int64 { return file.ID }

// LeaderboardUser is one ranked entry of the gamification board.
type LeaderboardUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	CCPoints int    `json:"ccPoints"`
	Avatar   string `json:"avatar,omitempty"`
}

func (entry LeaderboardUser) Key() int64 { return entry.ID }
