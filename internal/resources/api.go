package resources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tyemirov/helpdesk/internal/apiclient"
)

// Doer sends requests through the authenticated client.
type Doer interface {
	Do(ctx context.Context, request apiclient.Request, out any) error
	Upload(ctx context.Context, path string, fieldName string, fileName string, content io.Reader, out any) error
}

// API groups the typed endpoint services.
type API struct {
	Users        *UsersService
	Roles        *RolesService
	Permissions  *PermissionsService
	Devices      *DevicesService
	Issues       *IssuesService
	Mails        *MailsService
	Files        *FilesService
	Gamification *GamificationService
}

// New binds every service to doer.
func New(doer Doer) *API {
	return &API{
		Users:        &UsersService{collection: collection[User]{doer: doer, name: "users", path: "/users"}},
		Roles:        &RolesService{collection: collection[Role]{doer: doer, name: "roles", path: "/roles"}},
		Permissions:  &PermissionsService{collection: collection[Permission]{doer: doer, name: "permissions", path: "/permissions"}},
		Devices:      &DevicesService{collection: collection[Device]{doer: doer, name: "devices", path: "/devices"}},
		Issues:       &IssuesService{collection: collection[Issue]{doer: doer, name: "issues", path: "/issues"}},
		Mails:        &MailsService{collection: collection[Mail]{doer: doer, name: "mails", path: "/mails"}},
		Files:        &FilesService{collection: collection[FileData]{doer: doer, name: "files", path: "/files"}},
		Gamification: &GamificationService{doer: doer},
	}
}

// collection implements the REST verbs shared by the domain endpoints.
type collection[T any] struct {
	doer Doer
	name string
	path string
}

func (resource collection[T]) itemPath(id int64) string {
	return resource.path + "/" + strconv.FormatInt(id, 10)
}

func (resource collection[T]) page(ctx context.Context, query url.Values) (Page[T], error) {
	var page Page[T]
	if err := resource.doer.Do(ctx, apiclient.Request{Path: resource.path, Query: query}, &page); err != nil {
		return Page[T]{}, fmt.Errorf("resources.%s.list: %w", resource.name, err)
	}
	if page.Result == nil {
		page.Result = []T{}
	}
	return page, nil
}

func (resource collection[T]) all(ctx context.Context, query url.Values) ([]T, error) {
	var items []T
	if err := resource.doer.Do(ctx, apiclient.Request{Path: resource.path, Query: query}, &items); err != nil {
		return nil, fmt.Errorf("resources.%s.list: %w", resource.name, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (resource collection[T]) create(ctx context.Context, body any) (T, error) {
	var created T
	if err := resource.doer.Do(ctx, apiclient.Request{Method: http.MethodPost, Path: resource.path, Body: body}, &created); err != nil {
		return created, fmt.Errorf("resources.%s.create: %w", resource.name, err)
	}
	return created, nil
}

func (resource collection[T]) update(ctx context.Context, method string, id int64, body any) (T, error) {
	var updated T
	if err := resource.doer.Do(ctx, apiclient.Request{Method: method, Path: resource.itemPath(id), Body: body}, &updated); err != nil {
		return updated, fmt.Errorf("resources.%s.update: %w", resource.name, err)
	}
	return updated, nil
}

func (resource collection[T]) remove(ctx context.Context, id int64) error {
	if err := resource.doer.Do(ctx, apiclient.Request{Method: http.MethodDelete, Path: resource.itemPath(id)}, nil); err != nil {
		return fmt.Errorf("resources.%s.delete: %w", resource.name, err)
	}
	return nil
}

// UsersService manages dashboard accounts.
type UsersService struct {
	collection collection[User]
}

func (service *UsersService) List(ctx context.Context, params ListParams) (Page[User], error) {
	return service.collection.page(ctx, params.Values())
}

func (service *UsersService) Create(ctx context.Context, input CreateUser) (User, error) {
	return service.collection.create(ctx, input)
}

func (service *UsersService) Update(ctx context.Context, input UpdateUser) (User, error) {
	return service.collection.update(ctx, http.MethodPatch, input.ID, input)
}

func (service *UsersService) Delete(ctx context.Context, id int64) error {
	return service.collection.remove(ctx, id)
}

// RolesService manages roles. The role listing is not paginated.
type RolesService struct {
	collection collection[Role]
}

func (service *RolesService) List(ctx context.Context) ([]Role, error) {
	page, err := service.collection.page(ctx, nil)
	if err != nil {
		return nil, err
	}
	return page.Result, nil
}

func (service *RolesService) Create(ctx context.Context, input RoleInput) (Role, error) {
	return service.collection.create(ctx, input)
}

func (service *RolesService) Update(ctx context.Context, id int64, input RoleInput) (Role, error) {
	return service.collection.update(ctx, http.MethodPatch, id, input)
}

func (service *RolesService) Delete(ctx context.Context, id int64) error {
	return service.collection.remove(ctx, id)
}

// PermissionsService manages permissions. Filters: name, module.
type PermissionsService struct {
	collection collection[Permission]
}

func (service *PermissionsService) List(ctx context.Context, params ListParams) (Page[Permission], error) {
	return service.collection.page(ctx, params.Values())
}

func (service *PermissionsService) Create(ctx context.Context, input PermissionInput) (Permission, error) {
	return service.collection.create(ctx, input)
}

func (service *PermissionsService) Update(ctx context.Context, id int64, input PermissionInput) (Permission, error) {
	return service.collection.update(ctx, http.MethodPatch, id, input)
}

func (service *PermissionsService) Delete(ctx context.Context, id int64) error {
	return service.collection.remove(ctx, id)
}

// DevicesService manages the device inventory. Filters: name, type, status.
type DevicesService struct {
	collection collection[Device]
}

func (service *DevicesService) List(ctx context.Context, params ListParams) (Page[Device], error) {
	return service.collection.page(ctx, params.Values())
}

func (service *DevicesService) Create(ctx context.Context, input CreateDevice) (Device, error) {
	return service.collection.create(ctx, input)
}

func (service *DevicesService) Update(ctx context.Context, input UpdateDevice) (Device, error) {
	return service.collection.update(ctx, http.MethodPatch, input.ID, input)
}

func (service *DevicesService) Delete(ctx context.Context, id int64) error {
	return service.collection.remove(ctx, id)
}

// IssuesService lists and reports issues. Filters: status, reporterName.
type IssuesService struct {
	collection collection[Issue]
}

func (service *IssuesService) List(ctx context.Context, params ListParams) (Page[Issue], error) {
	return service.collection.page(ctx, params.Values())
}

func (service *IssuesService) Create(ctx context.Context, input CreateIssue) (Issue, error) {
	return service.collection.create(ctx, input)
}

// MailsService sends and schedules notification mail. Filters: to, status.
type MailsService struct {
	collection collection[Mail]
}

func (service *MailsService) List(ctx context.Context, params ListParams) (Page[Mail], error) {
	return service.collection.page(ctx, params.Values())
}

func (service *MailsService) Send(ctx context.Context, input MailInput) (Mail, error) {
	return service.collection.create(ctx, input)
}

// Update replaces a mail that has not been sent yet.
func (service *MailsService) Update(ctx context.Context, id int64, input MailInput) (Mail, error) {
	return service.collection.update(ctx, http.MethodPut, id, input)
}

func (service *MailsService) Delete(ctx context.Context, id int64) error {
	return service.collection.remove(ctx, id)
}

const uploadFieldName = "file"

// FilesService manages stored uploads.
type FilesService struct {
	collection collection[FileData]
}

func (service *FilesService) List(ctx context.Context) ([]FileData, error) {
	return service.collection.all(ctx, nil)
}

// Upload stores content under fileName and returns its metadata.
func (service *FilesService) Upload(ctx context.Context, fileName string, content io.Reader) (FileData, error) {
	var uploaded FileData
	if err := service.collection.doer.Upload(ctx, service.collection.path+"/upload", uploadFieldName, fileName, content, &uploaded); err != nil {
		return FileData{}, fmt.Errorf("resources.files.upload: %w", err)
	}
	return uploaded, nil
}

func (service *FilesService) Delete(ctx context.Context, id int64) error {
	return service.collection.remove(ctx, id)
}

// GamificationService reads the points leaderboard.
type GamificationService struct {
	doer Doer
}

func (service *GamificationService) Leaderboard(ctx context.Context) ([]LeaderboardUser, error) {
	var entries []LeaderboardUser
	if err := service.doer.Do(ctx, apiclient.Request{Path: "/gamification/leaderboard"}, &entries); err != nil {
		return nil, fmt.Errorf("resources.gamification.leaderboard: %w", err)
	}
	if entries == nil {
		entries = []LeaderboardUser{}
	}
	return entries, nil
}
