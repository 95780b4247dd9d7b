package dashboard

import (
	"context"
	"io"

	"github.com/tyemirov/helpdesk/internal/resources"
)

func usersSlice(state *State) *Slice[resources.User] { return &state.Users }
func rolesSlice(state *State) *Slice[resources.Role] { return &state.Roles }
func permissionsSlice(state *State) *Slice[resources.Permission] { return &state.Permissions }
func devicesSlice(state *State) *Slice[resources.Device] { return &state.Devices }
func issuesSlice(state *State) *Slice[resources.Issue] { return &state.Issues }
func mailsSlice(state *State) *Slice[resources.Mail] { return &state.Mails }
func filesSlice(state *State) *Slice[resources.FileData] { return &state.Files }
func leaderboardSlice(state *State) *Slice[resources.LeaderboardUser] { return &state.Leaderboard }

func (store *Store) FetchUsers(ctx context.Context, params resources.ListParams) (resources.Page[resources.User], error) {
	return fetchPage(store, ctx, "users.fetch", usersSlice, func(ctx context.Context) (resources.Page[resources.User], error) {
		return store.api.Users.List(ctx, params)
	})
}

func (store *Store) CreateUser(ctx context.Context, input resources.CreateUser) (resources.User, error) {
	created, err := store.api.Users.Create(ctx, input)
	return applyResult(store, "users.create", usersSlice, created, err, prependItem[resources.User])
}

func (store *Store) UpdateUser(ctx context.Context, input resources.UpdateUser) (resources.User, error) {
	updated, err := store.api.Users.Update(ctx, input)
	return applyResult(store, "users.update", usersSlice, updated, err, replaceItem[resources.User])
}

func (store *Store) DeleteUser(ctx context.Context, id int64) error {
	return applyRemoval(store, "users.delete", usersSlice, id, store.api.Users.Delete(ctx, id))
}

func (store *Store) FetchRoles(ctx context.Context) ([]resources.Role, error) {
	return fetchList(store, ctx, "roles.fetch", rolesSlice, store.api.Roles.List)
}

func (store *Store) CreateRole(ctx context.Context, input resources.RoleInput) (resources.Role, error) {
	created, err := store.api.Roles.Create(ctx, input)
	return applyResult(store, "roles.create", rolesSlice, created, err, prependItem[resources.Role])
}

func (store *Store) UpdateRole(ctx context.Context, id int64, input resources.RoleInput) (resources.Role, error) {
	updated, err := store.api.Roles.Update(ctx, id, input)
	return applyResult(store, "roles.update", rolesSlice, updated, err, replaceItem[resources.Role])
}

func (store *Store) DeleteRole(ctx context.Context, id int64) error {
	return applyRemoval(store, "roles.delete", rolesSlice, id, store.api.Roles.Delete(ctx, id))
}

func (store *Store) FetchPermissions(ctx context.Context, params resources.ListParams) (resources.Page[resources.Permission], error) {
	return fetchPage(store, ctx, "permissions.fetch", permissionsSlice, func(ctx context.Context) (resources.Page[resources.Permission], error) {
		return store.api.Permissions.List(ctx, params)
	})
}

func (store *Store) CreatePermission(ctx context.Context, input resources.PermissionInput) (resources.Permission, error) {
	created, err := store.api.Permissions.Create(ctx, input)
	return applyResult(store, "permissions.create", permissionsSlice, created, err, prependItem[resources.Permission])
}

func (store *Store) UpdatePermission(ctx context.Context, id int64, input resources.PermissionInput) (resources.Permission, error) {
	updated, err := store.api.Permissions.Update(ctx, id, input)
	return applyResult(store, "permissions.update", permissionsSlice, updated, err, replaceItem[resources.Permission])
}

func (store *Store) DeletePermission(ctx context.Context, id int64) error {
	return applyRemoval(store, "permissions.delete", permissionsSlice, id, store.api.Permissions.Delete(ctx, id))
}

func (store *Store) FetchDevices(ctx context.Context, params resources.ListParams) (resources.Page[resources.Device], error) {
	return fetchPage(store, ctx, "devices.fetch", devicesSlice, func(ctx context.Context) (resources.Page[resources.Device], error) {
		return store.api.Devices.List(ctx, params)
	})
}

func (store *Store) CreateDevice(ctx context.Context, input resources.CreateDevice) (resources.Device, error) {
	created, err := store.api.Devices.Create(ctx, input)
	return applyResult(store, "devices.create", devicesSlice, created, err, prependItem[resources.Device])
}

func (store *Store) UpdateDevice(ctx context.Context, input resources.UpdateDevice) (resources.Device, error) {
	updated, err := store.api.Devices.Update(ctx, input)
	return applyResult(store, "devices.update", devicesSlice, updated, err, replaceItem[resources.Device])
}

func (store *Store) DeleteDevice(ctx context.Context, id int64) error {
	return applyRemoval(store, "devices.delete", devicesSlice, id, store.api.Devices.Delete(ctx, id))
}

func (store *Store) FetchIssues(ctx context.Context, params resources.ListParams) (resources.Page[resources.Issue], error) {
	return fetchPage(store, ctx, "issues.fetch", issuesSlice, func(ctx context.Context) (resources.Page[resources.Issue], error) {
		return store.api.Issues.List(ctx, params)
	})
}

func (store *Store) CreateIssue(ctx context.Context, input resources.CreateIssue) (resources.Issue, error) {
	created, err := store.api.Issues.Create(ctx, input)
	return applyResult(store, "issues.create", issuesSlice, created, err, prependItem[resources.Issue])
}

func (store *Store) FetchMails(ctx context.Context, params resources.ListParams) (resources.Page[resources.Mail], error) {
	return fetchPage(store, ctx, "mails.fetch", mailsSlice, func(ctx context.Context) (resources.Page[resources.Mail], error) {
		return store.api.Mails.List(ctx, params)
	})
}

func (store *Store) SendMail(ctx context.Context, input resources.MailInput) (resources.Mail, error) {
	sent, err := store.api.Mails.Send(ctx, input)
	return applyResult(store, "mails.send", mailsSlice, sent, err, prependItem[resources.Mail])
}

func (store *Store) UpdateMail(ctx context.Context, id int64, input resources.MailInput) (resources.Mail, error) {
	updated, err := store.api.Mails.Update(ctx, id, input)
	return applyResult(store, "mails.update", mailsSlice, updated, err, replaceItem[resources.Mail])
}

func (store *Store) DeleteMail(ctx context.Context, id int64) error {
	return applyRemoval(store, "mails.delete", mailsSlice, id, store.api.Mails.Delete(ctx, id))
}

func (store *Store) FetchFiles(ctx context.Context) ([]resources.FileData, error) {
	return fetchList(store, ctx, "files.fetch", filesSlice, store.api.Files.List)
}

func (store *Store) UploadFile(ctx context.Context, fileName string, content io.Reader) (resources.FileData, error) {
	uploaded, err := store.api.Files.Upload(ctx, fileName, content)
	return applyResult(store, "files.upload", filesSlice, uploaded, err, prependItem[resources.FileData])
}

func (store *Store) DeleteFile(ctx context.Context, id int64) error {
	return applyRemoval(store, "files.delete", filesSlice, id, store.api.Files.Delete(ctx, id))
}

func (store *Store) FetchLeaderboard(ctx context.Context) ([]resources.LeaderboardUser, error) {
	return fetchList(store, ctx, "gamification.leaderboard", leaderboardSlice, store.api.Gamification.Leaderboard)
}
