package dashboard

import (
	"github.com/tyemirov/helpdesk/internal/resources"
	"github.com/tyemirov/helpdesk/internal/session"
)

// Slice is the cached state of one domain listing.
type Slice[T any] struct {
	List      []T             `json:"list"`
	Meta      *resources.Meta `json:"meta,omitempty"`
	IsLoading bool            `json:"isLoading"`
	Error     string          `json:"error,omitempty"`
}

// AuthState mirrors the credential store for rendering.
type AuthState struct {
	User            *session.User `json:"user"`
	AccessToken     string        `json:"accessToken,omitempty"`
	IsAuthenticated bool          `json:"isAuthenticated"`
	IsLoading       bool          `json:"isLoading"`
	Error           string        `json:"error,omitempty"`
}

// State is the whole dashboard cache. Revision increases with every change.
type State struct {
	Revision    uint64                           `json:"revision"`
	Auth        AuthState                        `json:"auth"`
	Users       Slice[resources.User]            `json:"users"`
	Roles       Slice[resources.Role]            `json:"roles"`
	Permissions Slice[resources.Permission]      `json:"permissions"`
	Devices     Slice[resources.Device]          `json:"devices"`
	Issues      Slice[resources.Issue]           `json:"issues"`
	Mails       Slice[resources.Mail]            `json:"mails"`
	Files       Slice[resources.FileData]        `json:"files"`
	Leaderboard Slice[resources.LeaderboardUser] `json:"leaderboard"`
}

// InitialState is the state before any fetch. Paged slices start at page 1 of 10.
func InitialState() State {
	return State{
		Users:       pagedSlice[resources.User](),
		Roles:       Slice[resources.Role]{List: []resources.Role{}},
		Permissions: pagedSlice[resources.Permission](),
		Devices:     pagedSlice[resources.Device](),
		Issues:      pagedSlice[resources.Issue](),
		Mails:       pagedSlice[resources.Mail](),
		Files:       Slice[resources.FileData]{List: []resources.FileData{}},
		Leaderboard: Slice[resources.LeaderboardUser]{List: []resources.LeaderboardUser{}},
	}
}

func pagedSlice[T any]() Slice[T] {
	meta := resources.DefaultMeta()
	return Slice[T]{List: []T{}, Meta: &meta}
}

// Clone returns a deep copy of the state.
func (state State) Clone() State {
	cloned := state
	if state.Auth.User != nil {
		user := *state.Auth.User
		cloned.Auth.User = &user
	}
	cloned.Users = state.Users.clone()
	cloned.Roles = state.Roles.clone()
	cloned.Permissions = state.Permissions.clone()
	cloned.Devices = state.Devices.clone()
	cloned.Issues = state.Issues.clone()
	cloned.Mails = state.Mails.clone()
	cloned.Files = state.Files.clone()
	cloned.Leaderboard = state.Leaderboard.clone()
	return cloned
}

func (slice Slice[T]) clone() Slice[T] {
	cloned := slice
	cloned.List = append(make([]T, 0, len(slice.List)), slice.List...)
	if slice.Meta != nil {
		meta := *slice.Meta
		cloned.Meta = &meta
	}
	return cloned
}

// settle clears transient flags of a state restored from storage.
func (state *State) settle() {
	state.Auth.IsLoading = false
	state.Users.IsLoading = false
	state.Roles.IsLoading = false
	state.Permissions.IsLoading = false
	state.Devices.IsLoading = false
	state.Issues.IsLoading = false
	state.Mails.IsLoading = false
	state.Files.IsLoading = false
	state.Leaderboard.IsLoading = false
}
