package mockapi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tyemirov/helpdesk/internal/resources"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("directory.invalid_credentials")
	// ErrUserNotFound indicates no account has the requested id.
	ErrUserNotFound = errors.New("directory.user_not_found")
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("directory.email_taken")
)

type account struct {
	user         resources.User
	passwordHash []byte
}

// Directory holds the backend accounts and their bcrypt password hashes.
type Directory struct {
	mutex    sync.RWMutex
	cost     int
	nextID   int64
	accounts map[int64]*account
}

// NewDirectory constructs an empty directory. A non-positive cost selects
// bcrypt.DefaultCost.
func NewDirectory(cost int) *Directory {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &Directory{cost: cost, accounts: make(map[int64]*account)}
}

// Add creates an account with a hashed password.
func (directory *Directory) Add(name string, email string, password string, role resources.Role) (resources.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), directory.cost)
	if err != nil {
		return resources.User{}, fmt.Errorf("directory.add: %w", err)
	}
	directory.mutex.Lock()
	defer directory.mutex.Unlock()
	if directory.emailInUseLocked(email, 0) {
		return resources.User{}, fmt.Errorf("directory.add: %w", ErrEmailTaken)
	}
	directory.nextID++
	user := resources.User{
		ID:    directory.nextID,
		Email: strings.TrimSpace(email),
		Name:  strings.TrimSpace(name),
		Role:  role,
	}
	directory.accounts[user.ID] = &account{user: user, passwordHash: hash}
	return user, nil
}

// Authenticate returns the account matching email when password is correct.
func (directory *Directory) Authenticate(email string, password string) (resources.User, error) {
	directory.mutex.RLock()
	var match *account
	for _, candidate := range directory.accounts {
		if strings.EqualFold(candidate.user.Email, strings.TrimSpace(email)) {
			match = candidate
			break
		}
	}
	var hash []byte
	var user resources.User
	if match != nil {
		hash = match.passwordHash
		user = match.user
	}
	directory.mutex.RUnlock()

	if match == nil {
		return resources.User{}, fmt.Errorf("directory.authenticate: %w", ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return resources.User{}, fmt.Errorf("directory.authenticate: %w", ErrInvalidCredentials)
	}
	return user, nil
}

// Lookup returns the account with id.
func (directory *Directory) Lookup(id int64) (resources.User, error) {
	directory.mutex.RLock()
	defer directory.mutex.RUnlock()
	entry, ok := directory.accounts[id]
	if !ok {
		return resources.User{}, fmt.Errorf("directory.lookup: %w", ErrUserNotFound)
	}
	return entry.user, nil
}

// List returns the accounts newest first, narrowed by case-insensitive
// substring filters on name and email.
func (directory *Directory) List(filters map[string]string) []resources.User {
	directory.mutex.RLock()
	defer directory.mutex.RUnlock()
	users := make([]resources.User, 0, len(directory.accounts))
	for _, entry := range directory.accounts {
		if !containsFold(entry.user.Name, filters["name"]) || !containsFold(entry.user.Email, filters["email"]) {
			continue
		}
		users = append(users, entry.user)
	}
	sort.Slice(users, func(left, right int) bool { return users[left].ID > users[right].ID })
	return users
}

// Update changes the fields that are set.
func (directory *Directory) Update(id int64, name *string, email *string, role *resources.Role) (resources.User, error) {
	directory.mutex.Lock()
	defer directory.mutex.Unlock()
	entry, ok := directory.accounts[id]
	if !ok {
		return resources.User{}, fmt.Errorf("directory.update: %w", ErrUserNotFound)
	}
	if email != nil {
		if directory.emailInUseLocked(*email, id) {
			return resources.User{}, fmt.Errorf("directory.update: %w", ErrEmailTaken)
		}
		entry.user.Email = strings.TrimSpace(*email)
	}
	if name != nil {
		entry.user.Name = strings.TrimSpace(*name)
	}
	if role != nil {
		entry.user.Role = *role
	}
	return entry.user, nil
}

// Delete removes the account with id.
func (directory *Directory) Delete(id int64) error {
	directory.mutex.Lock()
	defer directory.mutex.Unlock()
	if _, ok := directory.accounts[id]; !ok {
		return fmt.Errorf("directory.delete: %w", ErrUserNotFound)
	}
	delete(directory.accounts, id)
	return nil
}

func (directory *Directory) emailInUseLocked(email string, exceptID int64) bool {
	normalized := strings.TrimSpace(email)
	for id, entry := range directory.accounts {
		if id != exceptID && strings.EqualFold(entry.user.Email, normalized) {
			return true
		}
	}
	return false
}

func containsFold(value string, filter string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(filter))
}
