// Package directory is the read-only table of users who may sign in, with
// the role each one acts under. It is loaded once at startup and never
// mutated.
package directory

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gartstein/certify/internal/certification/models"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// User is one directory entry. PasswordHash is a bcrypt hash.
type User struct {
	Username     string      `yaml:"USERNAME"`
	Name         string      `yaml:"NAME"`
	Email        string      `yaml:"EMAIL"`
	Role         models.Role `yaml:"ROLE"`
	PasswordHash string      `yaml:"PASSWORD_HASH"`
}

// Actor returns the workflow identity of u.
func (u User) Actor() models.Actor {
	return models.Actor{Identity: u.Username, Name: u.Name, Role: u.Role}
}

type Directory struct {
	users  map[string]User
	byRole map[models.Role][]User
}

// New builds a directory from users. Usernames must be unique and roles known.
func New(users []User) (*Directory, error) {
	d := &Directory{
		users:  make(map[string]User, len(users)),
		byRole: make(map[models.Role][]User),
	}
	for _, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("directory: user without username")
		}
		if !u.Role.Valid() {
			return nil, fmt.Errorf("directory: user %q has unknown role %q", u.Username, u.Role)
		}
		if _, dup := d.users[u.Username]; dup {
			return nil, fmt.Errorf("directory: duplicate username %q", u.Username)
		}
		d.users[u.Username] = u
		d.byRole[u.Role] = append(d.byRole[u.Role], u)
	}
	for _, list := range d.byRole {
		sort.Slice(list, func(i, j int) bool { return list[i].Username < list[j].Username })
	}
	return d, nil
}

// Authenticate returns the user whose password matches.
func (d *Directory) Authenticate(username, password string) (User, error) {
	u, ok := d.users[username]
	if !ok || u.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (d *Directory) Lookup(username string) (User, bool) {
	u, ok := d.users[username]
	return u, ok
}

// ByRole returns every user holding role, ordered by username.
func (d *Directory) ByRole(role models.Role) []User {
	return append([]User(nil), d.byRole[role]...)
}

// HashPassword hashes password for storage in the directory configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}
