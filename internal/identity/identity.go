// Package identity talks to the external identity service that owns user
// accounts and their group membership for this application.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
)

// DependencyName identifies the identity service in errors, logs and metrics.
const DependencyName = "identity_service"

// ErrUserNotFound is returned when the identity service does not know the user.
var ErrUserNotFound = errors.New("identity user not found")

// Level is a group's rank. The service sends it as a number or a numeric
// string; anything else ranks as zero.
type Level int

func (l *Level) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if json.Unmarshal(b, &s) == nil {
			n = json.Number(s)
		}
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		*l = 0
		return nil
	}
	*l = Level(v)
	return nil
}

type Group struct {
	Name  string `json:"name"`
	Level Level  `json:"level"`
}

// User is the identity service's view of an account.
type User struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Username  string  `json:"username"`
	Groups    []Group `json:"groups"`
}

// HighestGroup returns the name of the user's highest-level group, or "" when
// the user has none.
func (u *User) HighestGroup() string {
	if u == nil || len(u.Groups) == 0 {
		return ""
	}
	groups := slices.Clone(u.Groups)
	slices.SortStableFunc(groups, func(a, b Group) int { return int(a.Level) - int(b.Level) })
	return groups[len(groups)-1].Name
}

// GroupUpdate assigns the user to one group of one application.
type GroupUpdate struct {
	AppName   string `json:"app_name"`
	GroupName string `json:"group_name"`
}

// Service is the identity service as the staff component sees it.
type Service interface {
	GetUserByIdentity(ctx context.Context, guid string) (*User, error)
	UpdateUserGroup(ctx context.Context, guid string, update GroupUpdate) error
}
