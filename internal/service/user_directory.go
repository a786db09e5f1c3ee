package service

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/iliyamo/munreg/internal/model"
)

// Role filters of the user listing.
const (
	RoleFilterAll     = "all"
	RoleFilterUser    = "user"
	RoleFilterFaculty = "faculty"
	RoleFilterAdmin   = "admin"
)

// Sort orders of the user listing.
const (
	SortNewest              = "newest"
	SortOldest              = "oldest"
	SortAlphabetical        = "alphabetical"
	SortReverseAlphabetical = "reverse-alphabetical"
)

// UserQuery narrows the admin user listing. Zero values mean no filter and
// newest first.
type UserQuery struct {
	Search      string `query:"search"`
	Role        string `query:"role" validate:"omitempty,oneof=all user faculty admin"`
	Institution string `query:"institution"`
	Sort        string `query:"sort" validate:"omitempty,oneof=newest oldest alphabetical reverse-alphabetical"`
}

// UserStats counts profiles by kind. Regular users are neither faculty
// nor admin.
type UserStats struct {
	Total   int `json:"total"`
	Faculty int `json:"faculty"`
	Admins  int `json:"admins"`
	Regular int `json:"regular"`
}

// UserDirectory is the admin view over user profiles.
type UserDirectory struct {
	profiles ProfileStore
	accounts AccountStore
}

// NewUserDirectory returns a directory. accounts may be nil, in which case
// deletes only remove the profile.
func NewUserDirectory(profiles ProfileStore, accounts AccountStore) *UserDirectory {
	return &UserDirectory{profiles: profiles, accounts: accounts}
}

// List filters by role, then institution, then search, and sorts the result.
func (d *UserDirectory) List(ctx context.Context, q UserQuery) ([]model.Profile, error) {
	ps, err := d.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	return SortUsers(FilterUsers(ps, q), q.Sort), nil
}

// FilterUsers applies the role, institution and search filters of q.
func FilterUsers(ps []model.Profile, q UserQuery) []model.Profile {
	inst := strings.ToLower(q.Institution)
	term := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]model.Profile, 0, len(ps))
	for _, p := range ps {
		switch q.Role {
		case RoleFilterFaculty:
			if !p.IsFaculty {
				continue
			}
		case RoleFilterAdmin:
			if !p.IsAdmin {
				continue
			}
		case RoleFilterUser:
			if p.IsAdmin || p.IsFaculty {
				continue
			}
		}
		if inst != "" && inst != RoleFilterAll && strings.ToLower(p.Institution) != inst {
			continue
		}
		if term != "" && !matchesUser(p, term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesUser(p model.Profile, term string) bool {
	for _, f := range []string{p.FirstName, p.LastName, p.Email, p.Institution} {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// SortUsers orders a copy of ps. Unknown orders keep the input order.
func SortUsers(ps []model.Profile, order string) []model.Profile {
	out := append([]model.Profile(nil), ps...)
	name := func(p model.Profile) string { return strings.ToLower(p.FirstName + " " + p.LastName) }
	switch order {
	case SortNewest, "":
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortAlphabetical:
		sort.SliceStable(out, func(i, j int) bool { return name(out[i]) < name(out[j]) })
	case SortReverseAlphabetical:
		sort.SliceStable(out, func(i, j int) bool { return name(out[i]) > name(out[j]) })
	}
	return out
}

// Stats counts every profile.
func (d *UserDirectory) Stats(ctx context.Context) (UserStats, error) {
	ps, err := d.profiles.List(ctx)
	if err != nil {
		return UserStats{}, err
	}
	return CountUsers(ps), nil
}

func CountUsers(ps []model.Profile) UserStats {
	s := UserStats{Total: len(ps)}
	for _, p := range ps {
		if p.IsFaculty {
			s.Faculty++
		}
		if p.IsAdmin {
			s.Admins++
		}
		if !p.IsFaculty && !p.IsAdmin {
			s.Regular++
		}
	}
	return s
}

// Institutions lists the distinct non-empty institutions, sorted.
func (d *UserDirectory) Institutions(ctx context.Context) ([]string, error) {
	ps, err := d.profiles.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range ps {
		if p.Institution == "" {
			continue
		}
		if _, ok := seen[p.Institution]; ok {
			continue
		}
		seen[p.Institution] = struct{}{}
		out = append(out, p.Institution)
	}
	sort.Strings(out)
	return out, nil
}

func (d *UserDirectory) Get(ctx context.Context, id string) (model.Profile, error) {
	return d.profiles.Get(ctx, id)
}

// SetAdmin grants or revokes the admin role. It applies from the next login.
func (d *UserDirectory) SetAdmin(ctx context.Context, id string, admin bool) error {
	return d.profiles.SetAdmin(ctx, id, admin)
}

// Delete removes the profile and, when id is an account id, the account.
func (d *UserDirectory) Delete(ctx context.Context, id string) error {
	if err := d.profiles.Delete(ctx, id); err != nil {
		return err
	}
	if d.accounts == nil {
		return nil
	}
	uid, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil
	}
	if err := d.accounts.Delete(ctx, uid); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "delete account")
	}
	return nil
}
