package user

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/masomo-admin/core"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:     30,
		RoleAdminPrincipal: 29,
		RoleAdmin:          21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Principal", Value: RoleAdminPrincipal},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// IsRole reports whether role is a known role value.
func IsRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

// RoleName returns the display name of a role value.
func RoleName(role string) string {
	for _, r := range Roles {
		if r.Value == role {
			return r.Name
		}
	}
	return role
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
	LastLogin time.Time `json:"last_login"` // UTC
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsTeacher() bool {
	return u.RoleStartsWith(RoleTeacher)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

// HighestRole returns the role of the user with the highest priority, "" for users without roles.
func (u *User) HighestRole() string {
	var (
		best     string
		priority int
	)
	for _, role := range u.Roles {
		if p := RolePriority(role); p > priority {
			best, priority = role, p
		}
	}
	return best
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

// Validate cleans nu and checks it against the user validation rules.
func (nu *NewUser) Validate() error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	return core.TranslateValidationErrors(validate.Struct(nu), translator)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name,omitempty"`
	Username        string   `json:"username,omitempty" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email,omitempty" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active,omitempty"`
	Roles           []string `json:"roles,omitempty" validate:"omitempty,allroles"`
	Password        string   `json:"password,omitempty" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm,omitempty" validate:"required_with=Password,eqfield=Password"`
}

// Validate fills the blank fields of uu from origUsr, then checks it against the user validation rules.
func (uu *UpdateUser) Validate(origUsr User) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	return core.TranslateValidationErrors(validate.Struct(uu), translator)
}

type QueryFilter struct {
	Search      string
	Roles       []string
	IsActive    *bool
	CreatedFrom time.Time
	CreatedTo   time.Time
	Ordering    string
	Page        int
	PageSize    int
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Values encodes the filter as query parameters.
func (qf QueryFilter) Values() url.Values {
	qf.Clean()
	v := make(url.Values)
	if qf.Search != "" {
		v.Set("search", qf.Search)
	}
	for _, r := range qf.Roles {
		v.Add("role", r)
	}
	if qf.IsActive != nil {
		v.Set("is_active", strconv.FormatBool(*qf.IsActive))
	}
	if !qf.CreatedFrom.IsZero() {
		v.Set("created_from", qf.CreatedFrom.UTC().Format(time.RFC3339))
	}
	if !qf.CreatedTo.IsZero() {
		v.Set("created_to", qf.CreatedTo.UTC().Format(time.RFC3339))
	}
	if qf.Ordering != "" {
		v.Set("ordering", qf.Ordering)
	}
	if qf.Page > 0 {
		v.Set("page", strconv.Itoa(qf.Page))
	}
	if qf.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(qf.PageSize))
	}
	return v
}
