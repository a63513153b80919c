package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-admin/core"
)

func TestNewUser_Validate(t *testing.T) {
	valid := func() NewUser {
		return NewUser{
			Name:            "Jane Doe",
			Username:        "jane_doe",
			Email:           "jane@masomo.cd",
			Password:        "Tr0ub4dor&3x",
			PasswordConfirm: "Tr0ub4dor&3x",
			Roles:           []string{RoleTeacher},
		}
	}

	tests := []struct {
		name      string
		modify    func(nu *NewUser)
		wantField string
		wantMsg   string
	}{
		{name: "valid", modify: func(nu *NewUser) {}},
		{name: "email only", modify: func(nu *NewUser) { nu.Username = "" }},
		{name: "missing name", modify: func(nu *NewUser) { nu.Name = "  " }, wantField: "name", wantMsg: "this field is required"},
		{name: "no username nor email", modify: func(nu *NewUser) { nu.Username, nu.Email = "", "" }, wantField: "email", wantMsg: usernameOrEmailText},
		{name: "short username", modify: func(nu *NewUser) { nu.Username = "jd" }, wantField: "username"},
		{name: "username chars", modify: func(nu *NewUser) { nu.Username = "jane-doe" }, wantField: "username", wantMsg: "only alphanumeric characters and underscores are allowed"},
		{name: "bad email", modify: func(nu *NewUser) { nu.Email = "jane" }, wantField: "email"},
		{name: "unknown role", modify: func(nu *NewUser) { nu.Roles = []string{RoleStudent, "janitor:"} }, wantField: "roles", wantMsg: allRolesText},
		{name: "confirm mismatch", modify: func(nu *NewUser) { nu.PasswordConfirm = "nope" }, wantField: "password_confirm"},
		{name: "too short", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1!", "Ab1!" }, wantField: "password", wantMsg: pwdMinLenText},
		{name: "whitespace", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Ab1! Ab1!x", "Ab1! Ab1!x" }, wantField: "password", wantMsg: pwdNoSpaceText},
		{name: "all numeric", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "1234567890", "1234567890" }, wantField: "password", wantMsg: pwdNotAllNumText},
		{name: "not complex", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "abcdefgh1", "abcdefgh1" }, wantField: "password", wantMsg: pwdComplexityText},
		{name: "similar to username", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "Jane_Doe1", "Jane_Doe1" }, wantField: "password", wantMsg: pwdAttrSimText},
		{name: "common", modify: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "P@ssw0rd1", "P@ssw0rd1" }, wantField: "password", wantMsg: pwdNoCommonText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.modify(&nu)
			err := nu.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !core.IsValidationError(err) {
				t.Fatalf("Validate() error = %v, want a validation error", err)
			}
			flds := err.(*core.ValidationError).FieldMap()
			assert.Contains(t, flds, tt.wantField)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, flds[tt.wantField])
			}
		})
	}
}

func TestNewUser_Validate_cleans(t *testing.T) {
	nu := NewUser{
		Name:            "  Jane  ",
		Username:        " Jane_Doe ",
		Email:           " JANE@Masomo.cd",
		Password:        "Tr0ub4dor&3x",
		PasswordConfirm: "Tr0ub4dor&3x",
	}
	assert.NoError(t, nu.Validate())
	assert.Equal(t, "Jane", nu.Name)
	assert.Equal(t, "jane_doe", nu.Username)
	assert.Equal(t, "jane@masomo.cd", nu.Email)
}

func TestUpdateUser_Validate(t *testing.T) {
	orig := User{ID: 3, Name: "Jane", Username: "jane_doe", Email: "jane@masomo.cd"}

	uu := UpdateUser{Roles: []string{RoleAdminPrincipal}}
	assert.NoError(t, uu.Validate(orig))
	assert.Equal(t, orig.Name, uu.Name)
	assert.Equal(t, orig.Username, uu.Username)

	uu = UpdateUser{Password: "Tr0ub4dor&3x"}
	err := uu.Validate(orig)
	assert.True(t, core.IsValidationError(err))
	assert.Contains(t, err.(*core.ValidationError).FieldMap(), "password_confirm")
}

func TestUser_roles(t *testing.T) {
	usr := User{Roles: []string{RoleStudent, RoleAdminPrincipal, RoleTeacher}}
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsTeacher())
	assert.True(t, usr.IsStudent())
	assert.True(t, usr.HasRole(RoleTeacher))
	assert.False(t, usr.HasRole(RoleAdmin))
	assert.Equal(t, RoleAdminPrincipal, usr.HighestRole())
	assert.Equal(t, 29, MaxRolePriority(usr.Roles))
	assert.Equal(t, "Admin Principal", RoleName(RoleAdminPrincipal))
	assert.Equal(t, "", (&User{}).HighestRole())
}

func TestQueryFilter_Values(t *testing.T) {
	active := true
	from := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	qf := QueryFilter{Search: " jane ", Roles: []string{RoleAdmin, RoleTeacher}, IsActive: &active, CreatedFrom: from, Page: 2}

	v := qf.Values()
	assert.Equal(t, "jane", v.Get("search"))
	assert.Equal(t, []string{RoleAdmin, RoleTeacher}, v["role"])
	assert.Equal(t, "true", v.Get("is_active"))
	assert.Equal(t, "2020-01-02T03:04:05Z", v.Get("created_from"))
	assert.Equal(t, "2", v.Get("page"))
	assert.Empty(t, v.Get("created_to"))
	assert.False(t, qf.IsEmpty())
	assert.True(t, (&QueryFilter{}).IsEmpty())
}
