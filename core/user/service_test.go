package user

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
)

func setup(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cctx := apiclient.NewClientContext(apiclient.ContextOptions{})
	return NewService(apiclient.NewClient(cctx, apiclient.Options{BaseURL: srv.URL, Timeout: time.Second}))
}

func TestService_Query(t *testing.T) {
	var gotPath, gotQuery string
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = io.WriteString(w, `{"success":true,"data":[{"id":1,"name":"Jane","roles":["teacher:"]}]}`)
	})

	users, err := svc.Query(context.Background(), QueryFilter{Roles: []string{RoleTeacher}})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Jane", users[0].Name)
	assert.True(t, users[0].IsTeacher())
	assert.Equal(t, usersPath, gotPath)
	assert.Equal(t, "role=teacher%3A", gotQuery)

	_, err = svc.Students(context.Background(), QueryFilter{})
	require.NoError(t, err)
	assert.Equal(t, studentsPath, gotPath)
}

func TestService_Get(t *testing.T) {
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/3":
			_, _ = io.WriteString(w, `{"data":{"id":3,"username":"jane_doe"}}`)
		case "/api/users/5":
			_, _ = io.WriteString(w, `{}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	usr, err := svc.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "jane_doe", usr.Username)

	_, err = svc.Get(context.Background(), 4)
	assert.Equal(t, ErrNotFound, err)
	_, err = svc.Get(context.Background(), 5)
	assert.Equal(t, ErrNotFound, err)
}

func TestService_Create(t *testing.T) {
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		var nu NewUser
		require.NoError(t, json.NewDecoder(r.Body).Decode(&nu))
		if nu.Username == "taken_name" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"success":false,"title":"One or more validation errors occurred.","errors":{"username":["a user with this username already exists"]}}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": User{ID: 10, Name: nu.Name, Username: nu.Username, Roles: nu.Roles}})
	})

	nu := NewUser{Name: "Jane", Username: "jane_doe", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x"}
	usr, err := svc.Create(context.Background(), nu)
	require.NoError(t, err)
	assert.Equal(t, 10, usr.ID)

	nu.Username = "taken_name"
	_, err = svc.Create(context.Background(), nu)
	require.True(t, core.IsValidationError(err), "Create() error = %v", err)
	assert.Equal(t, "a user with this username already exists", err.(*core.ValidationError).FieldMap()["username"])

	// rejected client-side, never sent
	_, err = svc.Create(context.Background(), NewUser{Name: "Jane"})
	assert.True(t, core.IsValidationError(err))
}

func TestService_Update(t *testing.T) {
	var gotBody map[string]interface{}
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = io.WriteString(w, `{"code":0,"data":{"id":3,"name":"Janet","username":"jane_doe"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"id":3,"name":"Jane","username":"jane_doe","email":"jane@masomo.cd"}}`)
	})

	usr, err := svc.Update(context.Background(), 3, UpdateUser{Name: "Janet"})
	require.NoError(t, err)
	assert.Equal(t, "Janet", usr.Name)
	assert.Equal(t, "jane@masomo.cd", gotBody["email"], "blank fields are filled from the current user")
}

func TestService_Delete(t *testing.T) {
	var gotPath, gotQuery string
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	assert.Equal(t, ErrNoIDs, svc.Delete(context.Background()))

	require.NoError(t, svc.Delete(context.Background(), 4))
	assert.Equal(t, "/api/users/4", gotPath)

	require.NoError(t, svc.Delete(context.Background(), 4, 5))
	assert.Equal(t, usersPath, gotPath)
	assert.Equal(t, "id=4&id=5", gotQuery)
}
