package mockdata

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core/apiclient"
	"github.com/trezcool/masomo-admin/core/application"
	"github.com/trezcool/masomo-admin/core/auth"
	"github.com/trezcool/masomo-admin/core/material"
	"github.com/trezcool/masomo-admin/core/transfer"
	"github.com/trezcool/masomo-admin/core/user"
	"github.com/trezcool/masomo-admin/storage/session"
)

// unreachable backend: every answer comes from the mock table or the safe shapes
const deadBackend = "http://127.0.0.1:1"

type testEnv struct {
	client *apiclient.Client
	files  *transfer.Store
	issuer *auth.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		files:  transfer.NewStore(FilesPath),
		issuer: auth.NewIssuer("secret", "Masomo", time.Hour),
	}
	table, err := NewTable(Options{Issuer: env.issuer, Files: env.files})
	require.NoError(t, err)

	env.client = apiclient.NewClient(apiclient.NewClientContext(apiclient.ContextOptions{}), apiclient.Options{
		BaseURL:  deadBackend,
		Timeout:  time.Second,
		Mock:     table,
		MockMode: true,
		Fallback: true,
	})
	return env
}

func TestLoadFixtures(t *testing.T) {
	fx, err := LoadFixtures()
	require.NoError(t, err)

	require.NotEmpty(t, fx.Users)
	admin := fx.Users[0]
	assert.Equal(t, "admin", admin.Username)
	assert.NotEmpty(t, admin.Password)
	assert.True(t, admin.IsAdmin())
	assert.False(t, admin.CreatedAt.IsZero())

	matches := make([]string, 0, len(fx.Resources))
	for _, res := range fx.Resources {
		matches = append(matches, res.Match)
		assert.NotEmpty(t, res.Items, res.Match)
	}
	assert.Equal(t, []string{"material", "application", "student", "user"}, matches)
}

func TestParseFixtures_invalid(t *testing.T) {
	_, err := ParseFixtures([]byte("users: [unclosed"))
	assert.Error(t, err)
}

func TestTable_login(t *testing.T) {
	env := newTestEnv(t)
	state, err := auth.LoadState(session.NewMemoryStore())
	require.NoError(t, err)
	svc := auth.NewService(env.client, state, nil)
	ctx := context.Background()

	_, err = svc.Login(ctx, "admin", "wrong")
	require.True(t, auth.IsLoginError(err), "Login() error = %v", err)
	assert.Equal(t, &auth.LoginError{Field: "password", Message: invalidCredentialsMsg}, err)

	_, err = svc.Login(ctx, "pilunga", "Former%2020")
	assert.Equal(t, &auth.LoginError{Field: "username", Message: inactiveAccountMsg}, err)

	sess, err := svc.Login(ctx, "Admin@Masomo.cd", "Masomo@2021")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdminOwner, sess.CurrentRole)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.TokenExpiry, 5*time.Second)

	claims, err := env.issuer.Verify(sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	refreshed, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, "admin", refreshed.CurrentUser.Username)

	require.NoError(t, svc.Logout(ctx))
	assert.False(t, svc.IsAuthenticated())
}

func TestTable_resources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	users, err := user.NewService(env.client).Query(ctx, user.QueryFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 5)

	students, err := user.NewService(env.client).Students(ctx, user.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.True(t, students[0].IsStudent())

	materials := material.NewService(env.client)
	mat, err := materials.Get(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Exercises", mat.Title)

	_, err = materials.Get(ctx, 99)
	assert.Equal(t, material.ErrNotFound, err)

	created, err := materials.Create(ctx, material.NewMaterial{Title: "Quiz", CourseID: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, created.ID)
	assert.Equal(t, "Quiz", created.Title)

	app, err := application.NewService(env.client).Approve(ctx, 1, "welcome")
	require.NoError(t, err)
	assert.Equal(t, application.StatusApproved, app.Status)
	assert.Equal(t, "Neema Kasongo", app.ApplicantName)
}

func TestTable_staticRoutes(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/api/courses/3"})
	require.NoError(t, err)
	assert.Equal(t, apiclient.SourceMock, resp.Source)

	var course struct {
		ID   int    `json:"id"`
		Code string `json:"code"`
	}
	require.NoError(t, resp.Decode(&course))
	assert.Equal(t, "MATH101", course.Code)

	// no fixture: the dispatcher answers a safe shape
	resp, err = env.client.Do(context.Background(), &apiclient.Request{Method: http.MethodGet, Path: "/api/grades"})
	require.NoError(t, err)
	assert.Equal(t, apiclient.SourceFallback, resp.Source)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestTable_upload(t *testing.T) {
	env := newTestEnv(t)
	mgr := transfer.NewManager(env.client, transfer.Options{ChunkSize: 4, Concurrency: 2})
	data := []byte("hello mock world")

	var last int
	res, err := mgr.Upload(context.Background(), "notes.txt", data, func(p int) { last = p })
	require.NoError(t, err)
	assert.Equal(t, 100, last)
	assert.Equal(t, FilesPath+"/"+transfer.Hash(data)+".txt", res.FileURL)

	info, stored, ok := env.files.File(transfer.Hash(data))
	require.True(t, ok)
	assert.Equal(t, "notes.txt", info.Name)
	assert.Equal(t, data, stored)

	check := env.files.CheckStatus(transfer.Hash(data))
	assert.True(t, check.Uploaded)
}

func TestTable_uploadInvalidFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		fields  url.Values
		wantErr string
	}{
		{
			name:    "chunk index",
			path:    transfer.UploadPath + "/chunk",
			fields:  url.Values{"fileHash": {"h"}, "chunkIndex": {"first"}, "chunkCount": {"2"}},
			wantErr: "invalid chunkIndex",
		},
		{
			name:    "chunk count",
			path:    transfer.UploadPath + "/chunk",
			fields:  url.Values{"fileHash": {"h"}, "chunkIndex": {"0"}, "chunkCount": {""}},
			wantErr: "invalid chunkCount",
		},
		{
			name:    "file size",
			path:    transfer.UploadPath + "/chunk",
			fields:  url.Values{"fileHash": {"h"}, "chunkIndex": {"0"}, "chunkCount": {"2"}, "fileSize": {"big"}},
			wantErr: "invalid fileSize",
		},
		{
			name:    "merge chunk count",
			path:    transfer.UploadPath + "/merge",
			fields:  url.Values{"fileHash": {"h"}, "chunkCount": {"two"}},
			wantErr: "invalid chunkCount",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.Do(ctx, &apiclient.Request{
				Method: http.MethodPost,
				Path:   tt.path,
				Form:   &apiclient.Form{Fields: tt.fields, FileField: "file", FileName: "blob", File: []byte("data")},
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			_, ok := env.files.Session("h")
			assert.False(t, ok, "no chunk recorded")
		})
	}
}

func TestLastID(t *testing.T) {
	tests := []struct {
		path   string
		want   int
		wantOK bool
	}{
		{"/api/materials", 0, false},
		{"/api/materials/12", 12, true},
		{"/api/applications/3/approve", 3, true},
		{"/api/users/4?expand=roles", 4, true},
		{"/api/users/-1", 0, false},
	}
	for _, tt := range tests {
		got, ok := lastID(tt.path)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("lastID(%q) = %d, %v; want %d, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}
