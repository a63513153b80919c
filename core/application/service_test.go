package application

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

func TestNewApplication_Validate(t *testing.T) {
	na := NewApplication{ApplicantName: " Amani Kabila ", Email: "Amani@Mail.CD ", Program: "Sciences"}
	require.NoError(t, na.Validate())
	assert.Equal(t, "Amani Kabila", na.ApplicantName)
	assert.Equal(t, "amani@mail.cd", na.Email)

	err := (&NewApplication{ApplicantName: "Amani", Email: "nope"}).Validate()
	require.True(t, core.IsValidationError(err))
	fields := err.(*core.ValidationError).FieldMap()
	assert.Contains(t, fields, "email")
	assert.Equal(t, "this field is required", fields["program"])
}

func TestService_Query(t *testing.T) {
	var gotQuery string
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"code":0,"data":[{"id":1,"applicant_name":"Amani","status":"pending"}]}`)
	})

	apps, err := svc.Query(context.Background(), QueryFilter{Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.True(t, apps[0].IsPending())
	assert.Equal(t, "status=pending", gotQuery)

	_, err = svc.Query(context.Background(), QueryFilter{Status: "archived"})
	assert.True(t, core.IsValidationError(err))
}

func TestService_review(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]interface{}
	)
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/applications/1", "/api/applications/2":
			_, _ = io.WriteString(w, `{"data":{"id":1,"applicant_name":"Amani","status":"pending"}}`)
		case "/api/applications/3":
			_, _ = io.WriteString(w, `{"data":{"id":3,"applicant_name":"Neema","status":"approved"}}`)
		case "/api/applications/1/approve":
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = io.WriteString(w, `{"data":{"id":1,"applicant_name":"Amani","status":"approved","note":"welcome"}}`)
		case "/api/applications/2/reject":
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = io.WriteString(w, `{"success":true}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	app, err := svc.Approve(ctx, 1, "welcome")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, app.Status)
	assert.Equal(t, "/api/applications/1/approve", gotPath)
	assert.Equal(t, map[string]interface{}{"status": "approved", "note": "welcome"}, gotBody)

	app, err = svc.Reject(ctx, 2, "incomplete file")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, app.Status, "a bare success flag still records the decision")
	assert.Equal(t, "incomplete file", app.Note)

	_, err = svc.Reject(ctx, 2, " ")
	assert.True(t, core.IsValidationError(err))

	_, err = svc.Approve(ctx, 3, "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	_, err = svc.Approve(ctx, 4, "")
	assert.Equal(t, ErrNotFound, err)
}

func TestService_CreateUpdateDelete(t *testing.T) {
	var gotBody map[string]interface{}
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			_, _ = io.WriteString(w, `{"data":{"id":5,"applicant_name":"Amani","status":"pending"}}`)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": gotBody})
		case http.MethodDelete:
			assert.Equal(t, "/api/applications/5", r.URL.Path)
			_, _ = io.WriteString(w, `{"success":true}`)
		default:
			_, _ = io.WriteString(w, `{"data":{"id":5,"applicant_name":"Amani","email":"amani@mail.cd","program":"Sciences"}}`)
		}
	})
	ctx := context.Background()

	app, err := svc.Create(ctx, NewApplication{ApplicantName: "Amani", Email: "amani@mail.cd", Program: "Sciences"})
	require.NoError(t, err)
	assert.Equal(t, 5, app.ID)

	app, err = svc.Update(ctx, 5, UpdateApplication{Program: "Lettres"})
	require.NoError(t, err)
	assert.Equal(t, "Lettres", app.Program)
	assert.Equal(t, "amani@mail.cd", gotBody["email"])

	assert.Equal(t, ErrNoIDs, svc.Delete(ctx))
	assert.NoError(t, svc.Delete(ctx, 5))
}
