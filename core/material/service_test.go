package material

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

func TestNewMaterial_Validate(t *testing.T) {
	tests := []struct {
		name       string
		nm         NewMaterial
		wantFields map[string]string
	}{
		{name: "valid", nm: NewMaterial{Title: "  Algebra  ", CourseID: 1, FileURL: "/api/files/abc.pdf"}},
		{
			name:       "missing",
			nm:         NewMaterial{Title: "   "},
			wantFields: map[string]string{"title": "this field is required", "course_id": "this field is required"},
		},
		{
			name:       "bad url",
			nm:         NewMaterial{Title: "Algebra", CourseID: 1, FileURL: "not a url"},
			wantFields: map[string]string{"file_url": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nm.Validate()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.True(t, core.IsValidationError(err), "Validate() error = %v", err)
			got := err.(*core.ValidationError).FieldMap()
			assert.Len(t, got, len(tt.wantFields))
			for fld, msg := range tt.wantFields {
				require.Contains(t, got, fld)
				if msg != "" {
					assert.Equal(t, msg, got[fld])
				}
			}
		})
	}

	nm := NewMaterial{Title: "  Algebra  ", CourseID: 1}
	require.NoError(t, nm.Validate())
	assert.Equal(t, "Algebra", nm.Title)
}

func TestService_Query(t *testing.T) {
	var gotQuery string
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, materialsPath, r.URL.Path)
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"data":[{"id":1,"title":"Syllabus","course_id":2}]}`)
	})

	mats, err := svc.Query(context.Background(), QueryFilter{CourseID: 2, Search: " syl "})
	require.NoError(t, err)
	require.Len(t, mats, 1)
	assert.Equal(t, "Syllabus", mats[0].Title)
	assert.Equal(t, "course_id=2&search=syl", gotQuery)
}

func TestService_GetUpdate(t *testing.T) {
	var gotBody map[string]interface{}
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path != "/api/materials/2":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": gotBody})
		default:
			_, _ = io.WriteString(w, `{"data":{"id":2,"title":"Syllabus","description":"Term 1","course_id":3}}`)
		}
	})

	mat, err := svc.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, mat.CourseID)

	_, err = svc.Get(context.Background(), 9)
	assert.Equal(t, ErrNotFound, err)

	mat, err = svc.Update(context.Background(), 2, UpdateMaterial{Description: "Term 2"})
	require.NoError(t, err)
	assert.Equal(t, "Term 2", mat.Description)
	assert.Equal(t, "Syllabus", gotBody["title"])
	assert.EqualValues(t, 3, gotBody["course_id"])
}

func TestService_CreateDelete(t *testing.T) {
	var gotPath, gotQuery string
	svc := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		if r.Method == http.MethodPost {
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":12,"title":"Syllabus","course_id":3}}`)
			return
		}
		_, _ = io.WriteString(w, `{"success":true}`)
	})

	mat, err := svc.Create(context.Background(), NewMaterial{Title: "Syllabus", CourseID: 3})
	require.NoError(t, err)
	assert.Equal(t, 12, mat.ID)

	assert.Equal(t, ErrNoIDs, svc.Delete(context.Background()))
	require.NoError(t, svc.Delete(context.Background(), 12, 13))
	assert.Equal(t, materialsPath, gotPath)
	assert.Equal(t, "id=12&id=13", gotQuery)
}
