package material

import (
	"net/url"
	"strconv"
	"time"

	"github.com/trezcool/masomo-admin/core"
)

var validate, translator = core.NewValidator()

// Material is a course resource: a document or a link attached to a course.
type Material struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CourseID    int       `json:"course_id"`
	FileURL     string    `json:"file_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewMaterial contains information needed to create a new Material.
type NewMaterial struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	CourseID    int    `json:"course_id" validate:"required,min=1"`
	FileURL     string `json:"file_url" validate:"omitempty,uri"`
}

func (nm *NewMaterial) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.FileURL = core.CleanString(nm.FileURL)

	return core.TranslateValidationErrors(validate.Struct(nm), translator)
}

// UpdateMaterial defines what information may be provided to modify an existing Material.
// Blank fields keep their current value.
type UpdateMaterial struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	CourseID    int    `json:"course_id" validate:"required,min=1"`
	FileURL     string `json:"file_url" validate:"omitempty,uri"`
}

func (um *UpdateMaterial) Validate(orig Material) error {
	if um.Title = core.CleanString(um.Title); um.Title == "" {
		um.Title = orig.Title
	}
	if um.Description = core.CleanString(um.Description); um.Description == "" {
		um.Description = orig.Description
	}
	if um.CourseID == 0 {
		um.CourseID = orig.CourseID
	}
	if um.FileURL = core.CleanString(um.FileURL); um.FileURL == "" {
		um.FileURL = orig.FileURL
	}

	return core.TranslateValidationErrors(validate.Struct(um), translator)
}

type QueryFilter struct {
	Search   string
	CourseID int
	Page     int
	PageSize int
}

func (qf QueryFilter) Values() url.Values {
	v := make(url.Values)
	if s := core.CleanString(qf.Search); s != "" {
		v.Set("search", s)
	}
	if qf.CourseID > 0 {
		v.Set("course_id", strconv.Itoa(qf.CourseID))
	}
	if qf.Page > 0 {
		v.Set("page", strconv.Itoa(qf.Page))
	}
	if qf.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(qf.PageSize))
	}
	return v
}
