package application

import (
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-admin/core"
)

// Application statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var (
	statusTag  = "appstatus"
	statusText = "{0} must be one of pending, approved or rejected"

	validate, translator = core.NewValidator()
)

func init() {
	_ = validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		return IsStatus(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func IsStatus(status string) bool {
	switch status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Application is an admission request sent by a prospective student.
type Application struct {
	ID            int        `json:"id"`
	ApplicantName string     `json:"applicant_name"`
	Email         string     `json:"email"`
	Program       string     `json:"program"`
	Status        string     `json:"status"`
	Note          string     `json:"note,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
}

func (a *Application) IsPending() bool {
	return a.Status == "" || a.Status == StatusPending
}

type NewApplication struct {
	ApplicantName string `json:"applicant_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Program       string `json:"program" validate:"required"`
}

func (na *NewApplication) Validate() error {
	na.ApplicantName = core.CleanString(na.ApplicantName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Program = core.CleanString(na.Program)

	return core.TranslateValidationErrors(validate.Struct(na), translator)
}

// UpdateApplication holds the editable fields of an application. Blank fields keep their current value.
type UpdateApplication struct {
	ApplicantName string `json:"applicant_name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Program       string `json:"program" validate:"required"`
}

func (ua *UpdateApplication) Validate(orig Application) error {
	if ua.ApplicantName = core.CleanString(ua.ApplicantName); ua.ApplicantName == "" {
		ua.ApplicantName = orig.ApplicantName
	}
	if ua.Email = core.CleanString(ua.Email, true /* lower */); ua.Email == "" {
		ua.Email = orig.Email
	}
	if ua.Program = core.CleanString(ua.Program); ua.Program == "" {
		ua.Program = orig.Program
	}

	return core.TranslateValidationErrors(validate.Struct(ua), translator)
}

// review is the body of the approve and reject endpoints.
type review struct {
	Status string `json:"status" validate:"appstatus"`
	Note   string `json:"note,omitempty"`
}

type QueryFilter struct {
	Search   string
	Status   string
	Program  string
	Page     int
	PageSize int
}

func (qf QueryFilter) Validate() error {
	if qf.Status != "" && !IsStatus(qf.Status) {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "status must be one of pending, approved or rejected"})
	}
	return nil
}

func (qf QueryFilter) Values() url.Values {
	v := make(url.Values)
	if s := core.CleanString(qf.Search); s != "" {
		v.Set("search", s)
	}
	if qf.Status != "" {
		v.Set("status", qf.Status)
	}
	if p := core.CleanString(qf.Program); p != "" {
		v.Set("program", p)
	}
	if qf.Page > 0 {
		v.Set("page", strconv.Itoa(qf.Page))
	}
	if qf.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(qf.PageSize))
	}
	return v
}
