package application

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/apiclient"
)

const applicationsPath = "/api/applications"

var (
	// errors
	ErrNotFound        = errors.New("application not found")
	ErrNoIDs           = errors.New("no application ids given")
	ErrAlreadyReviewed = errors.New("application already reviewed")
)

// Service reviews and manages admission applications through the admin API.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Application, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	apps := make([]Application, 0)
	if err := svc.client.Get(ctx, applicationsPath, filter.Values(), &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Application, error) {
	resp, err := svc.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: applicationPath(id)})
	if err != nil {
		if apiclient.StatusOf(err) == http.StatusNotFound {
			return Application{}, ErrNotFound
		}
		return Application{}, err
	}

	var app Application
	if err := resp.Decode(&app); err != nil {
		return Application{}, err
	}
	if app.ID == 0 {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (svc *Service) Create(ctx context.Context, na NewApplication) (Application, error) {
	if err := na.Validate(); err != nil {
		return Application{}, err
	}

	var app Application
	if err := svc.client.Post(ctx, applicationsPath, na, &app); err != nil {
		return Application{}, apiclient.AsValidationError(err)
	}
	return app, nil
}

func (svc *Service) Update(ctx context.Context, id int, ua UpdateApplication) (Application, error) {
	orig, err := svc.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if err := ua.Validate(orig); err != nil {
		return Application{}, err
	}

	app := orig
	if err := svc.client.Put(ctx, applicationPath(id), ua, &app); err != nil {
		return Application{}, apiclient.AsValidationError(err)
	}
	return app, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	switch len(ids) {
	case 0:
		return ErrNoIDs
	case 1:
		return svc.client.Delete(ctx, applicationPath(ids[0]), nil, nil)
	}

	q := make(url.Values)
	for _, id := range ids {
		q.Add("id", strconv.Itoa(id))
	}
	return svc.client.Delete(ctx, applicationsPath, q, nil)
}

// Approve accepts a pending application.
func (svc *Service) Approve(ctx context.Context, id int, note string) (Application, error) {
	return svc.review(ctx, id, "approve", review{Status: StatusApproved, Note: note})
}

// Reject turns down a pending application. A reason is required.
func (svc *Service) Reject(ctx context.Context, id int, reason string) (Application, error) {
	reason = core.CleanString(reason)
	if reason == "" {
		return Application{}, core.NewValidationError(nil, core.FieldError{Field: "note", Error: "this field is required"})
	}
	return svc.review(ctx, id, "reject", review{Status: StatusRejected, Note: reason})
}

func (svc *Service) review(ctx context.Context, id int, action string, rv review) (Application, error) {
	if err := core.TranslateValidationErrors(validate.Struct(rv), translator); err != nil {
		return Application{}, err
	}
	orig, err := svc.Get(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if !orig.IsPending() {
		return Application{}, errors.Wrapf(ErrAlreadyReviewed, "application %d is %s", id, orig.Status)
	}

	app := orig
	if err := svc.client.Post(ctx, applicationPath(id)+"/"+action, rv, &app); err != nil {
		return Application{}, err
	}
	// backends answering a bare success flag leave the status untouched
	if app.IsPending() {
		app.Status = rv.Status
		app.Note = rv.Note
	}
	return app, nil
}

func applicationPath(id int) string {
	return applicationsPath + "/" + strconv.Itoa(id)
}
