package user

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/apiclient"
)

const (
	usersPath    = "/api/users"
	studentsPath = "/api/students"
)

var (
	// errors
	ErrNotFound = errors.New("user not found")
	ErrNoIDs    = errors.New("no user ids given")
)

// Service manages users through the admin API.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

// Query lists the users matching filter.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.list(ctx, usersPath, filter)
}

// Students lists the student accounts matching filter.
func (svc *Service) Students(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.list(ctx, studentsPath, filter)
}

func (svc *Service) list(ctx context.Context, path string, filter QueryFilter) ([]User, error) {
	users := make([]User, 0)
	if err := svc.client.Get(ctx, path, filter.Values(), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (svc *Service) Get(ctx context.Context, id int) (User, error) {
	resp, err := svc.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: userPath(id)})
	if err != nil {
		if apiclient.StatusOf(err) == http.StatusNotFound {
			return User{}, ErrNotFound
		}
		return User{}, err
	}

	var usr User
	if err := resp.Decode(&usr); err != nil {
		return User{}, err
	}
	if usr.ID == 0 {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(); err != nil {
		return User{}, err
	}

	var usr User
	if err := svc.client.Post(ctx, usersPath, nu, &usr); err != nil {
		return User{}, apiclient.AsValidationError(err)
	}
	return usr, nil
}

// Update fetches the user, applies uu on top of it and saves the result.
func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	orig, err := svc.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := uu.Validate(orig); err != nil {
		return User{}, err
	}

	usr := orig
	if err := svc.client.Put(ctx, userPath(id), uu, &usr); err != nil {
		return User{}, apiclient.AsValidationError(err)
	}
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return ErrNoIDs
	}
	if len(ids) == 1 {
		return svc.client.Delete(ctx, userPath(ids[0]), nil, nil)
	}

	q := make(url.Values)
	for _, id := range ids {
		q.Add("id", strconv.Itoa(id))
	}
	return svc.client.Delete(ctx, usersPath, q, nil)
}

func userPath(id int) string {
	return usersPath + "/" + strconv.Itoa(id)
}
