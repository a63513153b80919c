package material

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core/apiclient"
)

const materialsPath = "/api/materials"

var (
	// errors
	ErrNotFound = errors.New("material not found")
	ErrNoIDs    = errors.New("no material ids given")
)

// Service manages course materials through the admin API.
type Service struct {
	client *apiclient.Client
}

func NewService(client *apiclient.Client) *Service {
	return &Service{client: client}
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Material, error) {
	materials := make([]Material, 0)
	if err := svc.client.Get(ctx, materialsPath, filter.Values(), &materials); err != nil {
		return nil, err
	}
	return materials, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Material, error) {
	resp, err := svc.client.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: materialPath(id)})
	if err != nil {
		if apiclient.StatusOf(err) == http.StatusNotFound {
			return Material{}, ErrNotFound
		}
		return Material{}, err
	}

	var mat Material
	if err := resp.Decode(&mat); err != nil {
		return Material{}, err
	}
	if mat.ID == 0 {
		return Material{}, ErrNotFound
	}
	return mat, nil
}

func (svc *Service) Create(ctx context.Context, nm NewMaterial) (Material, error) {
	if err := nm.Validate(); err != nil {
		return Material{}, err
	}

	var mat Material
	if err := svc.client.Post(ctx, materialsPath, nm, &mat); err != nil {
		return Material{}, apiclient.AsValidationError(err)
	}
	return mat, nil
}

func (svc *Service) Update(ctx context.Context, id int, um UpdateMaterial) (Material, error) {
	orig, err := svc.Get(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if err := um.Validate(orig); err != nil {
		return Material{}, err
	}

	mat := orig
	if err := svc.client.Put(ctx, materialPath(id), um, &mat); err != nil {
		return Material{}, apiclient.AsValidationError(err)
	}
	return mat, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	switch len(ids) {
	case 0:
		return ErrNoIDs
	case 1:
		return svc.client.Delete(ctx, materialPath(ids[0]), nil, nil)
	}

	q := make(url.Values)
	for _, id := range ids {
		q.Add("id", strconv.Itoa(id))
	}
	return svc.client.Delete(ctx, materialsPath, q, nil)
}

func materialPath(id int) string {
	return materialsPath + "/" + strconv.Itoa(id)
}
