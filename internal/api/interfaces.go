package api

import (
	"context"

	"github.com/neexbeast/destinations/internal/destination"
	"github.com/neexbeast/destinations/internal/jobs"
)

// CityRepo defines the city storage operations needed by handlers.
// Get returns nil, nil when the city does not exist.
type CityRepo interface {
	ListCities(ctx context.Context, f destination.CityFilter) ([]destination.City, int, error)
	GetCity(ctx context.Context, id string) (*destination.City, error)
	CreateCity(ctx context.Context, in destination.CityInput) (*destination.City, error)
	UpdateCity(ctx context.Context, id string, patch destination.CityPatch, check func(destination.City) error) (*destination.City, error)
	DeleteCity(ctx context.Context, id string) error
}

// SeasonRepo defines the season storage operations needed by handlers.
type SeasonRepo interface {
	ListSeasons(ctx context.Context, cityID string) ([]destination.Season, error)
	GetSeason(ctx context.Context, id string) (*destination.Season, error)
	CreateSeason(ctx context.Context, in destination.SeasonInput) (*destination.Season, error)
	UpdateSeason(ctx context.Context, id string, patch destination.SeasonPatch, check func(destination.Season) error) (*destination.Season, error)
	DeleteSeason(ctx context.Context, id string) error
}

// Repo is the full storage surface.
type Repo interface {
	CityRepo
	SeasonRepo
}

// CityCache defines the cache operations needed by handlers.
// Set only stores when version still matches, and Delete bumps the version.
type CityCache interface {
	Get(ctx context.Context, id string) (*destination.City, error)
	Version(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, city *destination.City, version int64) (bool, error)
	Delete(ctx context.Context, id string) error
}

// JobTracker is the registry of asynchronous jobs.
type JobTracker interface {
	Create(jobType string, data any) jobs.Job
	Get(id string) (jobs.Job, bool)
	UpdateStatus(id string, status jobs.Status, result any, errMsg string)
}

// JobRunner accepts work for a tracked job.
type JobRunner interface {
	Submit(id string, work jobs.Work) error
}
