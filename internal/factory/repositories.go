package factory

import (
	"fmt"

	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/domain/entity"
)

// CreateRepositories indexes the local clones by project name.
func CreateRepositories(conf config.Scheduler) (map[string]entity.Repository, error) {
	repositories, err := conf.RepositoryMap()
	if err != nil {
		return nil, fmt.Errorf("invalid repositories: %w", err)
	}

	ret := make(map[string]entity.Repository, len(repositories))

	for name, repository := range repositories {
		ret[name] = entity.Repository{
			Name:   repository.Name,
			Path:   repository.Path,
			Origin: repository.Origin,
			Refs:   repository.Refs,
		}
	}

	return ret, nil
}
