package db

import (
	"github.com/pkg/errors"

	"github.com/simplechat/convmeta/internal/profile"
	"github.com/simplechat/convmeta/store"
	"github.com/simplechat/convmeta/store/db/postgres"
	"github.com/simplechat/convmeta/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// PostgreSQL is the reference driver for multi-instance deployments;
// SQLite covers single-instance and development use. Both implement the
// full conversation store including the optimistic-concurrency metadata
// update.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
