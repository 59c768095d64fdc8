package container

import (
	"errors"
	"fmt"

	"github.com/samber/do"
	"github.com/serroba/associates-api/internal/associates"
	"github.com/serroba/associates-api/internal/health"
	"github.com/serroba/associates-api/internal/store"
)

const baseRepository = "repository.base"

var errUnknownBackend = errors.New("unknown store backend")

// RepositoryPackage provides the document repository, the mutator and the
// health handler. The repository is wrapped with a Redis snapshot cache when
// a cache TTL is configured.
func RepositoryPackage(injector *do.Injector) {
	do.ProvideNamed(injector, baseRepository, newBaseRepository)

	do.Provide(injector, func(i *do.Injector) (associates.Repository, error) {
		opts := do.MustInvoke[*Options](i)
		base := do.MustInvokeNamed[associates.Repository](i, baseRepository)

		ttl, err := opts.CacheDuration()
		if err != nil {
			return nil, err
		}

		if ttl <= 0 || opts.Backend == BackendMemory {
			return base, nil
		}

		rds := do.MustInvoke[*Redis](i)

		return store.NewRedisCacheRepository(base, rds.Client, opts.DocumentKey(), ttl), nil
	})

	do.Provide(injector, func(i *do.Injector) (*associates.Mutator, error) {
		return associates.NewMutator(do.MustInvoke[associates.Repository](i)), nil
	})

	do.Provide(injector, newHealthHandler)
}

func newBaseRepository(i *do.Injector) (associates.Repository, error) {
	opts := do.MustInvoke[*Options](i)
	doc := opts.DocumentKey()

	switch opts.Backend {
	case BackendMemory:
		return store.NewMemoryStore(), nil
	case BackendRedis:
		return store.NewRedisStore(do.MustInvoke[*Redis](i).Client, doc), nil
	case BackendPostgres:
		pg := do.MustInvoke[*Postgres](i)
		s := store.NewPostgresStore(pg.Pool, doc)

		ctx, cancel := contextWithConnectTimeout()
		defer cancel()

		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}

		return s, nil
	case BackendSQLite:
		s, err := store.NewSQLiteStore(opts.SQLitePath, doc)
		if err != nil {
			return nil, err
		}

		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, opts.Backend)
	}
}

func newHealthHandler(i *do.Injector) (*health.Handler, error) {
	base := do.MustInvokeNamed[associates.Repository](i, baseRepository)
	repo := do.MustInvoke[associates.Repository](i)

	var storeChecker health.Checker = health.AlwaysHealthy
	if c, ok := base.(health.Checker); ok {
		storeChecker = c
	}

	var cacheChecker health.Checker
	if _, cached := repo.(*store.RedisCacheRepository); cached {
		cacheChecker = health.NewRedisChecker(do.MustInvoke[*Redis](i).Client)
	}

	return health.NewHandler(storeChecker, cacheChecker), nil
}
