//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *sql.DB
	schemas   atomic.Int64
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("typeproof"),
		tcpostgres.WithUsername("typeproof"),
		tcpostgres.WithPassword("typeproof"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sql.Open("postgres", dsn)
	s.Require().NoError(err)
	s.Require().NoError(db.PingContext(ctx))
	s.db = db
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

// freshStore gives each subtest its own schema so ledgers never collide.
func (s *PostgresStoreSuite) freshStore(t *testing.T, limits Limits) EventStore {
	ctx := context.Background()
	schema := fmt.Sprintf("t%d", s.schemas.Add(1))

	conn, err := s.db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	conn.Close()

	dsn, err := s.container.ConnectionString(ctx, "sslmode=disable", "search_path="+schema)
	require.NoError(t, err)

	store, err := OpenPostgres(ctx, dsn, WithPostgresLimits(limits))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func (s *PostgresStoreSuite) TestContract() {
	runStoreContract(s.T(), s.freshStore)
}

func (s *PostgresStoreSuite) TestSchemaVersion() {
	store := s.freshStore(s.T(), Limits{}).(*PostgresStore)
	v, err := store.SchemaVersion(context.Background())
	s.Require().NoError(err)
	s.Equal(len(postgresMigrations), v)
}
