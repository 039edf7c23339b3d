package dbpool_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/forgenet/forgenet/internal/dbpool"
)

// DatabaseSuite spins up a real PostgreSQL container (or reuses DB_ADDR, for
// CI) and exercises dbpool.Database's sync and async paths against it.
type DatabaseSuite struct {
	suite.Suite
	db        *dbpool.Database
	ctx       context.Context
	container *postgres.PostgresContainer
}

func (s *DatabaseSuite) SetupSuite() {
	s.ctx = context.Background()

	dbAddr := os.Getenv("DB_ADDR")
	if dbAddr == "" {
		var err error
		s.container, err = postgres.Run(s.ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("forgenet_test"),
			postgres.WithUsername("forgenet"),
			postgres.WithPassword("testpass"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			),
		)
		s.Require().NoError(err)

		dbAddr, err = s.container.ConnectionString(s.ctx, "sslmode=disable")
		s.Require().NoError(err)
	}

	s.Require().NoError(dbpool.RunMigrations(s.ctx, dbAddr))

	var err error
	s.db, err = dbpool.Open(s.ctx, dbAddr, nil)
	s.Require().NoError(err)
}

func (s *DatabaseSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *DatabaseSuite) TestExecuteAndQueryRoundTrip() {
	_, err := s.db.Execute(s.ctx,
		`INSERT INTO session_audit (session_id, remote_addr, connected_at) VALUES ($1, $2, $3)`,
		int64(1), "127.0.0.1:1234", time.Now())
	s.Require().NoError(err)

	rows, err := s.db.Query(s.ctx, `SELECT remote_addr FROM session_audit WHERE session_id = $1`, int64(1))
	s.Require().NoError(err)
	defer rows.Close()

	s.Require().True(rows.Next())
	var addr string
	s.Require().NoError(rows.Scan(&addr))
	s.Equal("127.0.0.1:1234", addr)

	_, err = s.db.Execute(s.ctx, `DELETE FROM session_audit WHERE session_id = $1`, int64(1))
	s.Require().NoError(err)
}

func (s *DatabaseSuite) TestExecuteAsyncPostsResult() {
	done := make(chan dbpool.ExecResult, 1)
	s.db.ExecuteAsync(s.ctx, func(r dbpool.ExecResult) { done <- r },
		`INSERT INTO session_audit (session_id, remote_addr, connected_at) VALUES ($1, $2, $3)`,
		int64(2), "10.0.0.1:5555", time.Now())

	select {
	case r := <-done:
		s.Require().NoError(r.Err)
		s.Equal(int64(1), r.RowsAffected)
	case <-time.After(5 * time.Second):
		s.Fail("async exec did not complete")
	}

	_, err := s.db.Execute(s.ctx, `DELETE FROM session_audit WHERE session_id = $1`, int64(2))
	s.Require().NoError(err)
}

func TestDatabaseSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(DatabaseSuite))
}
