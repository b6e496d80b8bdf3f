package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sirupsen/logrus"
)

var mysqlStore *MySQLStorage

// TestMain starts a throwaway MySQL container for the shared storage tests.
// Without Docker only the in-memory backend is exercised.
func TestMain(m *testing.M) {
	pool, resource, err := startMySQL()
	if err != nil {
		logrus.Warnf("MySQL tests disabled: %s", err)
	}

	code := m.Run()

	if resource != nil {
		if err := pool.Purge(resource); err != nil {
			logrus.Errorf("Could not purge resource: %s", err)
		}
	}
	os.Exit(code)
}

func startMySQL() (*dockertest.Pool, *dockertest.Resource, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, nil, fmt.Errorf("could not construct pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, nil, fmt.Errorf("could not connect to docker: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0",
		Env:        []string{"MYSQL_ROOT_PASSWORD=secret"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not start resource: %w", err)
	}
	_ = resource.Expire(300)

	hostPort := resource.GetHostPort("3306/tcp")
	adminDSN := fmt.Sprintf("root:secret@tcp(%s)/?parseTime=true&loc=UTC", hostPort)
	pool.MaxWait = 2 * time.Minute
	err = pool.Retry(func() error {
		db, err := sql.Open("mysql", adminDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.Ping()
	})
	if err != nil {
		return pool, resource, fmt.Errorf("could not connect to mysql: %w", err)
	}

	// No parseTime here: Init adds it.
	dsn := fmt.Sprintf("root:secret@tcp(%s)/budgetly_test", hostPort)
	db, err := Init(context.Background(), dsn)
	if err != nil {
		return pool, resource, fmt.Errorf("could not initialize database: %w", err)
	}
	mysqlStore = NewMySQLStorage(db)
	return pool, resource, nil
}
