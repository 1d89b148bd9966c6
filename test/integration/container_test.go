//go:build integration

package integration

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "umutisafe"
	pgPassword = "umutisafe"
	pgDatabase = "umutisafe_test"
)

// startPostgres runs a throwaway Postgres container through the docker CLI.
// Docker picks the host port; the returned cleanup removes the container.
func startPostgres(ctx context.Context) (string, func(), error) {
	out, err := docker(ctx, "run", "-d", "--rm",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER="+pgUser,
		"-e", "POSTGRES_PASSWORD="+pgPassword,
		"-e", "POSTGRES_DB="+pgDatabase,
		pgImage,
	)
	if err != nil {
		return "", nil, err
	}
	id := out
	cleanup := func() {
		_, _ = docker(context.Background(), "rm", "-f", id)
	}

	hostPort, err := docker(ctx, "port", id, "5432/tcp")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	// "docker port" may list an IPv6 binding too.
	hostPort = strings.SplitN(hostPort, "\n", 2)[0]

	if err := waitReady(ctx, id, 30*time.Second); err != nil {
		cleanup()
		return "", nil, err
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, hostPort, pgDatabase)
	return dsn, cleanup, nil
}

// waitReady polls pg_isready over TCP inside the container. The initdb
// server listens on the socket only, so a TCP answer means the real server
// is up.
func waitReady(ctx context.Context, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := docker(ctx, "exec", id, "pg_isready", "-h", "127.0.0.1", "-U", pgUser, "-d", pgDatabase); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres container %s not ready after %v", id, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func docker(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
