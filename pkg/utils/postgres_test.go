package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOpenPostgres_RequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), DriverPgx, "", PostgresPoolConfig{}); !errors.Is(err, ErrEmptyDSN) {
		t.Fatalf("expected ErrEmptyDSN, got %v", err)
	}
}

func TestOpenPostgres_UnknownDriver(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "nope", "postgres://localhost/x", PostgresPoolConfig{})
	if err == nil || !strings.Contains(err.Error(), "utils: open nope") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestPostgresPoolDefaults(t *testing.T) {
	got := PostgresPoolConfig{MaxOpenConns: 4, MaxIdleConns: 10}.withDefaults()
	if got.MaxOpenConns != 4 || got.MaxIdleConns != 4 {
		t.Fatalf("idle conns should be capped by open conns: %+v", got)
	}
	if got.PingTimeout != 5*time.Second || got.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	zero := PostgresPoolConfig{}.withDefaults()
	if zero.MaxOpenConns != 8 || zero.MaxIdleConns != 8 {
		t.Fatalf("unexpected zero defaults: %+v", zero)
	}
}
