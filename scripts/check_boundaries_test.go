package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testContext = modulePath + "/contexts/contest-voting/ballot-engine"

func TestCheckImport(t *testing.T) {
	cases := []struct {
		name   string
		layer  string
		path   string
		broken string
	}{
		{name: "stdlib anywhere", layer: "domain", path: "net/http"},
		{name: "domain sibling", layer: "domain", path: testContext + "/domain/errors"},
		{name: "domain reaching ports", layer: "domain", path: testContext + "/ports", broken: "domain import is outside explicit allowlist"},
		{name: "application library", layer: "application", path: "golang.org/x/sync/errgroup"},
		{name: "application driver", layer: "application", path: "gorm.io/gorm", broken: "application import is outside explicit allowlist"},
		{name: "application adapter", layer: "application", path: testContext + "/adapters/memory", broken: "application must not import adapters"},
		{name: "ports shared outbox", layer: "ports", path: sharedPath + "/outbox"},
		{name: "live websocket", layer: "adapters/live", path: "github.com/gorilla/websocket"},
		{name: "live borrowing gorm", layer: "adapters/live", path: "gorm.io/gorm", broken: "adapters/live import is outside explicit allowlist"},
		{name: "live reaching application", layer: "adapters/live", path: testContext + "/application/queries", broken: "adapters/live import is outside explicit allowlist"},
		{name: "cache borrowing websocket", layer: "adapters/cache", path: "github.com/gorilla/websocket", broken: "adapters/cache import is outside explicit allowlist"},
		{name: "postgres pgconn", layer: "adapters/postgres", path: "github.com/jackc/pgx/v5/pgconn"},
		{name: "postgres platform", layer: "adapters/postgres", path: modulePath + "/internal/platform/db", broken: "adapters/postgres must not import runtime infrastructure"},
		{name: "http adapter bootstrap", layer: "adapters/http", path: modulePath + "/internal/app/bootstrap", broken: "adapters/http must not import runtime infrastructure"},
		{name: "http adapter commands", layer: "adapters/http", path: testContext + "/application/commands"},
		{name: "transport third party", layer: "transport", path: "github.com/goccy/go-json", broken: "transport import is outside explicit allowlist"},
		{name: "other context", layer: "application", path: modulePath + "/contexts/billing/ledger/domain", broken: "cross-context imports are forbidden"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, ok := rules[tc.layer]
			assert.True(t, ok)
			assert.Equal(t, tc.broken, checkImport(rule, tc.layer, tc.path, testContext))
		})
	}
}

func TestBallotEngineRespectsBoundaries(t *testing.T) {
	t.Chdir("..")
	assert.Empty(t, collectViolations("contexts"))
}
