package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tieredmem/tmsim/pkg/tiermem"
)

func TestCollectorsExposeAccessesAndMigrations(t *testing.T) {
	c := New()
	c.IncAccess(tiermem.Local)
	c.IncAccess(tiermem.Local)
	c.IncAccess(tiermem.Remote)
	c.IncMigration(tiermem.Local, tiermem.Remote)
	c.ObserveLatency(0.000001)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, `tmsim_accesses_total{tier="local"} 2`)
	require.Contains(t, body, `tmsim_accesses_total{tier="remote"} 1`)
	require.True(t, strings.Contains(body, `tmsim_migrations_total{transition="local->remote"} 1`))
}
