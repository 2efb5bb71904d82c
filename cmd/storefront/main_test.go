package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPrintRoutesSortsByPathThenMethod(t *testing.T) {
	r, err := kernel.NewRouter(kernel.NewServices(nil, nil))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printRoutes(&out, r))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Greater(t, len(lines), 2)
	assert.Contains(t, lines[0], "METHOD")

	var paths []string
	for _, l := range lines[2:] {
		paths = append(paths, strings.Fields(l)[1])
	}
	assert.IsNonDecreasing(t, paths)
	assert.Contains(t, out.String(), "orders.store")
	assert.Contains(t, out.String(), "admin.backfill")
}

func TestPrintRoutesEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRoutes(&out, router.New()))
	assert.Equal(t, "No named routes registered.\n", out.String())
}

func TestAuthTokenSignsAdminToken(t *testing.T) {
	out, err := run(t, "auth:token", "--user", "ops-1", "--role", "admin")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops-1", claims.UserID)
	assert.True(t, claims.IsAdmin())
}

func TestAuthTokenRejectsUnknownRole(t *testing.T) {
	_, err := run(t, "auth:token", "--user", "ops-1", "--role", "root")
	assert.ErrorContains(t, err, `unknown role "root"`)
}
