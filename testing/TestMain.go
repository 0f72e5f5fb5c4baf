// Package testing is blank-imported by test files so the binaries under
// test skip runtime startup. The flag must be set before any package main
// inspects it, hence the init hook.
package testing

import (
	"os"
	stdtesting "testing"

	"github.com/ledgerline/ledgerline/internal/app"
)

func init() {
	_ = os.Setenv("LEDGERLINE_TEST_MODE", "1")
	app.RefreshTestMode()
}

// TestMain runs the suite with test mode pinned on.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
