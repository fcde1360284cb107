// Package testing holds helpers shared by package tests: a test-mode
// environment and sessions over an in-memory Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// Env holds the variables a console process needs before LoadConfig
// succeeds. Values already present in the environment win.
var Env = map[string]string{
	"GRANTDESK_TEST_MODE": "1",
	"BACKEND_URL":         "http://127.0.0.1:0",
	"SESSION_SECRET":      "test-session-secret",
	"CSRF_SECRET":         "test-csrf-secret",
}

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		for k, v := range Env {
			if os.Getenv(k) == "" {
				_ = os.Setenv(k, v)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be assigned from a package's own TestMain to run the suite
// in test mode.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
