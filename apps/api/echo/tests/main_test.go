package tests

import (
	"testing"

	. "github.com/trezcool/masomo-enrol/apps/api/echo"
	"github.com/trezcool/masomo-enrol/testutil"
)

// setup returns a fresh server over the in-memory stack, so that tests do not share roster state.
func setup(t *testing.T) (Server, *testutil.Env) {
	env := testutil.NewEnv(t)
	env.Conf.Server.RateLimit = 0

	app := NewServer(
		ServerDeps{
			Conf:       env.Conf,
			Logger:     env.Logger,
			RegSvc:     env.NewService(),
			Validate:   env.Validate,
			Translator: env.Translator,
		},
	)
	return app, env
}
