package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/pulsegrid/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStop = errors.New("starter called")

// capture returns a Starter that records its config and stops the command.
func capture(got **app.Config) Starter {
	return func(cfg *app.Config) (*app.App, error) {
		*got = cfg
		return nil, errStop
	}
}

func TestExecute_TranslatesFlagsIntoConfig(t *testing.T) {
	var cfg *app.Config
	var out bytes.Buffer
	err := Execute(context.Background(), &out, []string{
		"--log-format", "json", "--log-level", "debug", "--workers", "3", "--kernels-path", "extra",
		"watch", "--healthcheck-port", "8081", "designs/",
	}, capture(&cfg))
	require.ErrorIs(t, err, errStop)
	require.NotNil(t, cfg)

	assert.Equal(t, app.Config{
		DesignPath:      "designs/",
		KernelsPath:     "extra",
		LogFormat:       "json",
		LogLevel:        "debug",
		HealthcheckPort: 8081,
		WorkerCount:     3,
	}, *cfg)
}

func TestExecute_Defaults(t *testing.T) {
	var cfg *app.Config
	err := Execute(context.Background(), &bytes.Buffer{}, []string{"run", "x.hcl"}, capture(&cfg))
	require.ErrorIs(t, err, errStop)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Zero(t, cfg.HealthcheckPort)
}

func TestExecute_CommandsWithoutDesignPath(t *testing.T) {
	for _, args := range [][]string{
		{"kernels"},
		{"import", "doc.yaml"},
		{"library", "list", "--db", "lib.db"},
		{"library", "show", "--db", "lib.db", "some-id"},
	} {
		var cfg *app.Config
		err := Execute(context.Background(), &bytes.Buffer{}, args, capture(&cfg))
		require.ErrorIs(t, err, errStop, "%v", args)
		assert.Empty(t, cfg.DesignPath, "%v", args)
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	cases := map[string][]string{
		"unknown flag":         {"run", "--this-is-not-a-valid-flag", "x"},
		"invalid log format":   {"--log-format", "xml", "run", "x"},
		"invalid log level":    {"--log-level", "loud", "run", "x"},
		"missing path":         {"run"},
		"too many paths":       {"run", "a", "b"},
		"unknown command":      {"bake"},
		"missing design flag":  {"export", "x", "-o", "out.yaml"},
		"kernels takes no arg": {"kernels", "extra"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var cfg *app.Config
			err := Execute(context.Background(), &bytes.Buffer{}, args, capture(&cfg))
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Nil(t, cfg, "the application must not start")
		})
	}
}

func TestExecute_Help(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Execute(context.Background(), &out, []string{"--help"}, nil))
	assert.Contains(t, out.String(), "Usage:")
	for _, cmd := range []string{"run", "watch", "kernels", "export", "import", "library"} {
		assert.Contains(t, out.String(), cmd)
	}

	out.Reset()
	require.NoError(t, Execute(context.Background(), &out, []string{}, nil))
	assert.Contains(t, out.String(), "Usage:")
}
