package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/pulsegrid/internal/exchange"
	"github.com/specialistvlad/pulsegrid/internal/executor"
	"github.com/specialistvlad/pulsegrid/internal/pulseerr"
	"github.com/specialistvlad/pulsegrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.WorkerCount)

	cfg, err = NewConfig(Config{LogFormat: "JSON", LogLevel: "Warn", WorkerCount: 2})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)

	for _, bad := range []Config{
		{LogFormat: "xml"},
		{LogLevel: "trace"},
		{WorkerCount: -1},
		{HealthcheckPort: 70000},
	} {
		_, err := NewConfig(bad)
		assert.Error(t, err, "%+v", bad)
	}
}

func TestNewApp_PanicsOnInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"broken.hcl": `design "d" {`})

	defer func() {
		r := recover()
		require.NotNil(t, r, "NewApp must panic on unparsable configuration")
		assert.Contains(t, fmt.Sprint(r), "failed to load configuration")
	}()
	setupAppTest(t, Config{DesignPath: dir})
}

func TestApp_RunBuildsEveryDesign(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"designs/slice.hcl": sliceDesigns})
	out := filepath.Join(t.TempDir(), "pulses")

	a, logs := setupAppTest(t, Config{DesignPath: dir, WorkerCount: 2})
	require.NoError(t, a.Run(context.Background(), out))

	summary := logs.String()
	assert.Contains(t, summary, "design alpha: built")
	assert.Contains(t, summary, "design beta: built")
	testutil.AssertStageRan(t, summary, 1, "interpolate")

	alpha, err := os.ReadFile(filepath.Join(out, "alpha.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(alpha), "# samples=128 "))

	beta, err := os.ReadFile(filepath.Join(out, "beta.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(beta), "# samples=512 ")

	rep, ok := a.health.report()
	assert.True(t, ok)
	assert.Equal(t, "ok", rep.Status)
	assert.Equal(t, "built", rep.Designs["beta"].Status)
}

func TestApp_RunIsolatesFailingDesigns(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"main.hcl": `
design "good" {
  transform "slr" {}
}

design "orphan" {
  transform "interpolate" {}
}
`})

	a, logs := setupAppTest(t, Config{DesignPath: dir})
	err := a.Run(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `design "orphan"`)

	var algErr *pulseerr.AlgorithmError
	require.ErrorAs(t, err, &algErr)
	assert.Equal(t, "missing_prior", algErr.Code)

	summary := logs.String()
	assert.Contains(t, summary, "design good: built")
	assert.Contains(t, summary, "design orphan: error(0)")

	rep, ok := a.health.report()
	assert.False(t, ok)
	assert.Equal(t, "failing", rep.Status)
}

func TestApp_RunRespectsWorkerLimit(t *testing.T) {
	dir := t.TempDir()
	var designs strings.Builder
	for i := range 6 {
		fmt.Fprintf(&designs, "design \"d%d\" {\n  transform \"sleeper\" { amplitude = %d }\n}\n", i, i+1)
	}
	testutil.WriteFiles(t, dir, map[string]string{
		"designs/all.hcl":      designs.String(),
		"kernels/sleeper.hcl": testutil.SleeperManifest,
	})

	sleeper := testutil.NewMockSleeperModule(30 * time.Millisecond)
	a, _ := setupAppTest(t, Config{
		DesignPath:  filepath.Join(dir, "designs"),
		KernelsPath: filepath.Join(dir, "kernels"),
		WorkerCount: 2,
	}, withCore(sleeper)...)

	require.NoError(t, a.Run(context.Background(), ""))
	assert.Equal(t, 6, sleeper.Calls())
	assert.LessOrEqual(t, sleeper.MaxInFlight(), 2)
	assert.Equal(t, 2, sleeper.MaxInFlight(), "independent designs build concurrently")
}

func TestApp_ExportImportRebuildsIdenticalPulse(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"slice.hcl": sliceDesigns})
	a, logs := setupAppTest(t, Config{DesignPath: dir})

	model, converter := a.snapshot()
	results, err := a.buildAll(context.Background(), model, converter)
	require.NoError(t, err)
	var original BuildResult
	for _, r := range results {
		if r.Design == "beta" {
			original = r
		}
	}
	require.NoError(t, original.Err)
	require.NotNil(t, original.Pulse)

	path := filepath.Join(t.TempDir(), "beta.yaml.gz")
	require.NoError(t, a.Export("beta", path, "handover"))

	res, err := a.Import(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, executor.Built, res.Status.Phase)
	assert.Empty(t, cmp.Diff(original.Pulse, res.Pulse))
	assert.Contains(t, logs.String(), "Design exported.")

	assert.ErrorContains(t, a.Export("gamma", path, ""), `unknown design "gamma"`)
}

func TestApp_ImportRejectsKernelNotMatchingCode(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"slice.hcl": sliceDesigns})
	a, _ := setupAppTest(t, Config{DesignPath: dir})

	doc, err := a.ExportDesign("alpha", "")
	require.NoError(t, err)
	i := slices.IndexFunc(doc.Kernels, func(kd exchange.KernelDoc) bool { return kd.Name == "slr" })
	require.GreaterOrEqual(t, i, 0)

	const customID = "8e1d4f20-6b3a-4c59-9f07-2a5e6c1b3d48"
	gain := "1"
	custom := doc.Kernels[i]
	custom.ID = customID
	custom.Name = "slr_custom"
	custom.Parameters = append(slices.Clone(custom.Parameters), exchange.DescriptorDoc{
		Name: "gain", Type: "double", Default: &gain, Order: 1000,
	})
	doc.Kernels = []exchange.KernelDoc{custom}
	doc.Design.Transforms[0].Kernel = "slr_custom"
	doc.Design.Transforms[0].KernelID = customID

	_, err = a.BuildDocument(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `imported kernel "slr_custom"`)
	assert.Contains(t, err.Error(), "manifest declares parameter 'gain' which is not found in Go struct")

	_, ok := a.Registry().Definition("slr_custom")
	assert.False(t, ok, "a rejected definition must not be registered")
}

func TestApp_Library(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"slice.hcl": sliceDesigns})
	db := filepath.Join(t.TempDir(), "lib", "designs.db")

	a, _ := setupAppTest(t, Config{DesignPath: dir})
	id, err := a.LibrarySave(ctx, db, "alpha", "")
	require.NoError(t, err)
	_, err = a.LibrarySave(ctx, db, "beta", "")
	require.NoError(t, err)

	var out bytes.Buffer
	a.outW = &out
	require.NoError(t, a.LibraryList(ctx, db))
	assert.Contains(t, out.String(), "alpha")
	assert.Contains(t, out.String(), "linear phase")

	out.Reset()
	require.NoError(t, a.LibraryShow(ctx, db, id, false))
	assert.True(t, strings.HasPrefix(out.String(), "pulsegrid_export:"))

	out.Reset()
	require.NoError(t, a.LibraryShow(ctx, db, id, true))
	assert.Contains(t, out.String(), "design alpha: built")

	assert.Error(t, a.LibraryShow(ctx, db, "missing", false))
}

func TestApp_ListKernels(t *testing.T) {
	a, _ := setupAppTest(t, Config{})
	var out bytes.Buffer
	a.outW = &out
	require.NoError(t, a.ListKernels())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 8)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, out.String(), "0e6a4d2c-1f7b-4b8e-9c35-d84a27f6e1b9")
	for _, name := range []string{"hsech", "import", "import_legacy", "interpolate", "ocn", "rootreflect", "slr"} {
		assert.Contains(t, out.String(), name)
	}
}
