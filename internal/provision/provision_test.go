package provision_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"labpipe/internal/config"
	"labpipe/internal/provision"
	"labpipe/internal/testutil"
)

const manifestYAML = `
name: eis-env
channels:
  - conda-forge
dependencies:
  - python=3.11
  - pandas==2.1.4
  - matplotlib
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "environment.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func environment(t *testing.T) config.Environment {
	t.Helper()
	return config.Environment{
		ManifestPath: writeManifest(t, manifestYAML),
		Python:       "3.11",
		Kernel:       "labpipe-kernel",
		TexLive: []config.TexLiveGroup{
			{Name: "latex", Packages: []string{"latex-base", "latexmk"}},
			{Name: "fonts", Packages: []string{"collection-fontsrecommended"}},
		},
	}
}

// healthyRunner scripts the verification commands to agree with the
// manifest. pip's freeze output never includes the interpreter itself.
func healthyRunner() *testutil.FakeRunner {
	fake := testutil.NewFakeRunner()
	fake.RespondOn("python --version", "Python 3.11.9\n")
	fake.RespondOn("pip list --format=freeze", "pandas==2.1.4\nmatplotlib==3.8.4\n")
	return fake
}

func TestProvision_CommandSequence(t *testing.T) {
	t.Parallel()

	fake := healthyRunner()
	envName, err := provision.New(fake).Provision(context.Background(), environment(t))
	require.NoError(t, err)
	require.Equal(t, "eis-env", envName, "environment name should come from the manifest")

	lines := fake.CommandLines()
	require.Len(t, lines, 7)
	require.Contains(t, lines[0], "conda env create --yes --name eis-env")
	require.Contains(t, lines[1], "pip install nbconvert ipykernel")
	require.Contains(t, lines[2], "ipykernel install --user --name labpipe-kernel")
	require.Contains(t, lines[3], "tlmgr install latex-base latexmk")
	require.Contains(t, lines[4], "tlmgr install collection-fontsrecommended")
	require.Contains(t, lines[5], "python --version")
	require.Contains(t, lines[6], "pip list --format=freeze")
}

func TestProvision_NameOverride(t *testing.T) {
	t.Parallel()

	env := environment(t)
	env.Name = "pinned-env"

	fake := healthyRunner()
	envName, err := provision.New(fake).Provision(context.Background(), env)
	require.NoError(t, err)
	require.Equal(t, "pinned-env", envName)
	require.Contains(t, fake.CommandLines()[0], "--name pinned-env")
}

func TestProvision_CreateFailureIsFatal(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	fake.FailOn("env create", errors.New("CondaHTTPError: registry unreachable"))

	_, err := provision.New(fake).Provision(context.Background(), environment(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "environment creation failed")
	require.Len(t, fake.Commands(), 1, "no further step may run after a failed create")
}

func TestProvision_StaleCachedVersionFails(t *testing.T) {
	t.Parallel()

	// The manifest pins pandas==2.1.4 but the environment reports a
	// stale 2.2.0; provisioning must fail rather than silently use it.
	fake := testutil.NewFakeRunner()
	fake.RespondOn("python --version", "Python 3.11.9\n")
	fake.RespondOn("pip list --format=freeze", "pandas==2.2.0\nmatplotlib==3.8.4\n")

	_, err := provision.New(fake).Provision(context.Background(), environment(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "pandas==2.2.0")
	require.Contains(t, err.Error(), "pins pandas==2.1.4")
}

func TestProvision_MissingPinnedPackageFails(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	fake.RespondOn("python --version", "Python 3.11.9\n")
	fake.RespondOn("pip list --format=freeze", "matplotlib==3.8.4\n")

	_, err := provision.New(fake).Provision(context.Background(), environment(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing from environment")
}

func TestProvision_InterpreterPinNotCheckedAgainstFreeze(t *testing.T) {
	t.Parallel()

	// pip never lists the interpreter as a distribution; a manifest that
	// pins python must not fail on its absence from the freeze output.
	fake := healthyRunner()
	_, err := provision.New(fake).Provision(context.Background(), environment(t))
	require.NoError(t, err)
}

func TestProvision_OnlyInterpreterPinSkipsFreeze(t *testing.T) {
	t.Parallel()

	env := environment(t)
	env.ManifestPath = writeManifest(t, `
name: eis-env
channels:
  - conda-forge
dependencies:
  - python=3.11
  - matplotlib
`)
	env.TexLive = nil

	fake := testutil.NewFakeRunner()
	fake.RespondOn("python --version", "Python 3.11.9\n")

	_, err := provision.New(fake).Provision(context.Background(), env)
	require.NoError(t, err)
	for _, line := range fake.CommandLines() {
		require.NotContains(t, line, "--format=freeze",
			"the interpreter pin is verified by the version probe, not pip")
	}
}

func TestProvision_WrongInterpreterFails(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRunner()
	fake.RespondOn("python --version", "Python 3.12.1\n")

	_, err := provision.New(fake).Provision(context.Background(), environment(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), `manifest demands "3.11"`)
}

func TestProvision_BadManifestAbortsBeforeAnyCommand(t *testing.T) {
	t.Parallel()

	env := environment(t)
	env.ManifestPath = writeManifest(t, "name: x\n")

	fake := testutil.NewFakeRunner()
	_, err := provision.New(fake).Provision(context.Background(), env)
	require.Error(t, err)
	require.Empty(t, fake.Commands())
}

