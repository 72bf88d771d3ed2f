package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EvanWAppel/hermes/pkg/config"
	"github.com/EvanWAppel/hermes/pkg/hermes"
	"github.com/EvanWAppel/hermes/pkg/metrics"
	"github.com/EvanWAppel/hermes/pkg/system"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hermes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "hermes dev")
}

func TestRunCommand_RequiresAddresses(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--", "true"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--from and --to are required")
}

func TestRunCommand_RequiresCommand(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--from", "a@example.com", "--to", "b@example.com"})

	require.Error(t, root.Execute())
}

func TestRunCommand_InvalidDelay(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{
		"run",
		"--from", "a@example.com",
		"--to", "b@example.com",
		"--delay", "fortnight",
		"--", "true",
	})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --delay")
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv(envFrom, "env-from@example.com")
	t.Setenv(envTo, "env-to@example.com")
	t.Setenv(envRetries, "not-a-number")

	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--", "true"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HERMES_RETRIES")
}

func TestBuildNotifier_FromConfigFile(t *testing.T) {
	path := writeConfig(t, `
origin: from@example.com
destination: to@example.com
retries: 3
delay: 5s
`)

	rt := &runtimeState{configPath: path}
	notifier, err := rt.buildNotifier("backup.sh", system.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = notifier.Close() })
}

func TestBuildNotifier_BadConfigPath(t *testing.T) {
	rt := &runtimeState{configPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := rt.buildNotifier("backup.sh", system.NewTestLogger())
	require.Error(t, err)
}

func TestResolvePolicy_Defaults(t *testing.T) {
	rt := &runtimeState{}
	policy, err := rt.resolvePolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, hermes.DefaultPolicy, policy)
}

func TestResolvePolicy_FileWithoutRetriesKeepsDefault(t *testing.T) {
	path := writeConfig(t, `
origin: from@example.com
destination: to@example.com
delay: 5s
`)
	fileCfg, err := config.Load(path)
	require.NoError(t, err)

	rt := &runtimeState{}
	policy, err := rt.resolvePolicy(&fileCfg)
	require.NoError(t, err)

	// A file that omits retries must not collapse the default to zero.
	assert.Equal(t, 1, policy.MaxRetries)
	assert.Equal(t, 5*time.Second, policy.Delay)
}

func TestResolvePolicy_FileValuesApply(t *testing.T) {
	path := writeConfig(t, `
origin: from@example.com
destination: to@example.com
retries: 3
delay: 5s
`)
	fileCfg, err := config.Load(path)
	require.NoError(t, err)

	rt := &runtimeState{}
	policy, err := rt.resolvePolicy(&fileCfg)
	require.NoError(t, err)
	assert.Equal(t, 3, policy.MaxRetries)
	assert.Equal(t, 5*time.Second, policy.Delay)
}

func TestResolvePolicy_ExplicitFlagBeatsFile(t *testing.T) {
	path := writeConfig(t, `
origin: from@example.com
destination: to@example.com
retries: 3
`)
	fileCfg, err := config.Load(path)
	require.NoError(t, err)

	// --retries 1 equals the built-in default but was passed explicitly,
	// so it must still win over the file's 3.
	rt := &runtimeState{retries: 1, retriesSet: true, delay: "250ms"}
	policy, err := rt.resolvePolicy(&fileCfg)
	require.NoError(t, err)
	assert.Equal(t, 1, policy.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, policy.Delay)
}

func TestResolvePolicy_UnsetFlagYieldsToFile(t *testing.T) {
	path := writeConfig(t, `
origin: from@example.com
destination: to@example.com
retries: 3
`)
	fileCfg, err := config.Load(path)
	require.NoError(t, err)

	rt := &runtimeState{retries: 1, retriesSet: false}
	policy, err := rt.resolvePolicy(&fileCfg)
	require.NoError(t, err)
	assert.Equal(t, 3, policy.MaxRetries)
}

func TestServeMetrics(t *testing.T) {
	metrics.WorkAttempts.WithLabelValues("clitest").Inc()

	addr, shutdown, err := serveMetrics("127.0.0.1:0", system.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(shutdown)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hermes_work_attempts_total")
}

func TestServeMetrics_BadAddress(t *testing.T) {
	_, _, err := serveMetrics("256.256.256.256:99999", system.NewTestLogger())
	require.Error(t, err)
}

func TestDefaultRetriesMatchPolicy(t *testing.T) {
	assert.Equal(t, 1, hermes.DefaultPolicy.MaxRetries)
	assert.Equal(t, 60*time.Second, hermes.DefaultPolicy.Delay)
}
