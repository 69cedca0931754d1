package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/bizobj/internal/policy"
)

const baseConfig = `
log:
  level: error
rules:
  async_workers: 2
  queue_size: 16
  poll_interval: 1ms
policy:
  jwt:
    secret: test-secret
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bizobj.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color", "--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "bizobj", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"version", "completion", "types", "rules", "demo", "token", "roles"} {
		assert.Contains(t, names, expected)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"

	out, err := run(t, writeConfig(t, baseConfig), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0-test")
	assert.Contains(t, out, "abc123")
}

func TestCompletionCommand(t *testing.T) {
	out, err := run(t, writeConfig(t, baseConfig), "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "bizobj")

	_, err = run(t, writeConfig(t, baseConfig), "completion", "tcsh")
	assert.Error(t, err)
}

func TestTypesCommand(t *testing.T) {
	cfg := writeConfig(t, baseConfig)

	out, err := run(t, cfg, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "Business types")
	assert.Contains(t, out, "Person")
	assert.Contains(t, out, "Customer, Lines")

	out, err = run(t, cfg, "types", "Order")
	require.NoError(t, err)
	assert.Contains(t, out, "Order number")
	assert.Contains(t, out, "child")

	_, err = run(t, cfg, "types", "Ordr")
	var unknown *UnknownNameError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"Order"}, unknown.Suggestions)
}

func TestRulesCommand(t *testing.T) {
	cfg := writeConfig(t, baseConfig)

	out, err := run(t, cfg, "rules", "Person")
	require.NoError(t, err)
	assert.Contains(t, out, "Rules of Person")
	assert.Contains(t, out, "MustBePositive")
	assert.Contains(t, out, "EmailAvailable")
	assert.Contains(t, out, "async")

	out, err = run(t, cfg, "rules", "Person", "--property", "Age")
	require.NoError(t, err)
	assert.Contains(t, out, "Cascade for Person.Age")
	assert.Contains(t, out, "WarnIfOver100")
	assert.NotContains(t, out, "EmailAvailable")
	assert.Contains(t, out, "Notified properties: Age")

	_, err = run(t, cfg, "rules", "Person", "--property", "Agee")
	var unknown *UnknownNameError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Suggestions, "Age")
}

func TestDemoCommand(t *testing.T) {
	out, err := run(t, writeConfig(t, baseConfig), "demo", "--lookup-delay", "1ms")
	require.NoError(t, err)

	assert.Contains(t, out, "Walkthrough as anonymous")
	for _, step := range []string{"validation", "undo", "async rules", "object graph", "save"} {
		assert.Contains(t, out, "✓ "+step)
	}
	assert.Contains(t, out, "repository holds 3 records")
}

func TestDemoCommand_WithPolicy(t *testing.T) {
	cfg := writeConfig(t, baseConfig+`
  roles:
    admin:
      - "*"
`)

	// without the admin role every write is denied, so steps fail
	out, err := run(t, cfg, "demo", "--lookup-delay", "1ms", "--user", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "step(s) failed")

	out, err = run(t, cfg, "demo", "--lookup-delay", "1ms", "--user", "root", "--roles", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Walkthrough as root")
	assert.Contains(t, out, "repository holds 3 records")
}

func TestTokenCommands(t *testing.T) {
	cfg := writeConfig(t, baseConfig)

	out, err := run(t, cfg, "token", "issue", "--user", "ann", "--roles", "clerk,auditor")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	require.NotEmpty(t, token)

	out, err = run(t, cfg, "token", "inspect", token)
	require.NoError(t, err)
	assert.Contains(t, out, "user:  ann")
	assert.Contains(t, out, "roles: clerk, auditor")

	_, err = run(t, cfg, "token", "inspect", "garbage")
	assert.ErrorIs(t, err, policy.ErrInvalidToken)

	out, err = run(t, cfg, "demo", "--lookup-delay", "1ms", "--token", token)
	require.NoError(t, err)
	assert.Contains(t, out, "Walkthrough as ann")
}

func TestTokenCommand_NoSecret(t *testing.T) {
	_, err := run(t, writeConfig(t, "log:\n  level: error\n"), "token", "issue", "--user", "ann")
	assert.ErrorContains(t, err, "policy.jwt.secret")
}

func TestRolesCommands_Static(t *testing.T) {
	cfg := writeConfig(t, baseConfig+`
  roles:
    clerk:
      - Order.get
      - Order.*.read
`)

	out, err := run(t, cfg, "roles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "clerk")
	assert.Contains(t, out, "Order.get, Order.*.read")

	out, err = run(t, cfg, "roles", "check", "--roles", "clerk", "Order", "Total.read")
	require.NoError(t, err)
	assert.Contains(t, out, "is granted Order.Total.read")

	out, err = run(t, cfg, "roles", "check", "--roles", "clerk", "Order", "delete")
	require.NoError(t, err)
	assert.Contains(t, out, "is not granted Order.delete")

	_, err = run(t, cfg, "roles", "import")
	assert.ErrorContains(t, err, "policy.redis.enabled")
}

func TestRolesCommands_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := writeConfig(t, baseConfig+`
  redis:
    enabled: true
    addr: `+mr.Addr()+`
  roles:
    clerk:
      - Order.get
`)

	out, err := run(t, cfg, "roles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no roles defined")

	out, err = run(t, cfg, "roles", "import")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 role(s)")

	out, err = run(t, cfg, "roles", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Order.get")

	out, err = run(t, cfg, "roles", "check", "--roles", "clerk", "Order", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "is granted")
}
