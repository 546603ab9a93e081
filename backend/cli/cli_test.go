package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ravigill3969/image-converter/backend/apikeys"
	"github.com/ravigill3969/image-converter/backend/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeBackend struct {
	keys       *apikeys.Service
	purgedAt   time.Time
	migrations []string
	closed     int
}

func (f *fakeBackend) Keys(context.Context) (KeyService, error) { return f.keys, nil }

func (f *fakeBackend) Purger(context.Context) (Purger, error) { return f, nil }

func (f *fakeBackend) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	f.purgedAt = now
	return 4, nil
}

func (f *fakeBackend) Migrate(direction string) error {
	f.migrations = append(f.migrations, direction)
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed++
	return nil
}

func setup(t *testing.T) *fakeBackend {
	t.Helper()
	keys, err := apikeys.NewService(apikeys.NewMemoryRepository(), bcrypt.MinCost, logger.Discard())
	require.NoError(t, err)

	fake := &fakeBackend{keys: keys}
	appBackend = fake
	t.Cleanup(func() {
		appBackend = nil
		keyName = ""
		purgeAt = ""
		keysCreateCmd.Flags().Lookup("name").Changed = false
		purgeCmd.Flags().Lookup("at").Changed = false
	})
	return fake
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandStructure(t *testing.T) {
	for _, path := range [][]string{{"keys", "create"}, {"keys", "list"}, {"keys", "revoke"}, {"purge"}, {"migrate"}} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.NotEmpty(t, cmd.Short, path)
		assert.NotNil(t, cmd.RunE, path)
	}
}

func TestKeysLifecycle(t *testing.T) {
	fake := setup(t)

	out, err := run(t, "keys", "create", "--name", "deploy-bot")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	raw := lines[2]

	key, err := fake.keys.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "deploy-bot", key.Name)

	out, err = run(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, key.Prefix)
	assert.Contains(t, out, "active")
	assert.NotContains(t, out, raw)

	out, err = run(t, "keys", "revoke", key.Prefix)
	require.NoError(t, err)
	assert.Contains(t, out, "Revoked key "+key.Prefix)

	_, err = fake.keys.Authenticate(context.Background(), raw)
	assert.Error(t, err)

	out, err = run(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "revoked")
	assert.Positive(t, fake.closed)
}

func TestKeysCreateNeedsName(t *testing.T) {
	setup(t)
	_, err := run(t, "keys", "create")
	assert.ErrorContains(t, err, "name")
}

func TestPurge(t *testing.T) {
	fake := setup(t)

	out, err := run(t, "purge", "--at", "2026-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Purged 4 expired images")
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), fake.purgedAt)

	_, err = run(t, "purge", "--at", "yesterday")
	assert.Error(t, err)
}

func TestMigrate(t *testing.T) {
	fake := setup(t)

	_, err := run(t, "migrate", "up")
	require.NoError(t, err)
	_, err = run(t, "migrate", "down")
	require.NoError(t, err)
	assert.Equal(t, []string{"up", "down"}, fake.migrations)

	_, err = run(t, "migrate", "sideways")
	assert.Error(t, err)
	_, err = run(t, "migrate")
	assert.Error(t, err)
}
