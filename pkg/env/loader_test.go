package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeEnv(t, `# Comment
BK_TEST_FOO=bar
BK_TEST_BAZ="quoted value"
BK_TEST_EMPTY=
BK_TEST_SINGLE='single'
`)

	l := NewLoader()
	require.NoError(t, l.Load(path))
	assert.Equal(t, "bar", l.Get("BK_TEST_FOO"))
	assert.Equal(t, "quoted value", l.Get("BK_TEST_BAZ"))
	assert.Equal(t, "", l.Get("BK_TEST_EMPTY"))
	assert.Equal(t, "single", l.Get("BK_TEST_SINGLE"))
	assert.Len(t, l.All(), 4)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	l := NewLoader()
	assert.Error(t, l.Load("/nonexistent/.env"))
	assert.NoError(t, l.LoadIfExists("/nonexistent/.env"))
}

func TestLoader_ProcessEnvWins(t *testing.T) {
	path := writeEnv(t, "BK_TEST_KEY=from_file\n")
	l := NewLoader()
	require.NoError(t, l.Load(path))
	assert.Equal(t, "from_file", l.Get("BK_TEST_KEY"))

	t.Setenv("BK_TEST_KEY", "from_os")
	assert.Equal(t, "from_os", l.Get("BK_TEST_KEY"))
	assert.Equal(t, "", l.Get("BK_TEST_MISSING"))
}

func TestLoader_GetRequired(t *testing.T) {
	l := NewLoader()
	t.Setenv("BK_TEST_EXISTS", "value")

	v, err := l.GetRequired("BK_TEST_EXISTS")
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	_, err = l.GetRequired("BK_TEST_MISSING")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BK_TEST_MISSING")
	assert.Contains(t, errors.FlattenHints(err), "export BK_TEST_MISSING")
}

func TestLoader_GetWithDefaultAndBool(t *testing.T) {
	l := NewLoader()
	t.Setenv("BK_TEST_FLAG", "TRUE")
	t.Setenv("BK_TEST_JUNK", "maybe")

	assert.Equal(t, "default", l.GetWithDefault("BK_TEST_MISSING", "default"))
	assert.True(t, l.GetBool("BK_TEST_FLAG"))
	assert.False(t, l.GetBool("BK_TEST_JUNK"))
	assert.False(t, l.GetBool("BK_TEST_MISSING"))
}

func TestLoader_Credentials(t *testing.T) {
	path := writeEnv(t, `CKAN_SITE=https://data.wprdc.org/
CKAN_API_KEY=abcd-1234-efgh-5678
SLACK_WEBHOOK_URL=https://hooks.slack.com/services/T0/B0/XYZ
BEEKEEPER_PRODUCTION=1
`)
	for _, k := range []string{KeySite, KeyAPIKey, KeyWebhook, KeyProduction} {
		t.Setenv(k, "")
	}

	l := NewLoader()
	require.NoError(t, l.Load(path))
	creds, err := l.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "https://data.wprdc.org", creds.Site)
	assert.Equal(t, "abcd-1234-efgh-5678", creds.APIKey)
	assert.True(t, creds.Production)
	assert.Equal(t, []string{creds.APIKey, creds.WebhookURL}, creds.Secrets())
}

func TestLoader_Credentials_NoSite(t *testing.T) {
	t.Setenv(KeySite, "")
	_, err := NewLoader().Credentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeySite)
}
