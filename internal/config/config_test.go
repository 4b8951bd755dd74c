package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/datacomm/communicator"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dsbserve.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport: websocket
listen: ":9000"
keys: ulid
source:
  kind: delta
  path: ./profile.share
  table: share.schema.trips
  columns: [id, fare]
  limit: 1000
  timeout: 45s
filter: fare > 10
sort:
  - fare desc
  - id
metrics:
  listen: ":9102"
allowScripts: true
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, TransportWebsocket, c.Transport)
	assert.Equal(t, communicator.DefaultMinPushSize, c.MinPushSize)
	assert.Equal(t, []string{"id", "fare"}, c.Source.Columns)
	assert.Equal(t, 45*time.Second, c.Source.Timeout)
	assert.Equal(t, []string{"fare desc", "id"}, c.Sort)
	assert.Equal(t, "/metrics", c.Metrics.Path)
	assert.True(t, c.AllowScripts)
	assert.False(t, Default().AllowScripts)
	assert.Equal(t, "default:info", c.LogOptions().OutputLevels)

	k1, k2 := c.KeyGenerator().NextKey(), c.KeyGenerator().NextKey()
	assert.Len(t, k1, 26)
	assert.NotEqual(t, k1, k2)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: [\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	c := Default()
	c.Transport = "carrier-pigeon"
	c.MinPushSize = -1
	c.Keys = "uuid"
	c.Filter = "a = 1"
	c.Script = "true"
	c.Sort = []string{"a sideways"}
	c.Source = Source{Kind: "bolt", Limit: -5}
	c.Log.OutputLevels = "default:loud"

	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 9)
}

func TestDefaultsNeedASource(t *testing.T) {
	c := Default()
	require.ErrorIs(t, c.Validate(), ErrInvalid)

	c.Source.Path = "people.csv"
	require.NoError(t, c.Validate())
	assert.Equal(t, "1", c.KeyGenerator().NextKey())

	c.Transport = TransportTCP
	c.Listen = ""
	require.ErrorIs(t, c.Validate(), ErrInvalid)
}
