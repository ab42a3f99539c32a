package feeders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receiverSection struct {
	Type    string            `yaml:"type" json:"type" toml:"type"`
	Params  map[string]string `yaml:"params" json:"params" toml:"params"`
	Workers int               `yaml:"workers" json:"workers" toml:"workers"`
}

type document struct {
	Name     string          `yaml:"name" json:"name" toml:"name"`
	Receiver receiverSection `yaml:"receiver" json:"receiver" toml:"receiver"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const yamlDoc = `
name: edge
receiver:
  type: HttpReceiver
  workers: 2
  params:
    address: 127.0.0.1:0
`

const jsonDoc = `{
  "name": "edge",
  "receiver": {"type": "HttpReceiver", "workers": 2, "params": {"address": "127.0.0.1:0"}}
}`

const tomlDoc = `
name = "edge"

[receiver]
type = "HttpReceiver"
workers = 2

[receiver.params]
address = "127.0.0.1:0"
`

func TestFeeders_Feed(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "server.yaml", content: yamlDoc},
		{name: "yml", file: "server.yml", content: yamlDoc},
		{name: "json", file: "server.json", content: jsonDoc},
		{name: "toml", file: "server.toml", content: tomlDoc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feeder, err := ForFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			var doc document
			require.NoError(t, feeder.Feed(&doc))
			assert.Equal(t, "edge", doc.Name)
			assert.Equal(t, "HttpReceiver", doc.Receiver.Type)
			assert.Equal(t, 2, doc.Receiver.Workers)
			assert.Equal(t, "127.0.0.1:0", doc.Receiver.Params["address"])
		})
	}
}

func TestFeeders_FeedKey(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "server.yaml", content: yamlDoc},
		{name: "json", file: "server.json", content: jsonDoc},
		{name: "toml", file: "server.toml", content: tomlDoc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feeder, err := ForFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			var section receiverSection
			require.NoError(t, feeder.FeedKey("receiver", &section))
			assert.Equal(t, "HttpReceiver", section.Type)
			assert.Equal(t, "127.0.0.1:0", section.Params["address"])

			var missing receiverSection
			require.NoError(t, feeder.FeedKey("absent", &missing))
			assert.Empty(t, missing.Type)
		})
	}
}

func TestFeeders_MissingFile(t *testing.T) {
	for _, name := range []string{"missing.yaml", "missing.json", "missing.toml"} {
		feeder, err := ForFile(filepath.Join(t.TempDir(), name))
		require.NoError(t, err)
		assert.Error(t, feeder.FeedKey("receiver", &receiverSection{}), name)
	}
}

func TestForFile_UnsupportedFormat(t *testing.T) {
	_, err := ForFile("server.ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

type envTarget struct {
	Name    string `env:"FEEDERS_TEST_NAME"`
	Workers int    `env:"FEEDERS_TEST_WORKERS"`
}

func TestEnvFeeder(t *testing.T) {
	t.Setenv("FEEDERS_TEST_NAME", "from-env")
	t.Setenv("FEEDERS_TEST_WORKERS", "4")

	var target envTarget
	require.NoError(t, NewEnvFeeder().Feed(&target))
	assert.Equal(t, "from-env", target.Name)
	assert.Equal(t, 4, target.Workers)
}

func TestDotEnvFeeder(t *testing.T) {
	path := writeFile(t, ".env", "FEEDERS_TEST_NAME=dotenv\nFEEDERS_TEST_WORKERS=3\n")

	var target envTarget
	require.NoError(t, NewDotEnvFeeder(path).Feed(&target))
	assert.Equal(t, "dotenv", target.Name)
	assert.Equal(t, 3, target.Workers)
}
