package cmd

import (
	"bytes"
	"testing"
	"text/template"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/brocaar/chirpstack-fuota-node/internal/config"
)

func TestConfigTemplate(t *testing.T) {
	assert := require.New(t)

	var c config.Config
	c.Redis.Servers = []string{"localhost:6379"}
	c.FUOTA.FPort = 201
	c.FUOTA.OutputDir = "/var/lib/chirpstack-fuota-node"

	var buf bytes.Buffer
	tmpl := template.Must(template.New("config").Parse(configTemplate))
	assert.NoError(tmpl.Execute(&buf, &c))

	v := viper.New()
	v.SetConfigType("toml")
	assert.NoError(v.ReadConfig(&buf))
	assert.Equal(201, v.GetInt("fuota.fport"))
	assert.Equal("/var/lib/chirpstack-fuota-node", v.GetString("fuota.output_dir"))
	assert.Equal([]string{"localhost:6379"}, v.GetStringSlice("redis.servers"))
}
