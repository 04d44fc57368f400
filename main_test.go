package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dselans/ripgzip/config"
)

func TestServeKeepsErrorChain(t *testing.T) {
	cfg := config.Default()
	cfg.TOML.Server.ListenAddress = ""

	err := serve(context.Background(), cfg)
	require.Error(t, err)

	assert.True(t, strings.HasPrefix(err.Error(), "unable to create server: "))
	assert.Equal(t, "server.listen_address cannot be empty", errors.Cause(err).Error())
}

func TestDecompressKeepsErrorChain(t *testing.T) {
	dir := t.TempDir()

	cfg := config.Default()
	cfg.TOML.Config.CheckpointFile = filepath.Join(dir, "cp.json")
	cfg.CLI.Decompress.Files = []string{filepath.Join(dir, "a.gz")}

	require.NoError(t, os.WriteFile(cfg.TOML.Config.CheckpointFile, []byte("{broken"), 0644))

	err := decompress(context.Background(), cfg)
	require.Error(t, err)

	assert.True(t, strings.HasPrefix(err.Error(), "unable to create runner: "))

	var syntaxErr *json.SyntaxError
	assert.True(t, errors.As(err, &syntaxErr), "%v", err)
}
