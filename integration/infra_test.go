//go:build integration

package integration_test

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/passengerlk/owner-session/internal/config"
	"github.com/passengerlk/owner-session/internal/dbtest/postgrestest"
	"github.com/passengerlk/owner-session/internal/dbtest/valkeytest"
)

type closeFunc func(ctx context.Context)

type infraStat struct {
	PostgresPort   nat.Port
	ValKeyPort     nat.Port
	ConfigFilePath string
	Procdir        string
	Bindir         string
	Cfg            config.Config

	closeFuncs []closeFunc
}

func initInfra(t *testing.T, name, backendURL string) *infraStat {
	t.Helper()

	// The config is read from $PWD/config.yaml, so each test gets its own
	// working directory.
	wd, err := os.Getwd()
	require.NoError(t, err, "failed to get wd")

	istat := &infraStat{
		Bindir:  wd,
		Procdir: filepath.Join(wd, name+"-test"),
	}
	istat.ConfigFilePath = filepath.Join(istat.Procdir, "config.yaml")

	require.NoError(t, os.MkdirAll(istat.Procdir, fs.ModePerm), "failed to create a dir for the process")
	require.NoError(t, os.WriteFile(istat.ConfigFilePath, []byte(validConfig), fs.ModePerm), "failed to write config file")
	require.NoError(t, commoncfg.LoadConfig(&istat.Cfg, nil, istat.Procdir), "failed to load config")

	istat.Cfg.Backend.BaseURL = backendURL
	istat.Cfg.HTTP.Address = "unix://" + filepath.Join(istat.Procdir, name+".sock")

	t.Cleanup(func() { istat.Close(context.WithoutCancel(t.Context())) })

	return istat
}

func (istat *infraStat) PreparePostgres(t *testing.T) {
	t.Helper()

	_, pgPort, pgTerminate := postgrestest.Start(t.Context())

	istat.PostgresPort = pgPort
	istat.closeFuncs = append(istat.closeFuncs, pgTerminate)

	istat.Cfg.Credentials.Store = config.StorePostgres
	istat.Cfg.Database.Name = postgrestest.DBName
	istat.Cfg.Database.User = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBUser}
	istat.Cfg.Database.Password = commoncfg.SourceRef{Source: "embedded", Value: postgrestest.DBPassword}
	istat.Cfg.Database.Host = commoncfg.SourceRef{Source: "embedded", Value: "localhost"}
	istat.Cfg.Database.Port = pgPort.Port()
}

func (istat *infraStat) PrepareValKey(t *testing.T) {
	t.Helper()

	vk := valkeytest.Start(t.Context())

	istat.ValKeyPort = vk.Port
	istat.closeFuncs = append(istat.closeFuncs, vk.Terminate)

	istat.Cfg.Credentials.Store = config.StoreValKey
	istat.Cfg.ValKey.Host = commoncfg.SourceRef{Source: "embedded", Value: vk.Address()}
}

// PrepareConfig writes the config for the process into ConfigFilePath.
func (istat *infraStat) PrepareConfig(t *testing.T) {
	t.Helper()

	cfgMap := make(map[string]any)
	require.NoError(t, mapstructure.Decode(istat.Cfg, &cfgMap), "failed to decode mapstructure")

	data, err := yaml.Marshal(cfgMap)
	require.NoError(t, err, "failed to encode config")
	require.NoError(t, os.WriteFile(istat.ConfigFilePath, data, fs.ModePerm), "failed to write config")
}

// Run executes one CLI command in the process directory.
func (istat *infraStat) Run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, filepath.Join(istat.Bindir, binary), args...)
	cmd.Dir = istat.Procdir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		t.Logf("%v stderr: %s", args, stderr.String())
	}

	return stdout.String(), err
}

func (istat *infraStat) Close(ctx context.Context) {
	os.RemoveAll(istat.Procdir)

	for _, closeFn := range istat.closeFuncs {
		closeFn(ctx)
	}
}
