// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/passengerlk/owner-session/pkg/credential"
)

type StoreType string

const (
	StoreMemory   StoreType = "memory"
	StoreValKey   StoreType = "valkey"
	StorePostgres StoreType = "postgres"
)

type ClientType string

const (
	ClientDefault ClientType = "default"
	ClientMTLS    ClientType = "mtls"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	Backend     Backend     `yaml:"backend"`
	Credentials Credentials `yaml:"credentials"`
	Client      Client      `yaml:"client"`
	HTTP        HTTPServer  `yaml:"http"`

	Database Database `yaml:"database"`
	ValKey   ValKey   `yaml:"valkey"`
	Migrate  Migrate  `yaml:"migrate"`
}

type Backend struct {
	BaseURL   string        `yaml:"baseURL" default:"http://localhost:8000"`
	LoginPath string        `yaml:"loginPath" default:"/bus-owners/web/login-or-register/"`
	Timeout   time.Duration `yaml:"timeout" default:"30s"`
}

// LoginURL is the page callers are redirected to once the session is lost.
func (b Backend) LoginURL() (string, error) {
	if _, err := url.Parse(b.BaseURL); err != nil {
		return "", fmt.Errorf("parsing backend base url: %w", err)
	}

	return url.JoinPath(b.BaseURL, b.LoginPath)
}

type Credentials struct {
	Store           StoreType     `yaml:"store" default:"memory"`
	AccessTTL       time.Duration `yaml:"accessTTL" default:"168h"`
	RefreshTTL      time.Duration `yaml:"refreshTTL" default:"336h"`
	PendingLoginTTL time.Duration `yaml:"pendingLoginTTL" default:"10m"`
	// HousekeepingInterval controls how often expired rows are purged from
	// the postgres store while the proxy runs.
	HousekeepingInterval time.Duration `yaml:"housekeepingInterval" default:"1h"`
}

func (c Credentials) Policy() credential.Policy {
	return credential.Policy{
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}
}

type Client struct {
	Type ClientType      `yaml:"type" default:"default"`
	MTLS *commoncfg.MTLS `yaml:"mtls"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	// Namespace separates the credentials of several owners sharing one
	// database.
	Namespace string `yaml:"namespace" default:"default"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"owner-session"`
}

type Migrate struct {
	Source string `yaml:"source" default:"embedded"`
}
