package config

import (
	"fmt"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

func MakeConnStr(conf Database) (string, error) {
	host, err := loadSecret("db host", conf.Host)
	if err != nil {
		return "", err
	}

	user, err := loadSecret("db user", conf.User)
	if err != nil {
		return "", err
	}

	password, err := loadSecret("db password", conf.Password)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s",
		host, user, password, conf.Name, conf.Port), nil
}

// ValKeyAuth holds the resolved valkey address and credentials.
type ValKeyAuth struct {
	Address  string
	Username string
	Password string
}

func LoadValKeyAuth(conf ValKey) (ValKeyAuth, error) {
	host, err := loadSecret("valkey host", conf.Host)
	if err != nil {
		return ValKeyAuth{}, err
	}

	user, err := loadSecret("valkey username", conf.User)
	if err != nil {
		return ValKeyAuth{}, err
	}

	password, err := loadSecret("valkey password", conf.Password)
	if err != nil {
		return ValKeyAuth{}, err
	}

	return ValKeyAuth{Address: host, Username: user, Password: password}, nil
}

// loadSecret treats an unset reference as empty so optional credentials can
// be left out of the file.
func loadSecret(what string, ref commoncfg.SourceRef) (string, error) {
	if ref.Source == "" && ref.Value == "" {
		return "", nil
	}

	value, err := commoncfg.LoadValueFromSourceRef(ref)
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", what, err)
	}

	return string(value), nil
}
