package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultServer = "http://localhost:8080"
	serverEnv     = "VSCTL_SERVER"
	configName    = ".vsctl.yaml"
)

// fileConfig содержимое ~/.vsctl.yaml.
type fileConfig struct {
	Server string `yaml:"server"`
}

// resolveServer выбирает адрес сервиса: флаг --server, затем VSCTL_SERVER,
// затем ~/.vsctl.yaml, иначе адрес по умолчанию.
func resolveServer(flag, home string) (string, error) {
	if flag != "" {
		return normalizeServer(flag), nil
	}
	if env := os.Getenv(serverEnv); env != "" {
		return normalizeServer(env), nil
	}

	if home != "" {
		fc, err := loadFileConfig(filepath.Join(home, configName))
		if err != nil {
			return "", err
		}
		if fc != nil && fc.Server != "" {
			return normalizeServer(fc.Server), nil
		}
	}

	return defaultServer, nil
}

// loadFileConfig возвращает nil, если файла нет.
func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &fc, nil
}

func normalizeServer(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
