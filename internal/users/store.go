// Package users supplies the registered user roster with brokerage
// credentials and risk tier. Registration and authentication live elsewhere;
// the pipeline only consumes the list.
package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"karli/internal/gateway/broker"
	"karli/internal/logger"
)

// User is one registered account to fan the action map out to.
type User struct {
	Username        string `toml:"username"`
	RiskTier        string `toml:"risk_tier"`
	BrokerAPIKey    string `toml:"broker_api_key"`
	BrokerAPISecret string `toml:"broker_api_secret"`
}

// Credentials returns the user's brokerage key pair.
func (u User) Credentials() broker.Credentials {
	return broker.Credentials{APIKey: u.BrokerAPIKey, APISecret: u.BrokerAPISecret}
}

// Store lists the users a pipeline run fans out to.
type Store interface {
	ListUsersWithCredentials(ctx context.Context) ([]User, error)
}

type rosterFile struct {
	Users []User `toml:"users"`
}

// FileStore reads the roster from a YAML file and optionally hot-reloads it
// on change, so adding a user does not need a restart.
type FileStore struct {
	mu    sync.RWMutex
	users []User
	v     *viper.Viper
}

// NewFileStore loads the roster at path. With watch enabled the file is
// re-read whenever it changes; a broken edit keeps the last good roster.
func NewFileStore(path string, watch bool) (*FileStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	s := &FileStore{v: v}
	if err := s.reload(); err != nil {
		return nil, err
	}
	if watch {
		v.OnConfigChange(func(evt fsnotify.Event) {
			if err := v.ReadInConfig(); err != nil {
				logger.Warnf("roster reload failed, keeping previous roster: %v", err)
				return
			}
			if err := s.reload(); err != nil {
				logger.Warnf("roster reload failed, keeping previous roster: %v", err)
				return
			}
			logger.Infof("roster reloaded (%s)", evt.Name)
		})
		v.WatchConfig()
	}
	return s, nil
}

func (s *FileStore) reload() error {
	var file rosterFile
	if err := s.v.Unmarshal(&file, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return fmt.Errorf("parsing roster: %w", err)
	}
	for i, u := range file.Users {
		if u.Username == "" {
			return fmt.Errorf("roster entry %d has no username", i)
		}
	}
	s.mu.Lock()
	s.users = file.Users
	s.mu.Unlock()
	return nil
}

func (s *FileStore) ListUsersWithCredentials(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, len(s.users))
	copy(out, s.users)
	return out, nil
}
