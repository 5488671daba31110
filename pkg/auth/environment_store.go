package auth

import (
	"os"
	"time"
)

// TokenEnvVars are read in order by EnvironmentStore
var TokenEnvVars = []string{"ROLESYNC_GITHUB_TOKEN", "GITHUB_TOKEN"}

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only and only knows the default credential.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

// Retrieve returns the token from the first set variable in TokenEnvVars
func (e *EnvironmentStore) Retrieve(name string) (*Credential, error) {
	if name != "" && name != DefaultName {
		return nil, ErrCredentialsNotFound
	}

	for _, key := range TokenEnvVars {
		if token := os.Getenv(key); token != "" {
			return &Credential{
				Name:         DefaultName,
				Token:        token,
				LastModified: time.Time{},
			}, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List returns the default credential if a variable is set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve(DefaultName)
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

// Exists checks if an environment token is set
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}
