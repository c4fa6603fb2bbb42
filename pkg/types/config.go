package types

import "errors"

// Config holds the store location for Store.Open and the maintenance
// commands. StoreDir is the root under which blobs (files/), the metadata
// database, and the consumer registry live.
type Config struct {
	StoreDir string `json:"store_dir" yaml:"store_dir"`
}

// Config validation errors.
var (
	ErrStoreDirEmpty = errors.New("store directory must not be empty")
)

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.StoreDir == "" {
		return ErrStoreDirEmpty
	}
	return nil
}
