package perfcache

import (
	"errors"

	"goflare.io/perfcache/internal/config"
)

var (
	ErrKeyNotFound    = errors.New("key not found")
	ErrLoaderFailed   = errors.New("loader failed")
	ErrNilLoader      = errors.New("loader must not be nil")
	ErrNoWarmLoader   = errors.New("no warm loader registered")
	ErrInvalidEngine  = config.ErrUnknownEngine
	ErrCacheClosed    = errors.New("cache is closed")
	ErrInvalidMaxSize = config.ErrMaxSizeZero
)
