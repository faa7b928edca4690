package snapshotters

import (
	"net/http"
	"time"

	"github.com/brettbedarf/vfs/config"
)

type BuiltInSourceType = string

const (
	LocalSourceType BuiltInSourceType = "local"
	HTTPSourceType  BuiltInSourceType = "http"
)

// RegisterBuiltins registers all built-in providers by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, cfg *config.Config, types ...BuiltInSourceType) {
	if len(types) == 0 {
		types = append(types, LocalSourceType, HTTPSourceType)
	}

	for _, key := range types {
		switch key {
		case LocalSourceType:
			r.Register(LocalSourceType, &LocalProvider{HashMaxSize: cfg.HashMaxSize})
		case HTTPSourceType:
			client := &http.Client{Timeout: time.Duration(cfg.HTTPTimeout * float64(time.Second))}
			r.Register(HTTPSourceType, &HTTPProvider{Client: client})
		}
	}
}
