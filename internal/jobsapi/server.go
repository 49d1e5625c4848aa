package jobsapi

import (
	"net/http"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// NewServer builds the HTTP server for h from cfg. TLS files, when enabled,
// are passed to ListenAndServeTLS by the caller.
func NewServer(cfg *config.JobsConfig, h http.Handler) *http.Server {
	validation.AssertNotNil(cfg, "jobsapi", "config")

	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}
