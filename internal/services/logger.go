// Package services holds the shared bits of the service layer: the
// identifier contract and the tagged logger every long-running
// component logs through.
package services

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceIdentifier names a long-running component for logs and
// lifecycle wiring.
type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger tags every event with the owning service's name so
// interleaved logs stay attributable.
type ServiceLogger struct {
	logger zerolog.Logger
}

func NewServiceLogger(svc ServiceIdentifier) *ServiceLogger {
	return NamedLogger(svc.ID())
}

// NamedLogger builds a service logger for components that are not
// services themselves, like the HTTP server or the snapshot store.
func NamedLogger(name string) *ServiceLogger {
	return &ServiceLogger{
		logger: log.With().Str("service", name).Logger(),
	}
}

func (l *ServiceLogger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *ServiceLogger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *ServiceLogger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *ServiceLogger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *ServiceLogger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}
