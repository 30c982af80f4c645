package probe

import (
	log "github.com/rs/zerolog"
)

type Options struct {
	frequency int
	logger    log.Logger
}

type Option func(p *Probe)

func WithFrequency(hz int) Option {
	return func(p *Probe) {
		p.frequency = hz
	}
}

func WithLogger(logger log.Logger) Option {
	return func(p *Probe) {
		p.logger = logger
	}
}
