package artifact

import (
	"context"

	"github.com/rs/zerolog"
)

// Tee saves to a primary store and copies every saved page to sinks.
// Exists and Load only consult the primary; sink failures are logged and
// never fail the save.
type Tee struct {
	primary Store
	sinks   []Sink
	logger  zerolog.Logger
}

// NewTee composes a primary store with sinks.
func NewTee(primary Store, logger zerolog.Logger, sinks ...Sink) *Tee {
	return &Tee{primary: primary, sinks: sinks, logger: logger}
}

// Exists implements Store.
func (t *Tee) Exists(ctx context.Context, key Key) (bool, error) {
	return t.primary.Exists(ctx, key)
}

// Save implements Store.
func (t *Tee) Save(ctx context.Context, key Key, content string) error {
	if err := t.primary.Save(ctx, key, content); err != nil {
		return err
	}
	for _, s := range t.sinks {
		if err := s.Save(ctx, key, content); err != nil {
			t.logger.Warn().Err(err).Str("key", key.String()).Msg("Mirror save failed")
		}
	}
	return nil
}

// Load implements Loader when the primary does.
func (t *Tee) Load(ctx context.Context, key Key) (string, error) {
	l, ok := t.primary.(Loader)
	if !ok {
		return "", ErrNotFound
	}
	return l.Load(ctx, key)
}
