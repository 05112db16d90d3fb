package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LoadChannels reads the allow-list from the store into memory.
func (l *Ledger) LoadChannels(ctx context.Context) error {
	channels, err := l.store.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}

	l.chMu.Lock()
	l.channels = channels
	l.chMu.Unlock()

	log.Infof("Loaded %d required channel(s)", len(channels))
	return nil
}

// Channels returns a snapshot of the allow-list in insertion order.
func (l *Ledger) Channels() []string {
	l.chMu.RLock()
	defer l.chMu.RUnlock()
	return slices.Clone(l.channels)
}

// ValidateChannel checks the identifier format without touching the list.
func ValidateChannel(channel string) error {
	if !strings.HasPrefix(channel, "@") || len(channel) < 2 || strings.ContainsAny(channel, " \t\n") {
		return ErrInvalidChannelFormat
	}
	return nil
}

func (l *Ledger) AddChannel(ctx context.Context, channel string) error {
	channel = strings.TrimSpace(channel)
	if err := ValidateChannel(channel); err != nil {
		return err
	}

	l.chMu.Lock()
	defer l.chMu.Unlock()

	if slices.Contains(l.channels, channel) {
		return ErrDuplicateChannel
	}

	next := append(slices.Clone(l.channels), channel)
	if err := l.store.SaveChannels(ctx, next); err != nil {
		return fmt.Errorf("failed to save channels: %w", err)
	}
	l.channels = next

	log.Infof("Channel %s added", channel)
	return nil
}

// RemoveChannel drops the most recently added channel and returns it.
func (l *Ledger) RemoveChannel(ctx context.Context) (string, error) {
	l.chMu.Lock()
	defer l.chMu.Unlock()

	if len(l.channels) == 0 {
		return "", ErrEmptyList
	}

	removed := l.channels[len(l.channels)-1]
	next := slices.Clone(l.channels[:len(l.channels)-1])
	if err := l.store.SaveChannels(ctx, next); err != nil {
		return "", fmt.Errorf("failed to save channels: %w", err)
	}
	l.channels = next

	log.Infof("Channel %s removed", removed)
	return removed, nil
}
