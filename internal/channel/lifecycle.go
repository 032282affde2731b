// Package channel manages the lifecycle of per-ticket channels: creation
// under the configured parent container, usability checks on stored channel
// references, and the startup sweep against corrupted bindings.
package channel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/modmail-router/internal/config"
	"github.com/spec-kit/modmail-router/internal/repository"
	"github.com/spec-kit/modmail-router/internal/transport"
	"github.com/spec-kit/modmail-router/pkg/util"
)

// Manager creates and validates ticket channels.
type Manager struct {
	directory transport.ChannelDirectory
	cfg       config.RoutingConfig
	logger    *zap.Logger
}

// NewManager constructs the lifecycle manager.
func NewManager(directory transport.ChannelDirectory, cfg config.RoutingConfig, logger *zap.Logger) *Manager {
	return &Manager{directory: directory, cfg: cfg, logger: logger}
}

// CreateTicketChannel creates a fresh channel for the user's ticket under the
// configured parent. A missing or non-container parent is a
// CONFIGURATION_ERROR surfaced to the initiating actor.
func (m *Manager) CreateTicketChannel(ctx context.Context, userID string) (string, error) {
	kind, err := m.directory.Resolve(ctx, m.cfg.ParentChannelID)
	if err != nil {
		return "", util.NewConfigurationError("support parent container unavailable", err)
	}
	if kind != transport.ChannelKindContainer {
		return "", util.NewConfigurationError("support parent is not a valid container", nil)
	}

	name := fmt.Sprintf("%s-%s", m.cfg.ChannelNamePrefix, userID)
	topic := fmt.Sprintf("Support ticket for user %s", userID)
	channelID, err := m.directory.CreateChannel(ctx, m.cfg.ParentChannelID, name, topic)
	if err != nil {
		return "", util.NewConfigurationError("failed to create ticket channel", err)
	}
	m.logger.Info("created ticket channel",
		zap.String("channel_id", channelID),
		zap.String("user_id", userID))
	return channelID, nil
}

// IsUsable reports whether a stored channel reference still denotes a leaf
// channel. Missing channels and references that degraded to a container id
// are both unusable.
func (m *Manager) IsUsable(ctx context.Context, channelID string) bool {
	kind, err := m.directory.Resolve(ctx, channelID)
	if err != nil {
		m.logger.Warn("channel resolution failed", zap.String("channel_id", channelID), zap.Error(err))
		return false
	}
	return kind == transport.ChannelKindText
}

// SweepStale deactivates every active ticket whose channel id equals the
// parent container id, a known corruption pattern. Run once at startup.
func (m *Manager) SweepStale(ctx context.Context, store repository.TicketStore) (int64, error) {
	swept, err := store.DeactivateByChannel(ctx, m.cfg.ParentChannelID)
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		m.logger.Warn("deactivated tickets bound to parent container",
			zap.Int64("count", swept),
			zap.String("parent_channel_id", m.cfg.ParentChannelID))
	}
	return swept, nil
}
