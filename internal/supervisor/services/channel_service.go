// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package services

import (
	"context"
)

// ChannelRunner matches the event channel's supervised entry point.
type ChannelRunner interface {
	Run(ctx context.Context) error
}

// ChannelService runs the push event channel under supervision. The
// channel handles its own reconnect loop internally; suture only
// restarts it if Run returns with a non-context error.
type ChannelService struct {
	channel ChannelRunner
}

// NewChannelService wraps the channel as a suture service.
func NewChannelService(channel ChannelRunner) *ChannelService {
	return &ChannelService{channel: channel}
}

// Serve implements suture.Service.
func (s *ChannelService) Serve(ctx context.Context) error {
	return s.channel.Run(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *ChannelService) String() string {
	return "event-channel"
}
