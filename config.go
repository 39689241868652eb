// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package exchange

import (
	"github.com/sirupsen/logrus"
)

// config is shared by a Behaviour and the handlers it creates.
type config struct {
	logger    logrus.FieldLogger
	keepAlive KeepAlive
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:    logrus.StandardLogger(),
		keepAlive: KeepAliveYes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a Behaviour or a Handler.
type Option func(*config)

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithKeepAlive overrides the keep-alive policy reported by handlers.
// Defaults to KeepAliveYes.
func WithKeepAlive(k KeepAlive) Option {
	return func(c *config) {
		c.keepAlive = k
	}
}
