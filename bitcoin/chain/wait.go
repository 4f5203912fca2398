// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultConfirmTimeout defines how long confirmation is awaited by default.
	DefaultConfirmTimeout = 60 * time.Second
	// DefaultConfirmPollInterval defines default delay between status checks.
	DefaultConfirmPollInterval = 5 * time.Second
)

// WaitOptions configures WaitForConfirmation.
type WaitOptions struct {
	Timeout          time.Duration
	PollInterval     time.Duration
	MinConfirmations int64
}

func (o WaitOptions) orDefault() WaitOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultConfirmTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultConfirmPollInterval
	}
	if o.MinConfirmations <= 0 {
		o.MinConfirmations = 1
	}

	return o
}

// WaitForConfirmation polls transaction status until it reaches required confirmations.
// Returns false without error when timeout is reached, callers decide how to fall back.
// Unknown transactions keep being polled, other provider errors are returned immediately.
func WaitForConfirmation(ctx context.Context, provider Provider, txHash string, opts WaitOptions) (bool, error) {
	opts = opts.orDefault()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := provider.TxStatus(ctx, txHash)
		switch {
		case errors.Is(err, ErrTxNotFound):
		case err != nil:
			return false, err
		case status != nil && status.Found && status.Confirmations >= opts.MinConfirmations:
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		case <-ticker.C:
		}
	}
}
