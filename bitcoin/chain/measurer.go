// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// MempoolMeasurer measures transaction virtual size by node mempool policy check.
type MempoolMeasurer struct {
	provider Provider
}

// NewMempoolMeasurer is a constructor for MempoolMeasurer.
func NewMempoolMeasurer(provider Provider) *MempoolMeasurer {
	return &MempoolMeasurer{provider: provider}
}

// MeasureVSize returns virtual size reported by mempool acceptance test,
// MempoolRejectionError if transaction is rejected.
func (m *MempoolMeasurer) MeasureVSize(ctx context.Context, tx *wire.MsgTx) (int64, error) {
	result, err := m.provider.TestMempoolAccept(ctx, tx)
	if err != nil {
		return 0, err
	}

	if err = result.Err(); err != nil {
		return 0, err
	}

	return result.VSize, nil
}
