// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// Submit checks transaction against mempool policy and broadcasts it if allowed.
// Returns MempoolRejectionError with node reject reason if transaction is not allowed.
func Submit(ctx context.Context, provider Provider, tx *wire.MsgTx) (string, error) {
	result, err := provider.TestMempoolAccept(ctx, tx)
	if err != nil {
		return "", err
	}

	if err = result.Err(); err != nil {
		return "", err
	}

	return provider.Broadcast(ctx, tx)
}
