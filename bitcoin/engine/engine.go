// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/chain"
	"github.com/BoostyLabs/txengine/bitcoin/feerefine"
	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/bitcoin/swap"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/config"
	"github.com/BoostyLabs/txengine/internal/logger"
)

// DefaultConfTarget defines confirmation target in blocks used for fee rate estimation.
const DefaultConfTarget int64 = 6

// FeeParams describes fee rate of the operation.
type FeeParams struct {
	// SatoshiPerVByte is estimated by the chain provider if nil.
	SatoshiPerVByte *big.Int
	// ConfTarget is used for provider estimation, DefaultConfTarget if not set.
	ConfTarget int64
}

// Funding describes fee-paying utxos of the operation.
type Funding struct {
	// Pool is loaded from the chain provider for strategy accounts if nil.
	Pool     []bitcoin.UTXO
	Strategy txbuilder.SpendStrategy
}

// Engine exposes fee estimation and building of every supported transaction kind.
// Calls are serialized, so selection always runs over a consistent pool snapshot.
type Engine struct {
	mu sync.Mutex

	networkParams *chaincfg.Params
	provider      chain.Provider
	signer        bitcoin.Signer
	accounts      bitcoin.AccountProvider
	builder       *txbuilder.TxBuilder
	refiner       *feerefine.Refiner
	batchRefiner  *feerefine.Refiner // measures locally, batch swaps spend outputs of not yet broadcast parents.
	composer      *swap.Composer
	log           logger.Logger

	postage  *big.Int
	waitOpts chain.WaitOptions
}

// New is a constructor for Engine.
func New(cfg *config.Config, provider chain.Provider, signer bitcoin.Signer, accounts bitcoin.AccountProvider, log logger.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if provider == nil || signer == nil || accounts == nil {
		return nil, errors.New("provider, signer and accounts are required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	networkParams, err := cfg.NetworkParams()
	if err != nil {
		return nil, err
	}

	var changeThreshold *big.Int
	if cfg.Fee.ChangeThreshold > 0 {
		changeThreshold = big.NewInt(cfg.Fee.ChangeThreshold)
	}

	builder := txbuilder.NewTxBuilder(networkParams, accounts, provider, changeThreshold)
	postage := big.NewInt(cfg.Inscription.Postage)
	if postage.Sign() <= 0 {
		postage = big.NewInt(bitcoin.DustAmount)
	}

	composer, err := swap.NewComposer(builder, accounts, provider, signer, log.Named("swap"), cfg.Swap.PaddingValue, cfg.Swap.PaddingCount)
	if err != nil {
		return nil, err
	}

	return &Engine{
		networkParams: networkParams,
		provider:      provider,
		signer:        signer,
		accounts:      accounts,
		builder:       builder,
		refiner:       feerefine.NewRefiner(signer, chain.NewMempoolMeasurer(provider), cfg.Fee.MaxRounds, log.Named("feerefine")),
		batchRefiner:  feerefine.NewRefiner(signer, feerefine.LocalMeasurer{}, cfg.Fee.MaxRounds, log.Named("feerefine")),
		composer:      composer,
		log:           log,
		postage:       postage,
		waitOpts: chain.WaitOptions{
			Timeout:      cfg.Chain.ConfirmTimeout,
			PollInterval: cfg.Chain.ConfirmPollInterval,
		},
	}, nil
}

// Open creates Engine over bitcoind json-rpc and zerolog logger, both configured by cfg.
// Returned close function shuts down the rpc client.
func Open(cfg *config.Config, signer bitcoin.Signer, accounts bitcoin.AccountProvider) (*Engine, func(), error) {
	if cfg == nil {
		cfg = config.Default()
	}

	networkParams, err := cfg.NetworkParams()
	if err != nil {
		return nil, nil, err
	}

	provider, err := chain.NewRPCProvider(chain.RPCConfig{
		Host:       cfg.Chain.Host,
		User:       cfg.Chain.User,
		Pass:       cfg.Chain.Pass,
		DisableTLS: cfg.Chain.DisableTLS,
	}, networkParams)
	if err != nil {
		return nil, nil, err
	}

	log := logger.New("txengine", logger.WithLevel(cfg.Log.Level), logger.WithPretty(cfg.Log.Pretty))
	e, err := New(cfg, provider, signer, accounts, log)
	if err != nil {
		provider.Close()
		return nil, nil, err
	}

	log.Infof("engine opened on %s via %s", networkParams.Name, cfg.Chain.Host)

	return e, provider.Close, nil
}

// NetworkParams returns engine network params.
func (e *Engine) NetworkParams() *chaincfg.Params {
	return e.networkParams
}

// Sign signs wallet inputs of the skeleton and extracts network transaction.
func (e *Engine) Sign(ctx context.Context, skeleton *txbuilder.Skeleton) (*wire.MsgTx, error) {
	signed, err := e.signer.SignAll(ctx, skeleton.Packet, true)
	if err != nil {
		return nil, err
	}

	return psbt.Extract(signed)
}

// Broadcast checks transaction against mempool policy and submits it.
// Returns MempoolRejectionError if node policy rejects the transaction,
// runes.ErrCenotaph if its runestone would burn runes.
func (e *Engine) Broadcast(ctx context.Context, tx *wire.MsgTx) (string, error) {
	if err := verifyRunestone(tx); err != nil {
		e.log.Errorf("broadcast %s: %v", tx.TxHash(), err)
		return "", err
	}

	txID, err := chain.Submit(ctx, e.provider, tx)
	if err != nil {
		e.log.Errorf("broadcast %s: %v", tx.TxHash(), err)
		return "", err
	}

	e.log.Infof("broadcast %s", txID)

	return txID, nil
}

// verifyRunestone returns runes.ErrCenotaph if transaction carries runestone that burns input runes.
func verifyRunestone(tx *wire.MsgTx) error {
	for _, txOut := range tx.TxOut {
		if !runes.IsPossibleRunestone(txOut.PkScript) {
			continue
		}

		runestone, err := runes.ParseRunestone(txOut.PkScript)
		if err != nil {
			return fmt.Errorf("%w: %v", runes.ErrCenotaph, err)
		}

		if err = runestone.Verify(len(tx.TxOut)); err != nil {
			return fmt.Errorf("%w: %w", runes.ErrCenotaph, err)
		}

		// only the first runestone output is interpreted.
		return nil
	}

	return nil
}

// WaitForConfirmation waits for the transaction confirmation with configured timeout and poll interval.
// Returns false without error on timeout.
func (e *Engine) WaitForConfirmation(ctx context.Context, txHash string) (bool, error) {
	return chain.WaitForConfirmation(ctx, e.provider, txHash, e.waitOpts)
}

// estimate refines fee of the plan.
func (e *Engine) estimate(ctx context.Context, plan feerefine.BuildFunc, rate *big.Int) (*feerefine.Estimate, error) {
	return e.refiner.Estimate(ctx, plan, rate)
}

// feeRate returns operation fee rate, estimated by the chain provider if not set.
func (e *Engine) feeRate(ctx context.Context, params FeeParams) (*big.Int, error) {
	if params.SatoshiPerVByte != nil {
		if params.SatoshiPerVByte.Sign() <= 0 {
			return nil, errors.New("fee rate must be positive")
		}

		return params.SatoshiPerVByte, nil
	}

	confTarget := params.ConfTarget
	if confTarget <= 0 {
		confTarget = DefaultConfTarget
	}

	rate, err := e.provider.FeeRate(ctx, confTarget)
	if err != nil {
		return nil, err
	}

	e.log.Debugf("estimated fee rate %s sat/vB for %d blocks", rate, confTarget)

	return rate, nil
}

// pool returns funding pool, loaded from the chain provider for strategy accounts if not set.
func (e *Engine) pool(ctx context.Context, funding Funding) ([]bitcoin.UTXO, error) {
	if funding.Pool != nil {
		return funding.Pool, nil
	}

	pool := make([]bitcoin.UTXO, 0)
	for _, addressType := range funding.Strategy.OrDefault().AddressTypes {
		account, err := e.accounts.Account(addressType)
		if err != nil {
			if errors.Is(err, bitcoin.ErrNoAccount) {
				continue
			}

			return nil, err
		}

		utxos, err := e.provider.UTXOs(ctx, account.Address)
		if err != nil {
			return nil, err
		}

		for _, utxo := range utxos {
			if utxo.Address == "" {
				utxo.Address = account.Address
			}
			if !utxo.AddressType.IsKnown() {
				utxo.AddressType = addressType
			}

			pool = append(pool, utxo)
		}
	}

	e.log.Debugf("loaded %d utxos", len(pool))

	return pool, nil
}

// resolve returns fee rate and funding pool of the operation.
func (e *Engine) resolve(ctx context.Context, fee FeeParams, funding Funding) (*big.Int, []bitcoin.UTXO, error) {
	rate, err := e.feeRate(ctx, fee)
	if err != nil {
		return nil, nil, err
	}

	pool, err := e.pool(ctx, funding)
	if err != nil {
		return nil, nil, err
	}

	return rate, pool, nil
}
