// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package commitreveal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/looplab/fsm"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/chain"
	"github.com/BoostyLabs/txengine/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/logger"
	"github.com/BoostyLabs/txengine/internal/numbers"
)

// DefaultPostage defines default value of the inscribed output.
const DefaultPostage int64 = bitcoin.DustAmount

// commitOutputIndex defines index of the commitment output in commit transaction.
const commitOutputIndex uint32 = 0

// Inscription lifecycle states.
const (
	StateUncommitted = "uncommitted"
	StateCommitted   = "committed"
	StateRevealed    = "revealed"
)

// Inscription lifecycle events.
const (
	EventCommit = "commit"
	EventReveal = "reveal"
)

var (
	// ErrCommitmentMismatch defines that commit output does not lock the expected commitment.
	ErrCommitmentMismatch = errors.New("commit output does not match commitment")
	// ErrInvalidState defines that operation is not allowed in the current inscription state.
	ErrInvalidState = errors.New("invalid inscription state")
)

// TxOutFetcher provides unspent outputs visible for chain-state queries.
type TxOutFetcher interface {
	TxOut(ctx context.Context, txHash string, index uint32) (*wire.TxOut, error)
}

// Params describes inscription to create.
type Params struct {
	Inscription     *inscriptions.Inscription
	Destination     string   // inscription receiver address.
	Postage         *big.Int // inscribed output value, DefaultPostage if nil.
	SatoshiPerVByte *big.Int
	Pool            []bitcoin.UTXO // commit fee-paying utxos.
	Strategy        txbuilder.SpendStrategy
}

// Inscriber drives single inscription through commit and reveal transactions.
type Inscriber struct {
	builder  *txbuilder.TxBuilder
	accounts bitcoin.AccountProvider
	outputs  TxOutFetcher
	log      logger.Logger

	params     Params
	postage    *big.Int
	commitment *inscriptions.Commitment
	machine    *fsm.FSM
	commitTxID string
}

// NewInscriber returns Inscriber with commitment locked by the wallet taproot key.
func NewInscriber(builder *txbuilder.TxBuilder, accounts bitcoin.AccountProvider, outputs TxOutFetcher, log logger.Logger, params Params) (*Inscriber, error) {
	if params.Inscription == nil {
		return nil, errors.New("no inscription provided")
	}
	if params.SatoshiPerVByte == nil || params.SatoshiPerVByte.Sign() <= 0 {
		return nil, errors.New("fee rate must be positive")
	}
	if log == nil {
		log = logger.NewNop()
	}

	account, err := accounts.Account(bitcoin.AddressTypeTaproot)
	if err != nil {
		return nil, err
	}

	commitment, err := inscriptions.NewCommitment(params.Inscription, account.PublicKey, builder.NetworkParams())
	if err != nil {
		return nil, err
	}

	postage := params.Postage
	if postage == nil {
		postage = big.NewInt(DefaultPostage)
	}

	inscriber := &Inscriber{
		builder:    builder,
		accounts:   accounts,
		outputs:    outputs,
		log:        log,
		params:     params,
		postage:    postage,
		commitment: commitment,
	}
	inscriber.machine = fsm.NewFSM(
		StateUncommitted,
		fsm.Events{
			{Name: EventCommit, Src: []string{StateUncommitted}, Dst: StateCommitted},
			{Name: EventReveal, Src: []string{StateCommitted}, Dst: StateRevealed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("inscription %s: %s -> %s", commitment.Address, e.Src, e.Dst)
			},
		},
	)

	return inscriber, nil
}

// Commitment returns inscription commitment.
func (i *Inscriber) Commitment() *inscriptions.Commitment {
	return i.commitment
}

// State returns current inscription state.
func (i *Inscriber) State() string {
	return i.machine.Current()
}

// CommitTxID returns hash of the commit transaction, empty before commit.
func (i *Inscriber) CommitTxID() string {
	return i.commitTxID
}

// RevealVSize returns exact reveal transaction virtual size measured on a dummy reveal with 64 bytes signature.
func (i *Inscriber) RevealVSize() (int64, error) {
	destination, err := bitcoin.PayToAddress(i.params.Destination, i.builder.NetworkParams())
	if err != nil {
		return 0, err
	}

	tx := wire.NewMsgTx(txbuilder.TxVersion)
	txIn := wire.NewTxIn(&wire.OutPoint{}, nil, nil)
	txIn.Witness = i.commitment.Witness(make([]byte, 64))
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(i.postage.Int64(), destination))

	return txbuilder.MeasureVSize(tx), nil
}

// RevealFee returns reveal transaction fee at the inscription fee rate.
func (i *Inscriber) RevealFee() (*big.Int, error) {
	vSize, err := i.RevealVSize()
	if err != nil {
		return nil, err
	}

	return txbuilder.FeeForVSize(vSize, i.params.SatoshiPerVByte), nil
}

// CommitValue returns commitment output value: reveal fee plus postage.
func (i *Inscriber) CommitValue() (*big.Int, error) {
	revealFee, err := i.RevealFee()
	if err != nil {
		return nil, err
	}

	return revealFee.Add(revealFee, i.postage), nil
}

// Commit builds commit transaction paying provided fee, analytic fee is used if fee is nil.
func (i *Inscriber) Commit(ctx context.Context, fee *big.Int) (*txbuilder.Skeleton, error) {
	if i.State() != StateUncommitted {
		return nil, fmt.Errorf("%w: commit in %s state", ErrInvalidState, i.State())
	}

	value, err := i.CommitValue()
	if err != nil {
		return nil, err
	}

	return i.builder.Build(ctx, txbuilder.BuildParams{
		Outputs:         []txbuilder.Output{{PkScript: i.commitment.PkScript, Amount: value}},
		Pool:            i.params.Pool,
		Strategy:        i.params.Strategy,
		SatoshiPerVByte: i.params.SatoshiPerVByte,
		Fee:             fee,
	})
}

// MarkCommitted moves inscription into committed state after commit transaction broadcast.
func (i *Inscriber) MarkCommitted(ctx context.Context, commitTxID string) error {
	if _, err := chainhash.NewHashFromStr(commitTxID); err != nil {
		return err
	}

	if err := i.machine.Event(ctx, EventCommit); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	i.commitTxID = commitTxID

	return nil
}

// Reveal builds reveal transaction spending commitment output by the script path.
// Output 0 sends postage to destination, leftover above dust returns to the wallet change account.
// Returns ErrIndexingLag if commit output is not visible yet.
func (i *Inscriber) Reveal(ctx context.Context) (*txbuilder.Skeleton, error) {
	if i.State() != StateCommitted {
		return nil, fmt.Errorf("%w: reveal in %s state", ErrInvalidState, i.State())
	}

	commitOut, err := i.outputs.TxOut(ctx, i.commitTxID, commitOutputIndex)
	if err != nil {
		if errors.Is(err, chain.ErrTxNotFound) {
			i.log.Debugf("commit %s is not visible yet", i.commitTxID)
			return nil, errors.Join(bitcoin.ErrIndexingLag, err)
		}

		return nil, err
	}
	if !bytes.Equal(commitOut.PkScript, i.commitment.PkScript) {
		return nil, ErrCommitmentMismatch
	}

	revealFee, err := i.RevealFee()
	if err != nil {
		return nil, err
	}

	value := big.NewInt(commitOut.Value)
	if numbers.IsLess(value, new(big.Int).Add(revealFee, i.postage)) {
		return nil, txbuilder.NewInsufficientError(txbuilder.InsufficientErrorTypeBitcoin, new(big.Int).Add(revealFee, i.postage), value)
	}

	destination, err := bitcoin.PayToAddress(i.params.Destination, i.builder.NetworkParams())
	if err != nil {
		return nil, err
	}

	hash, err := chainhash.NewHashFromStr(i.commitTxID)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txbuilder.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, commitOutputIndex), nil, nil))
	tx.AddTxOut(wire.NewTxOut(i.postage.Int64(), destination))

	skeleton := &txbuilder.Skeleton{
		Inputs: []*bitcoin.UTXO{{
			TxHash:      i.commitTxID,
			Index:       commitOutputIndex,
			Amount:      value,
			Script:      commitOut.PkScript,
			Address:     i.commitment.Address.EncodeAddress(),
			AddressType: bitcoin.AddressTypeTaproot,
		}},
		Selected:    []*bitcoin.UTXO{},
		Target:      new(big.Int).Set(i.postage),
		Fee:         new(big.Int).Sub(value, i.postage),
		Change:      big.NewInt(0),
		ChangeIndex: txbuilder.NoChange,
	}

	leftover := new(big.Int).Sub(skeleton.Fee, revealFee)
	if numbers.IsGreater(leftover, big.NewInt(bitcoin.DustAmount)) {
		account, err := i.accounts.Account(i.params.Strategy.OrDefault().ChangeAddressType)
		if err != nil {
			return nil, err
		}

		change, err := bitcoin.PayToAddress(account.Address, i.builder.NetworkParams())
		if err != nil {
			return nil, err
		}

		// leftover output grows reveal size.
		leftover.Sub(leftover, txbuilder.FeeForVSize(txbuilder.WeightToVSize(bitcoin.OutputWeight), i.params.SatoshiPerVByte))
		if numbers.IsGreater(leftover, big.NewInt(bitcoin.DustAmount)) {
			skeleton.Change = leftover
			skeleton.ChangeIndex = len(tx.TxOut)
			skeleton.Fee.Sub(skeleton.Fee, leftover)
			tx.AddTxOut(wire.NewTxOut(leftover.Int64(), change))
		}
	}

	skeleton.Packet, err = psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	if err = i.commitment.UpdateInput(&skeleton.Packet.Inputs[0], commitOut.Value); err != nil {
		return nil, err
	}

	return skeleton, nil
}

// MarkRevealed moves inscription into revealed state after reveal transaction broadcast.
func (i *Inscriber) MarkRevealed(ctx context.Context) error {
	if err := i.machine.Event(ctx, EventReveal); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	return nil
}
