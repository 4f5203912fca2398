// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package engine_test

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/txengine/bitcoin"
	"github.com/BoostyLabs/txengine/bitcoin/alkanes"
	"github.com/BoostyLabs/txengine/bitcoin/chain"
	"github.com/BoostyLabs/txengine/bitcoin/commitreveal"
	"github.com/BoostyLabs/txengine/bitcoin/engine"
	"github.com/BoostyLabs/txengine/bitcoin/ord/inscriptions"
	"github.com/BoostyLabs/txengine/bitcoin/ord/runes"
	"github.com/BoostyLabs/txengine/bitcoin/signer"
	"github.com/BoostyLabs/txengine/bitcoin/swap"
	"github.com/BoostyLabs/txengine/bitcoin/txbuilder"
	"github.com/BoostyLabs/txengine/internal/config"
)

var networkParams = &chaincfg.RegressionNetParams

// node is an in-memory chain used by engine tests.
// Like bitcoind it rejects transactions spending outputs it does not know.
type node struct {
	mu         sync.Mutex
	utxos      map[string][]bitcoin.UTXO
	funded     map[string]struct{}
	txs        map[string]*wire.MsgTx
	rejects    map[string]string
	broadcasts []string
}

func newNode() *node {
	return &node{
		utxos:   make(map[string][]bitcoin.UTXO),
		funded:  make(map[string]struct{}),
		txs:     make(map[string]*wire.MsgTx),
		rejects: make(map[string]string),
	}
}

// fund makes utxos spendable without listing them by address.
func (n *node) fund(utxos ...bitcoin.UTXO) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, utxo := range utxos {
		n.funded[outPointKey(utxo.TxHash, utxo.Index)] = struct{}{}
	}
}

// missingInput returns the first input spending unknown output.
func (n *node) missingInput(tx *wire.MsgTx) (wire.OutPoint, bool) {
	for _, txIn := range tx.TxIn {
		prev := txIn.PreviousOutPoint
		if parent, ok := n.txs[prev.Hash.String()]; ok && int(prev.Index) < len(parent.TxOut) {
			continue
		}
		if _, ok := n.funded[outPointKey(prev.Hash.String(), prev.Index)]; ok {
			continue
		}
		if n.listed(prev) {
			continue
		}

		return prev, true
	}

	return wire.OutPoint{}, false
}

func (n *node) listed(outPoint wire.OutPoint) bool {
	for _, utxos := range n.utxos {
		for _, utxo := range utxos {
			if utxo.TxHash == outPoint.Hash.String() && utxo.Index == outPoint.Index {
				return true
			}
		}
	}

	return false
}

func outPointKey(txHash string, index uint32) string {
	return fmt.Sprintf("%s:%d", txHash, index)
}

func (n *node) provider() *chain.MockProvider {
	return &chain.MockProvider{
		FeeRateFn: func(ctx context.Context, confTarget int64) (*big.Int, error) {
			return big.NewInt(10), nil
		},
		UTXOsFn: func(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			return n.utxos[address], nil
		},
		TxOutFn: func(ctx context.Context, txHash string, index uint32) (*wire.TxOut, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			tx, ok := n.txs[txHash]
			if !ok || int(index) >= len(tx.TxOut) {
				return nil, chain.ErrTxNotFound
			}
			return tx.TxOut[index], nil
		},
		TxStatusFn: func(ctx context.Context, txHash string) (*chain.TxStatus, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			if _, ok := n.txs[txHash]; !ok {
				return nil, chain.ErrTxNotFound
			}
			return &chain.TxStatus{Found: true, Confirmations: 1}, nil
		},
		TestMempoolAcceptFn: func(ctx context.Context, tx *wire.MsgTx) (*chain.MempoolAcceptResult, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			txID := tx.TxHash().String()
			if reason, ok := n.rejects[txID]; ok {
				return &chain.MempoolAcceptResult{TxID: txID, Reason: reason}, nil
			}
			if _, missing := n.missingInput(tx); missing {
				return &chain.MempoolAcceptResult{TxID: txID, Reason: "missing-inputs"}, nil
			}
			return &chain.MempoolAcceptResult{TxID: txID, Allowed: true, VSize: txbuilder.MeasureVSize(tx)}, nil
		},
		BroadcastFn: func(ctx context.Context, tx *wire.MsgTx) (string, error) {
			n.mu.Lock()
			defer n.mu.Unlock()
			txID := tx.TxHash().String()
			n.txs[txID] = tx
			n.broadcasts = append(n.broadcasts, txID)
			return txID, nil
		},
	}
}

type wallet struct {
	accounts bitcoin.StaticAccounts
	signer   *signer.Signer
}

func newWallet(t *testing.T, seed byte) *wallet {
	privateKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	accounts, err := bitcoin.NewStaticAccounts(privateKey.PubKey(), networkParams)
	require.NoError(t, err)

	s, err := signer.NewSignerFromKey(networkParams, privateKey)
	require.NoError(t, err)

	return &wallet{accounts: accounts, signer: s}
}

func (w *wallet) utxo(t *testing.T, addressType bitcoin.AddressType, hash byte, index uint32, amount int64) bitcoin.UTXO {
	script, err := bitcoin.PayToAddress(w.accounts[addressType].Address, networkParams)
	require.NoError(t, err)

	return bitcoin.UTXO{
		TxHash: chainhash.Hash{hash}.String(),
		Index:  index,
		Amount: big.NewInt(amount),
		Script: script,
	}
}

func newEngine(t *testing.T, w *wallet, n *node) *engine.Engine {
	cfg := config.Default()
	cfg.Network = "regtest"
	cfg.Chain.ConfirmTimeout = 100 * time.Millisecond
	cfg.Chain.ConfirmPollInterval = 10 * time.Millisecond

	e, err := engine.New(cfg, n.provider(), w.signer, w.accounts, nil)
	require.NoError(t, err)

	return e
}

// verifyInputs executes every input script of the transaction spending provided utxos.
func verifyInputs(t *testing.T, tx *wire.MsgTx, inputs []*bitcoin.UTXO) {
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(inputs))
	for i, utxo := range inputs {
		prevOuts[tx.TxIn[i].PreviousOutPoint] = utxo.TxOut()
	}

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, utxo := range inputs {
		vm, err := txscript.NewEngine(utxo.Script, tx, i, txscript.StandardVerifyFlags, nil, sigHashes, utxo.Amount.Int64(), fetcher)
		require.NoError(t, err)
		require.NoError(t, vm.Execute(), "input %d", i)
	}
}

func TestNew(t *testing.T) {
	w := newWallet(t, 0x31)
	n := newNode()

	_, err := engine.New(nil, nil, w.signer, w.accounts, nil)
	require.Error(t, err)

	cfg := config.Default()
	cfg.Network = "unknown"
	_, err = engine.New(cfg, n.provider(), w.signer, w.accounts, nil)
	require.ErrorIs(t, err, config.ErrUnknownNetwork)

	e := newEngine(t, w, n)
	require.Equal(t, networkParams, e.NetworkParams())
}

func TestOpen(t *testing.T) {
	w := newWallet(t, 0x31)

	cfg := config.Default()
	cfg.Network = "regtest"
	cfg.Chain.Host = "127.0.0.1:18443"
	cfg.Log.Level = "error"

	e, closeFn, err := engine.Open(cfg, w.signer, w.accounts)
	require.NoError(t, err)
	require.Equal(t, networkParams, e.NetworkParams())
	closeFn()

	cfg.Network = "unknown"
	_, _, err = engine.Open(cfg, w.signer, w.accounts)
	require.ErrorIs(t, err, config.ErrUnknownNetwork)
}

func TestSend(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x31)
	n := newNode()
	native := w.accounts[bitcoin.AddressTypeNativeSegwit].Address
	n.utxos[native] = []bitcoin.UTXO{
		w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x01, 0, 100000),
		w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x01, 1, 50000),
	}
	e := newEngine(t, w, n)

	recipient := newWallet(t, 0x32).accounts[bitcoin.AddressTypeNativeSegwit].Address
	params := engine.SendParams{Recipient: recipient, Amount: big.NewInt(30000)}

	t.Run("estimate and build", func(t *testing.T) {
		estimate, err := e.EstimateSendFee(ctx, params)
		require.NoError(t, err)
		require.Equal(t, new(big.Int).Mul(big.NewInt(estimate.VSize), big.NewInt(10)), estimate.Fee)

		skeleton, err := e.BuildSend(ctx, params, estimate.Fee)
		require.NoError(t, err)
		require.Equal(t, estimate.Fee, skeleton.Fee)
		require.Len(t, skeleton.Packet.UnsignedTx.TxIn, 1)
		require.Len(t, skeleton.Packet.UnsignedTx.TxOut, 2)
		require.EqualValues(t, 100000, skeleton.Inputs[0].Amount.Int64())
		require.Equal(t, bitcoin.AddressTypeNativeSegwit, skeleton.Inputs[0].AddressType)

		tx, err := e.Sign(ctx, skeleton)
		require.NoError(t, err)
		verifyInputs(t, tx, skeleton.Inputs)

		txID, err := e.Broadcast(ctx, tx)
		require.NoError(t, err)
		require.Equal(t, tx.TxHash().String(), txID)

		confirmed, err := e.WaitForConfirmation(ctx, txID)
		require.NoError(t, err)
		require.True(t, confirmed)
	})

	t.Run("provisional build", func(t *testing.T) {
		skeleton, err := e.BuildSend(ctx, params, nil)
		require.NoError(t, err)
		require.True(t, skeleton.Fee.Sign() > 0)
	})

	t.Run("invalid params", func(t *testing.T) {
		_, err := e.EstimateSendFee(ctx, engine.SendParams{Recipient: recipient, Amount: big.NewInt(100)})
		require.Error(t, err)

		_, err = e.BuildSend(ctx, engine.SendParams{Recipient: "bc1qinvalid", Amount: big.NewInt(30000)}, nil)
		require.ErrorIs(t, err, bitcoin.ErrUnsupportedAddressType)

		_, err = e.BuildSend(ctx, engine.SendParams{Recipient: recipient, Amount: big.NewInt(1000000)}, nil)
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)

		_, err = e.BuildSend(ctx, engine.SendParams{Recipient: recipient, Amount: big.NewInt(30000), FeeParams: engine.FeeParams{SatoshiPerVByte: big.NewInt(0)}}, nil)
		require.Error(t, err)
	})

	t.Run("broadcast rejection", func(t *testing.T) {
		skeleton, err := e.BuildSend(ctx, params, nil)
		require.NoError(t, err)
		tx, err := e.Sign(ctx, skeleton)
		require.NoError(t, err)

		n.rejects[tx.TxHash().String()] = "min relay fee not met"
		broadcasts := len(n.broadcasts)

		_, err = e.Broadcast(ctx, tx)
		require.ErrorIs(t, err, bitcoin.ErrMempoolRejection)

		var rejection *bitcoin.MempoolRejectionError
		require.ErrorAs(t, err, &rejection)
		require.Equal(t, "min relay fee not met", rejection.Reason)
		require.Len(t, n.broadcasts, broadcasts)
	})

	t.Run("cenotaph runestone", func(t *testing.T) {
		skeleton, err := e.BuildSend(ctx, params, nil)
		require.NoError(t, err)
		tx, err := e.Sign(ctx, skeleton)
		require.NoError(t, err)

		// pointer 14 is out of outputs range.
		pointer := uint32(14)
		script, err := (&runes.Runestone{Pointer: &pointer}).IntoScript()
		require.NoError(t, err)
		tx.AddTxOut(wire.NewTxOut(0, script))
		broadcasts := len(n.broadcasts)

		_, err = e.Broadcast(ctx, tx)
		require.ErrorIs(t, err, runes.ErrCenotaph)

		var cenotaphErr *runes.CenotaphError
		require.ErrorAs(t, err, &cenotaphErr)
		require.Equal(t, runes.PointerCenotaphErrorType, cenotaphErr.Type())
		require.Len(t, n.broadcasts, broadcasts)
	})

	t.Run("unconfirmed after timeout", func(t *testing.T) {
		confirmed, err := e.WaitForConfirmation(ctx, chainhash.Hash{0xff}.String())
		require.NoError(t, err)
		require.False(t, confirmed)
	})
}

func TestInscribe(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x33)
	n := newNode()
	native := w.accounts[bitcoin.AddressTypeNativeSegwit].Address
	n.utxos[native] = []bitcoin.UTXO{w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x02, 0, 80000)}
	e := newEngine(t, w, n)

	params := engine.InscribeParams{
		Inscription: &inscriptions.Inscription{ContentType: "text/plain;charset=utf-8", Body: []byte("engine inscription")},
		FeeParams:   engine.FeeParams{SatoshiPerVByte: big.NewInt(4)},
	}

	estimate, err := e.EstimateInscribeFee(ctx, params)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(estimate.Commit.Fee, estimate.RevealFee), estimate.Total)

	pending, err := e.BuildInscribe(ctx, params, estimate.Commit.Fee)
	require.NoError(t, err)
	require.Equal(t, estimate.Commit.Fee, pending.Commit.Fee)
	require.Equal(t, pending.Commitment().PkScript, pending.Commit.Packet.UnsignedTx.TxOut[0].PkScript)

	commitTx, err := e.Sign(ctx, pending.Commit)
	require.NoError(t, err)
	commitTxID := commitTx.TxHash().String()

	_, err = e.BuildReveal(ctx, pending, commitTxID)
	require.ErrorIs(t, err, bitcoin.ErrIndexingLag)
	require.Equal(t, commitreveal.StateCommitted, pending.State())

	_, err = e.BuildReveal(ctx, pending, chainhash.Hash{0x03}.String())
	require.ErrorIs(t, err, commitreveal.ErrInvalidState)

	_, err = e.Broadcast(ctx, commitTx)
	require.NoError(t, err)

	reveal, err := e.BuildReveal(ctx, pending, commitTxID)
	require.NoError(t, err)
	require.Equal(t, estimate.RevealFee, reveal.Fee)

	revealTx, err := e.Sign(ctx, reveal)
	require.NoError(t, err)
	verifyInputs(t, revealTx, reveal.Inputs)

	destination, err := bitcoin.PayToAddress(w.accounts[bitcoin.AddressTypeTaproot].Address, networkParams)
	require.NoError(t, err)
	require.Equal(t, destination, revealTx.TxOut[0].PkScript)
	require.EqualValues(t, bitcoin.DustAmount, revealTx.TxOut[0].Value)

	revealed, err := inscriptions.ParseInscriptionFromWitnessData(revealTx.TxIn[0].Witness[1])
	require.NoError(t, err)
	require.Equal(t, params.Inscription.Body, revealed.Body)
}

func TestBRC20(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x34)
	n := newNode()
	native := w.accounts[bitcoin.AddressTypeNativeSegwit].Address
	n.utxos[native] = []bitcoin.UTXO{w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x04, 0, 80000)}
	e := newEngine(t, w, n)

	payload, err := inscriptions.NewBRC20Mint("ordi", decimal.NewFromInt(1000))
	require.NoError(t, err)

	params := engine.BRC20Params{Payload: payload}
	estimate, err := e.EstimateBRC20Fee(ctx, params)
	require.NoError(t, err)

	pending, err := e.BuildBRC20(ctx, params, estimate.Commit.Fee)
	require.NoError(t, err)

	commitment, err := inscriptions.NewCommitment(mustInscription(t, payload), w.accounts[bitcoin.AddressTypeTaproot].PublicKey, networkParams)
	require.NoError(t, err)
	require.Equal(t, commitment.PkScript, pending.Commitment().PkScript)

	_, err = e.BuildBRC20(ctx, engine.BRC20Params{}, nil)
	require.Error(t, err)
}

func TestInscriptionSend(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x35)
	n := newNode()
	native := w.accounts[bitcoin.AddressTypeNativeSegwit].Address
	n.utxos[native] = []bitcoin.UTXO{w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x05, 0, 20000)}
	e := newEngine(t, w, n)

	inscribed := w.utxo(t, bitcoin.AddressTypeTaproot, 0x06, 0, bitcoin.DustAmount)
	inscribed.Inscriptions = []string{chainhash.Hash{0x06}.String() + "i0"}
	recipient := newWallet(t, 0x36).accounts[bitcoin.AddressTypeTaproot].Address

	n.fund(inscribed)

	params := engine.InscriptionSendParams{UTXO: inscribed, Recipient: recipient}
	estimate, err := e.EstimateInscriptionSendFee(ctx, params)
	require.NoError(t, err)

	skeleton, err := e.BuildInscriptionSend(ctx, params, estimate.Fee)
	require.NoError(t, err)

	tx := skeleton.Packet.UnsignedTx
	outPoint, err := inscribed.OutPoint()
	require.NoError(t, err)
	require.Equal(t, *outPoint, tx.TxIn[0].PreviousOutPoint)
	require.EqualValues(t, bitcoin.DustAmount, tx.TxOut[0].Value)

	signed, err := e.Sign(ctx, skeleton)
	require.NoError(t, err)
	verifyInputs(t, signed, skeleton.Inputs)

	inscribed.Inscriptions = nil
	_, err = e.BuildInscriptionSend(ctx, engine.InscriptionSendParams{UTXO: inscribed, Recipient: recipient}, nil)
	require.ErrorIs(t, err, bitcoin.ErrMalformedInput)
}

func TestRunesSend(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x37)
	runeID := runes.RuneID{Block: 840000, TxID: 1}
	otherRuneID := runes.RuneID{Block: 840001, TxID: 2}

	runeUTXO := w.utxo(t, bitcoin.AddressTypeTaproot, 0x07, 0, bitcoin.DustAmount)
	runeUTXO.Runes = []bitcoin.RuneUTXO{{RuneID: runeID, Amount: big.NewInt(1000)}}
	mixedUTXO := w.utxo(t, bitcoin.AddressTypeTaproot, 0x07, 1, bitcoin.DustAmount)
	mixedUTXO.Runes = []bitcoin.RuneUTXO{{RuneID: runeID, Amount: big.NewInt(100)}, {RuneID: otherRuneID, Amount: big.NewInt(5)}}
	payment := w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x08, 0, 50000)

	recipient := newWallet(t, 0x38).accounts[bitcoin.AddressTypeTaproot].Address
	commission := newWallet(t, 0x39).accounts[bitcoin.AddressTypeNativeSegwit].Address

	tests := []struct {
		name        string
		pool        []bitcoin.UTXO
		amount      int64
		commission  int64
		pointer     bool
		outputs     int
		changeIndex int
		err         error
	}{
		{name: "partial amount", pool: []bitcoin.UTXO{runeUTXO, payment}, amount: 400, pointer: true, outputs: 4, changeIndex: 3},
		{name: "exact amount", pool: []bitcoin.UTXO{runeUTXO, payment}, amount: 1000, outputs: 3, changeIndex: 2},
		{name: "other runes return to sender", pool: []bitcoin.UTXO{mixedUTXO, payment}, amount: 100, pointer: true, outputs: 4, changeIndex: 3},
		{name: "with commission", pool: []bitcoin.UTXO{runeUTXO, payment}, amount: 1000, commission: 2000, outputs: 4, changeIndex: 3},
		{name: "insufficient runes", pool: []bitcoin.UTXO{runeUTXO, payment}, amount: 5000, err: bitcoin.ErrInsufficientRuneBalance},
		{name: "no rune utxos", pool: []bitcoin.UTXO{payment}, amount: 1, err: bitcoin.ErrInsufficientRuneBalance},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n := newNode()
			n.fund(test.pool...)
			e := newEngine(t, w, n)
			params := engine.RunesSendParams{
				RuneID:            runeID,
				Amount:            big.NewInt(test.amount),
				Recipient:         recipient,
				Commission:        big.NewInt(test.commission),
				CommissionAddress: commission,
				Funding:           engine.Funding{Pool: test.pool},
				FeeParams:         engine.FeeParams{SatoshiPerVByte: big.NewInt(3)},
			}

			estimate, err := e.EstimateRunesSendFee(ctx, params)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)

			skeleton, err := e.BuildRunesSend(ctx, params, estimate.Fee)
			require.NoError(t, err)

			tx := skeleton.Packet.UnsignedTx
			require.Len(t, tx.TxOut, test.outputs)
			require.Equal(t, test.changeIndex, skeleton.ChangeIndex)
			require.Zero(t, tx.TxOut[engine.RunestoneOutput].Value)

			runestone, err := runes.ParseRunestone(tx.TxOut[engine.RunestoneOutput].PkScript)
			require.NoError(t, err)
			require.Len(t, runestone.Edicts, 1)
			require.Equal(t, runeID, runestone.Edicts[0].RuneID)
			require.EqualValues(t, test.amount, runestone.Edicts[0].Amount.Int64())
			require.Equal(t, engine.RecipientOutput, runestone.Edicts[0].Output)
			if test.pointer {
				require.NotNil(t, runestone.Pointer)
				require.Equal(t, engine.RuneChangeOutput, *runestone.Pointer)
			} else {
				require.Nil(t, runestone.Pointer)
			}

			if test.commission > 0 {
				require.EqualValues(t, test.commission, tx.TxOut[test.outputs-2].Value)
			}

			signed, err := e.Sign(ctx, skeleton)
			require.NoError(t, err)
			verifyInputs(t, signed, skeleton.Inputs)
		})
	}
}

func TestRunesMint(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x3d)
	n := newNode()
	native := w.accounts[bitcoin.AddressTypeNativeSegwit].Address
	n.utxos[native] = []bitcoin.UTXO{w.utxo(t, bitcoin.AddressTypeNativeSegwit, 0x0a, 0, 30000)}
	e := newEngine(t, w, n)

	name, spacers, err := runes.NewRuneFromStringWithSpacer("UNCOMMON•GOODS")
	require.NoError(t, err)
	openRune := &bitcoin.Rune{
		ID:          runes.RuneID{Block: 1, TxID: 0},
		Name:        name,
		Spacers:     spacers,
		MintAmount:  big.NewInt(1),
		HeightStart: 840000,
		HeightEnd:   1050000,
	}

	t.Run("mint", func(t *testing.T) {
		params := engine.RunesMintParams{Rune: openRune, Height: 900000}
		estimate, err := e.EstimateRunesMintFee(ctx, params)
		require.NoError(t, err)

		skeleton, err := e.BuildRunesMint(ctx, params, estimate.Fee)
		require.NoError(t, err)

		tx := skeleton.Packet.UnsignedTx
		require.Len(t, tx.TxOut, 3)
		require.EqualValues(t, bitcoin.DustAmount, tx.TxOut[engine.RecipientOutput].Value)
		recipient, err := bitcoin.PayToAddress(w.accounts[bitcoin.AddressTypeTaproot].Address, networkParams)
		require.NoError(t, err)
		require.Equal(t, recipient, tx.TxOut[engine.RecipientOutput].PkScript)

		runestone, err := runes.ParseRunestone(tx.TxOut[engine.RunestoneOutput].PkScript)
		require.NoError(t, err)
		require.Equal(t, openRune.ID, *runestone.Mint)
		require.Equal(t, engine.RecipientOutput, *runestone.Pointer)
		require.Empty(t, runestone.Edicts)

		signed, err := e.Sign(ctx, skeleton)
		require.NoError(t, err)
		verifyInputs(t, signed, skeleton.Inputs)
	})

	t.Run("closed", func(t *testing.T) {
		capped := *openRune
		capped.MintCapAmount, capped.Mints = big.NewInt(10), big.NewInt(10)

		tests := []struct {
			name   string
			params engine.RunesMintParams
		}{
			{"before start", engine.RunesMintParams{Rune: openRune, Height: 839999}},
			{"after end", engine.RunesMintParams{Rune: openRune, Height: 1050000}},
			{"no terms", engine.RunesMintParams{Rune: &bitcoin.Rune{ID: openRune.ID}}},
			{"cap reached", engine.RunesMintParams{Rune: &capped}},
		}
		for _, test := range tests {
			t.Run(test.name, func(t *testing.T) {
				_, err := e.BuildRunesMint(ctx, test.params, nil)
				require.ErrorIs(t, err, bitcoin.ErrMintClosed)
			})
		}
	})
}

func TestAlkanesExecute(t *testing.T) {
	ctx := context.Background()
	w := newWallet(t, 0x3a)
	n := newNode()
	taproot := w.accounts[bitcoin.AddressTypeTaproot].Address
	n.utxos[taproot] = []bitcoin.UTXO{w.utxo(t, bitcoin.AddressTypeTaproot, 0x09, 0, 30000)}
	e := newEngine(t, w, n)

	cellpack := &alkanes.Cellpack{Target: alkanes.AlkaneID{Block: 2, TxID: 1}, Inputs: []*big.Int{big.NewInt(77)}}
	params := engine.AlkanesExecuteParams{Cellpack: cellpack}

	estimate, err := e.EstimateAlkanesExecuteFee(ctx, params)
	require.NoError(t, err)

	skeleton, err := e.BuildAlkanesExecute(ctx, params, estimate.Fee)
	require.NoError(t, err)

	tx := skeleton.Packet.UnsignedTx
	require.Len(t, tx.TxOut, 3)
	require.EqualValues(t, bitcoin.DustAmount, tx.TxOut[0].Value)

	runestone, err := runes.ParseRunestone(tx.TxOut[1].PkScript)
	require.NoError(t, err)
	protostones, err := alkanes.DecodeProtostones(runestone.Protocol)
	require.NoError(t, err)
	require.Len(t, protostones, 1)
	require.Equal(t, alkanes.ProtocolTagAlkanes, protostones[0].ProtocolTag)

	calldata, err := cellpack.Encipher()
	require.NoError(t, err)
	require.Equal(t, calldata, protostones[0].Message)
	require.EqualValues(t, 0, *protostones[0].Pointer)

	_, err = e.BuildAlkanesExecute(ctx, engine.AlkanesExecuteParams{}, nil)
	require.Error(t, err)
}

func TestSwap(t *testing.T) {
	ctx := context.Background()
	taker := newWallet(t, 0x3b)
	maker := newWallet(t, 0x3c)
	n := newNode()
	e := newEngine(t, taker, n)

	fragment := func(t *testing.T, hash byte, price int64) *swap.Fragment {
		asset := maker.utxo(t, bitcoin.AddressTypeTaproot, hash, 0, bitcoin.DustAmount)
		asset.AddressType = bitcoin.AddressTypeTaproot
		outPoint, err := asset.OutPoint()
		require.NoError(t, err)

		payout, err := bitcoin.PayToAddress(maker.accounts[bitcoin.AddressTypeNativeSegwit].Address, networkParams)
		require.NoError(t, err)

		tx := wire.NewMsgTx(txbuilder.TxVersion)
		tx.AddTxIn(wire.NewTxIn(outPoint, nil, nil))
		tx.AddTxOut(wire.NewTxOut(price, payout))

		packet, err := psbt.NewFromUnsignedTx(tx)
		require.NoError(t, err)
		require.NoError(t, txbuilder.EncodeInput(&packet.Inputs[0], &asset, maker.accounts[bitcoin.AddressTypeTaproot], nil))
		packet.Inputs[0].SighashType = swap.FragmentSigHashType

		signed, err := maker.signer.SignInput(ctx, packet, 0)
		require.NoError(t, err)
		n.fund(asset)

		f, err := swap.NewFragment(signed)
		require.NoError(t, err)

		return f
	}

	pool := func(hash byte) []bitcoin.UTXO {
		utxos := []bitcoin.UTXO{
			taker.utxo(t, bitcoin.AddressTypeNativeSegwit, hash, 0, swap.DefaultPaddingValue),
			taker.utxo(t, bitcoin.AddressTypeNativeSegwit, hash, 1, swap.DefaultPaddingValue),
			taker.utxo(t, bitcoin.AddressTypeNativeSegwit, hash, 2, 100000),
		}
		for i := range utxos {
			utxos[i].AddressType = bitcoin.AddressTypeNativeSegwit
		}
		n.fund(utxos...)

		return utxos
	}

	t.Run("single swap", func(t *testing.T) {
		params := engine.SwapParams{
			Fragment:  fragment(t, 0x50, 10000),
			Funding:   engine.Funding{Pool: pool(0x60)},
			FeeParams: engine.FeeParams{SatoshiPerVByte: big.NewInt(2)},
		}

		estimate, err := e.EstimateSwapFee(ctx, params)
		require.NoError(t, err)

		composition, err := e.BuildSwap(ctx, params, estimate.Fee)
		require.NoError(t, err)
		require.Equal(t, estimate.Fee, composition.Fee)
		require.Equal(t, params.Fragment.Payout(), composition.Packet.UnsignedTx.TxOut[composition.PayoutIndex])

		tx, err := e.Sign(ctx, composition.Skeleton)
		require.NoError(t, err)
		verifyInputs(t, tx, composition.Inputs)
	})

	t.Run("batch", func(t *testing.T) {
		result, err := e.BuildSwapBatch(ctx, engine.SwapBatchParams{
			Fragments: []*swap.Fragment{fragment(t, 0x51, 10000), fragment(t, 0x52, 12000)},
			Funding:   engine.Funding{Pool: pool(0x61)},
			FeeParams: engine.FeeParams{SatoshiPerVByte: big.NewInt(2)},
		})
		require.NoError(t, err)
		require.Len(t, result.Items, 2)
		require.NoError(t, result.Items[0].Err)
		require.NoError(t, result.Items[1].Err)

		// second swap spends outputs of the first one, unknown to the node until broadcast.
		_, missing := n.missingInput(result.Items[1].Tx)
		require.True(t, missing)

		results := e.BroadcastSwapBatch(ctx, result.Items)
		require.NoError(t, results[0].Err)
		require.NoError(t, results[1].Err)
		require.Equal(t, []string{results[0].TxID, results[1].TxID}, n.broadcasts)
	})
}

func mustInscription(t *testing.T, payload *inscriptions.BRC20) *inscriptions.Inscription {
	inscription, err := payload.IntoInscription()
	require.NoError(t, err)

	return inscription
}
