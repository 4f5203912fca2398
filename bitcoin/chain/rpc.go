// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"

	"github.com/BoostyLabs/txengine/bitcoin"
)

// maxConfirmations is an upper bound of listunspent confirmations filter.
const maxConfirmations = 9999999

// rpc error codes reported by bitcoind on rejected transactions.
const (
	errRPCVerify         btcjson.RPCErrorCode = -25
	errRPCVerifyRejected btcjson.RPCErrorCode = -26
)

// ensures that RPCProvider implements Provider.
var _ Provider = (*RPCProvider)(nil)

// RPCClient is a subset of bitcoind json-rpc client used by RPCProvider.
type RPCClient interface {
	GetRawTransaction(txHash *chainhash.Hash) (*btcutil.Tx, error)
	GetRawTransactionVerbose(txHash *chainhash.Hash) (*btcjson.TxRawResult, error)
	GetTxOut(txHash *chainhash.Hash, index uint32, mempool bool) (*btcjson.GetTxOutResult, error)
	EstimateSmartFee(confTarget int64, mode *btcjson.EstimateSmartFeeMode) (*btcjson.EstimateSmartFeeResult, error)
	ListUnspentMinMaxAddresses(minConf, maxConf int, addrs []btcutil.Address) ([]btcjson.ListUnspentResult, error)
	TestMempoolAccept(txns []*wire.MsgTx, maxFeeRate float64) ([]*btcjson.TestMempoolAcceptResult, error)
	SendRawTransaction(tx *wire.MsgTx, allowHighFees bool) (*chainhash.Hash, error)
}

// RPCConfig holds bitcoind connection parameters.
type RPCConfig struct {
	Host       string
	User       string
	Pass       string
	DisableTLS bool
}

// RPCProvider implements Provider over bitcoind json-rpc.
type RPCProvider struct {
	client        RPCClient
	networkParams *chaincfg.Params
	shutdown      func()
}

// NewRPCProvider connects to bitcoind in http post mode.
func NewRPCProvider(config RPCConfig, networkParams *chaincfg.Params) (*RPCProvider, error) {
	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         config.Host,
		User:         config.User,
		Pass:         config.Pass,
		HTTPPostMode: true,
		DisableTLS:   config.DisableTLS,
	}, nil)
	if err != nil {
		return nil, err
	}

	provider := NewRPCProviderWithClient(client, networkParams)
	provider.shutdown = client.Shutdown

	return provider, nil
}

// NewRPCProviderWithClient returns RPCProvider over provided client.
func NewRPCProviderWithClient(client RPCClient, networkParams *chaincfg.Params) *RPCProvider {
	return &RPCProvider{client: client, networkParams: networkParams}
}

// Close shuts down underlying client.
func (p *RPCProvider) Close() {
	if p.shutdown != nil {
		p.shutdown()
	}
}

// RawTransaction returns transaction by its hash.
func (p *RPCProvider) RawTransaction(ctx context.Context, txHash string) (*wire.MsgTx, error) {
	hash, err := parseHash(ctx, txHash)
	if err != nil {
		return nil, err
	}

	tx, err := p.client.GetRawTransaction(hash)
	if err != nil {
		return nil, wrapNotFound(err, txHash)
	}

	return tx.MsgTx(), nil
}

// TxStatus returns transaction confirmation status.
func (p *RPCProvider) TxStatus(ctx context.Context, txHash string) (*TxStatus, error) {
	hash, err := parseHash(ctx, txHash)
	if err != nil {
		return nil, err
	}

	result, err := p.client.GetRawTransactionVerbose(hash)
	if err != nil {
		if isTxNotFoundErr(err) {
			return &TxStatus{}, nil
		}

		return nil, err
	}

	return &TxStatus{
		Found:         true,
		Confirmations: int64(result.Confirmations),
		BlockHash:     result.BlockHash,
	}, nil
}

// TxOut returns unspent transaction output including mempool ones.
func (p *RPCProvider) TxOut(ctx context.Context, txHash string, index uint32) (*wire.TxOut, error) {
	hash, err := parseHash(ctx, txHash)
	if err != nil {
		return nil, err
	}

	result, err := p.client.GetTxOut(hash, index, true)
	if err != nil {
		return nil, wrapNotFound(err, txHash)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s:%d", ErrTxNotFound, txHash, index)
	}

	pkScript, err := hex.DecodeString(result.ScriptPubKey.Hex)
	if err != nil {
		return nil, errors.Join(ErrInvalidResponse, err)
	}

	return wire.NewTxOut(BTCToSatoshi(result.Value).Int64(), pkScript), nil
}

// FeeRate returns conservative smart fee estimation in satoshi per virtual byte, at least 1.
func (p *RPCProvider) FeeRate(ctx context.Context, confTarget int64) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := p.client.EstimateSmartFee(confTarget, &btcjson.EstimateModeConservative)
	if err != nil {
		return nil, err
	}
	if result.FeeRate == nil {
		return nil, fmt.Errorf("%w: no fee rate estimation %v", ErrInvalidResponse, result.Errors)
	}

	return BTCPerKVBToSatoshiPerVByte(*result.FeeRate), nil
}

// UTXOs returns unspent outputs of the address known to node wallet.
func (p *RPCProvider) UTXOs(ctx context.Context, address string) ([]bitcoin.UTXO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr, err := btcutil.DecodeAddress(address, p.networkParams)
	if err != nil {
		return nil, err
	}

	results, err := p.client.ListUnspentMinMaxAddresses(0, maxConfirmations, []btcutil.Address{addr})
	if err != nil {
		return nil, err
	}

	utxos := make([]bitcoin.UTXO, 0, len(results))
	for _, result := range results {
		pkScript, err := hex.DecodeString(result.ScriptPubKey)
		if err != nil {
			return nil, errors.Join(ErrInvalidResponse, err)
		}

		utxos = append(utxos, bitcoin.UTXO{
			TxHash:        result.TxID,
			Index:         result.Vout,
			Amount:        BTCToSatoshi(result.Amount),
			Script:        pkScript,
			Address:       address,
			AddressType:   bitcoin.ClassifyScript(pkScript),
			Confirmations: result.Confirmations,
		})
	}

	return utxos, nil
}

// TestMempoolAccept checks transaction against node mempool policy.
func (p *RPCProvider) TestMempoolAccept(ctx context.Context, tx *wire.MsgTx) (*MempoolAcceptResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results, err := p.client.TestMempoolAccept([]*wire.MsgTx{tx}, 0)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%w: expected 1 mempool accept result, got %d", ErrInvalidResponse, len(results))
	}

	return &MempoolAcceptResult{
		TxID:    results[0].Txid,
		Allowed: results[0].Allowed,
		Reason:  results[0].RejectReason,
		VSize:   int64(results[0].Vsize),
	}, nil
}

// Broadcast submits transaction to the network.
func (p *RPCProvider) Broadcast(ctx context.Context, tx *wire.MsgTx) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	hash, err := p.client.SendRawTransaction(tx, false)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && (rpcErr.Code == errRPCVerify || rpcErr.Code == errRPCVerifyRejected) {
			return "", &bitcoin.MempoolRejectionError{TxID: tx.TxHash().String(), Reason: rpcErr.Message}
		}

		return "", err
	}

	return hash.String(), nil
}

// BTCToSatoshi converts bitcoin amount to satoshi.
func BTCToSatoshi(amount float64) *big.Int {
	return decimal.NewFromFloat(amount).Shift(8).Round(0).BigInt()
}

// BTCPerKVBToSatoshiPerVByte converts fee rate in BTC per kilo virtual byte to satoshi per virtual byte,
// rounding up to at least 1.
func BTCPerKVBToSatoshiPerVByte(rate float64) *big.Int {
	satoshiPerVByte := decimal.NewFromFloat(rate).Shift(8).Div(decimal.NewFromInt(1000)).Ceil()
	if satoshiPerVByte.LessThan(decimal.NewFromInt(1)) {
		return big.NewInt(1)
	}

	return satoshiPerVByte.BigInt()
}

func parseHash(ctx context.Context, txHash string) (*chainhash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return chainhash.NewHashFromStr(txHash)
}

// isTxNotFoundErr returns true if error is bitcoind rpc error with no tx info code.
func isTxNotFoundErr(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}

func wrapNotFound(err error, txHash string) error {
	if isTxNotFoundErr(err) {
		return fmt.Errorf("%w: %s", ErrTxNotFound, txHash)
	}

	return err
}
