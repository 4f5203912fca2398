// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"errors"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// ErrInvalidBRC20 defines that brc-20 payload is malformed or carries invalid values.
var ErrInvalidBRC20 = errors.New("invalid brc-20 payload")

// BRC20Protocol defines brc-20 protocol identifier.
const BRC20Protocol = "brc-20"

// BRC20ContentType defines content type of the brc-20 inscriptions.
const BRC20ContentType = "text/plain;charset=utf-8"

// maxBRC20Decimals defines maximum decimals allowed for brc-20 token.
const maxBRC20Decimals = 18

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BRC20Operation defines brc-20 operation.
type BRC20Operation string

const (
	// BRC20OperationDeploy defines brc-20 token deploy.
	BRC20OperationDeploy BRC20Operation = "deploy"
	// BRC20OperationMint defines brc-20 token mint.
	BRC20OperationMint BRC20Operation = "mint"
	// BRC20OperationTransfer defines brc-20 transfer inscription, moved afterwards to the recipient.
	BRC20OperationTransfer BRC20Operation = "transfer"
)

// BRC20 describes json payload of the brc-20 inscription.
type BRC20 struct {
	Protocol  string         `json:"p"`
	Operation BRC20Operation `json:"op"`
	Tick      string         `json:"tick"`
	Max       string         `json:"max,omitempty"`
	Limit     string         `json:"lim,omitempty"`
	Decimals  string         `json:"dec,omitempty"`
	Amount    string         `json:"amt,omitempty"`
}

// NewBRC20Deploy returns brc-20 deploy payload.
func NewBRC20Deploy(tick string, maxSupply, limit decimal.Decimal, decimals uint8) (*BRC20, error) {
	if !maxSupply.IsPositive() || limit.IsNegative() || limit.GreaterThan(maxSupply) || decimals > maxBRC20Decimals {
		return nil, ErrInvalidBRC20
	}

	payload := &BRC20{
		Protocol:  BRC20Protocol,
		Operation: BRC20OperationDeploy,
		Tick:      tick,
		Max:       maxSupply.String(),
		Decimals:  strconv.Itoa(int(decimals)),
	}
	if limit.IsPositive() {
		payload.Limit = limit.String()
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}

// NewBRC20Mint returns brc-20 mint payload.
func NewBRC20Mint(tick string, amount decimal.Decimal) (*BRC20, error) {
	return newBRC20Amount(BRC20OperationMint, tick, amount)
}

// NewBRC20Transfer returns brc-20 transfer payload.
func NewBRC20Transfer(tick string, amount decimal.Decimal) (*BRC20, error) {
	return newBRC20Amount(BRC20OperationTransfer, tick, amount)
}

// newBRC20Amount returns brc-20 payload of the operation with amount.
func newBRC20Amount(operation BRC20Operation, tick string, amount decimal.Decimal) (*BRC20, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidBRC20
	}

	payload := &BRC20{
		Protocol:  BRC20Protocol,
		Operation: operation,
		Tick:      tick,
		Amount:    amount.String(),
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}

// Validate checks brc-20 payload fields.
func (b *BRC20) Validate() error {
	if b.Protocol != BRC20Protocol {
		return ErrInvalidBRC20
	}

	// INFO: 4 bytes ticker, 5 bytes ticker is reserved for self-mint tokens.
	if len(b.Tick) != 4 && len(b.Tick) != 5 {
		return ErrInvalidBRC20
	}

	switch b.Operation {
	case BRC20OperationDeploy:
		if !isPositiveDecimal(b.Max) {
			return ErrInvalidBRC20
		}

		if b.Limit != "" && !isPositiveDecimal(b.Limit) {
			return ErrInvalidBRC20
		}

		if b.Decimals != "" {
			decimals, err := strconv.Atoi(b.Decimals)
			if err != nil || decimals < 0 || decimals > maxBRC20Decimals {
				return ErrInvalidBRC20
			}
		}
	case BRC20OperationMint, BRC20OperationTransfer:
		if !isPositiveDecimal(b.Amount) {
			return ErrInvalidBRC20
		}
	default:
		return ErrInvalidBRC20
	}

	return nil
}

// IntoInscription returns brc-20 payload as inscription.
func (b *BRC20) IntoInscription() (*Inscription, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	return &Inscription{
		Body:        body,
		ContentType: BRC20ContentType,
	}, nil
}

// ParseBRC20 parses brc-20 payload from inscription body.
func ParseBRC20(inscription *Inscription) (*BRC20, error) {
	payload := new(BRC20)
	if err := json.Unmarshal(inscription.Body, payload); err != nil {
		return nil, errors.Join(ErrInvalidBRC20, err)
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	return payload, nil
}

// isPositiveDecimal returns true if value is a positive decimal number.
func isPositiveDecimal(value string) bool {
	d, err := decimal.NewFromString(value)

	return err == nil && d.IsPositive()
}
