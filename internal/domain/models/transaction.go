package models

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// UnsignedTransaction holds the raw fields of a sponsored transaction.
// A nil To marks a contract creation.
type UnsignedTransaction struct {
	ChainID  uint64
	Nonce    uint64
	To       *common.Address
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
}

// IsCreation reports whether the transaction creates a contract
func (t *UnsignedTransaction) IsCreation() bool {
	return t.To == nil
}

// Legacy returns the go-ethereum representation of the transaction
func (t *UnsignedTransaction) Legacy() *types.Transaction {
	gasPrice := t.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    t.Nonce,
		GasPrice: new(big.Int).Set(gasPrice),
		Gas:      t.GasLimit,
		To:       t.To,
		Value:    new(big.Int),
		Data:     t.Data,
	})
}

// Signer returns the EIP-155 signer for the transaction's chain
func (t *UnsignedTransaction) Signer() types.Signer {
	return types.LatestSignerForChainID(new(big.Int).SetUint64(t.ChainID))
}

// SigningHash is the digest the controller signs
func (t *UnsignedTransaction) SigningHash() common.Hash {
	return t.Signer().Hash(t.Legacy())
}

// Encode returns the RLP encoding of the unsigned transaction
func (t *UnsignedTransaction) Encode() ([]byte, error) {
	return t.Legacy().MarshalBinary()
}

// Proof is the controller's authorization over a transaction
type Proof struct {
	Signer    common.Address
	Signature []byte // 65 bytes, r || s || v with v in {0, 1}
}

// SignedTransaction is an unsigned transaction plus its proof. It is owned
// by the orchestration step that created it until handed to the relay.
type SignedTransaction struct {
	*UnsignedTransaction
	Proof *Proof
	Hash  common.Hash
	Raw   []byte
}

// NewSignedTransaction attaches proof to tx and checks that the signature
// recovers to the proof's signer.
func NewSignedTransaction(tx *UnsignedTransaction, proof *Proof) (*SignedTransaction, error) {
	if proof == nil {
		return nil, fmt.Errorf("missing authorization proof")
	}
	signer := tx.Signer()
	signed, err := tx.Legacy().WithSignature(signer, proof.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %w", err)
	}
	from, err := types.Sender(signer, signed)
	if err != nil {
		return nil, fmt.Errorf("failed to recover signer: %w", err)
	}
	if from != proof.Signer {
		return nil, fmt.Errorf("signature recovers to %s, expected %s", from.Hex(), proof.Signer.Hex())
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return &SignedTransaction{
		UnsignedTransaction: tx,
		Proof:               proof,
		Hash:                signed.Hash(),
		Raw:                 raw,
	}, nil
}
