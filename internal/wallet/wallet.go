// Package wallet holds the bot's Solana signing keypair and provides
// transaction signing helpers. The keypair is read-only after construction
// and safe for concurrent use.
package wallet

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// Wallet wraps an ed25519 keypair.
type Wallet struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// New creates a Wallet from a base58-encoded private key.
func New(privateKeyBase58 string) (*Wallet, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid private key: %w", err)
	}
	return &Wallet{key: key, pub: key.PublicKey()}, nil
}

// Load resolves the private key from the given KeyConfig (raw or encrypted
// key file) and constructs a Wallet from it.
func Load(cfg KeyConfig) (*Wallet, error) {
	raw, err := LoadKey(cfg)
	if err != nil {
		return nil, err
	}
	return New(raw)
}

// PublicKey returns the wallet's public key.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.pub
}

// Address returns the wallet's base58 address string.
func (w *Wallet) Address() string {
	return w.pub.String()
}

// SignBase64 deserializes a base64-encoded unsigned transaction (as returned
// by the swap builder), signs it with the wallet's key, and returns the
// signed transaction together with the base58 string of its first signature.
func (w *Wallet) SignBase64(txBase64 string) (*solana.Transaction, string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, "", fmt.Errorf("wallet: decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, "", fmt.Errorf("wallet: deserialize transaction: %w", err)
	}

	if err := w.sign(tx); err != nil {
		return nil, "", err
	}
	return tx, tx.Signatures[0].String(), nil
}

// TransferTransaction builds and signs a lamport transfer from the wallet to
// the given recipient, using the provided recent blockhash. The relay client
// uses this to attach the priority-fee payment to every bundle.
func (w *Wallet) TransferTransaction(to solana.PublicKey, lamports uint64, blockhash solana.Hash) (*solana.Transaction, error) {
	ix := system.NewTransferInstruction(lamports, w.pub, to).Build()

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(w.pub),
	)
	if err != nil {
		return nil, fmt.Errorf("wallet: build transfer: %w", err)
	}

	if err := w.sign(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (w *Wallet) sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("wallet: sign: %w", err)
	}
	return nil
}
