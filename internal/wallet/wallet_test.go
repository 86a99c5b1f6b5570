package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := solana.NewWallet().PrivateKey.String()

	blob, err := EncryptKey(key, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != key {
		t.Fatalf("round trip mismatch: got %s want %s", got, key)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	key := solana.NewWallet().PrivateKey.String()

	blob, err := EncryptKey(key, "correct")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected decryption failure with wrong password")
	}
}

func TestLoadKeyRejectsGarbage(t *testing.T) {
	if _, err := LoadKey(KeyConfig{RawPrivateKey: "not base58 !!!"}); err == nil {
		t.Fatal("expected error for invalid base58 key")
	}
	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error when no key source is configured")
	}
}

func TestTransferTransactionSigned(t *testing.T) {
	w, err := New(solana.NewWallet().PrivateKey.String())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recipient := solana.NewWallet().PublicKey()
	var blockhash solana.Hash

	tx, err := w.TransferTransaction(recipient, 10_000, blockhash)
	if err != nil {
		t.Fatalf("TransferTransaction: %v", err)
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		t.Fatal("transfer transaction is not signed")
	}
}
