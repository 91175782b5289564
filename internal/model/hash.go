package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed references.
// The version suffix leaves room for a future algorithm migration.
const (
	DomainCommitment = "pledge/commitment/v1"
	DomainVault      = "pledge/vault/v1"
	DomainAccount    = "pledge/account/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func hashObject(domain string, obj Object) (string, error) {
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", err
	}
	return hashWithDomain(domain, canonical), nil
}

// DeriveCommitmentRef computes the stable identity of a commitment from its
// creator and description alone. The description is NFC-normalised by the
// canonical encoder, so composed and decomposed spellings collide.
//
// The same (creator, description) pair always yields the same ref; the store
// relies on this to reject re-creation.
func DeriveCommitmentRef(creator Identity, description string) (CommitmentRef, error) {
	h, err := hashObject(DomainCommitment, Object{
		"creator":     String(creator),
		"description": String(description),
	})
	if err != nil {
		return "", fmt.Errorf("DeriveCommitmentRef: %w", err)
	}
	return CommitmentRef(h), nil
}

// DeriveVaultRef computes the account that holds the locked funds of a
// commitment for the given asset. It is owned by the commitment itself.
func DeriveVaultRef(ref CommitmentRef, asset Asset) (VaultRef, error) {
	h, err := hashObject(DomainVault, Object{
		"asset":      String(asset),
		"commitment": String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("DeriveVaultRef: %w", err)
	}
	return VaultRef(h), nil
}

// DeriveDestination resolves the canonical account of owner for asset.
// It is a pure function: the engine uses it to check caller-supplied
// destinations instead of trusting them.
func DeriveDestination(owner Identity, asset Asset) (AccountRef, error) {
	h, err := hashObject(DomainAccount, Object{
		"asset": String(asset),
		"owner": String(owner),
	})
	if err != nil {
		return "", fmt.Errorf("DeriveDestination: %w", err)
	}
	return AccountRef(h), nil
}

// MustDeriveCommitmentRef is like DeriveCommitmentRef but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDeriveCommitmentRef(creator Identity, description string) CommitmentRef {
	ref, err := DeriveCommitmentRef(creator, description)
	if err != nil {
		panic(err)
	}
	return ref
}

// MustDeriveDestination is like DeriveDestination but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDeriveDestination(owner Identity, asset Asset) AccountRef {
	ref, err := DeriveDestination(owner, asset)
	if err != nil {
		panic(err)
	}
	return ref
}

// MustDeriveVaultRef is like DeriveVaultRef but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDeriveVaultRef(ref CommitmentRef, asset Asset) VaultRef {
	v, err := DeriveVaultRef(ref, asset)
	if err != nil {
		panic(err)
	}
	return v
}
