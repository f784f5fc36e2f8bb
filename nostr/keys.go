package nostr

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// GeneratePrivateKey returns a new random 32-byte secp256k1 secret key,
// hex-encoded. The all-zero key (the only 32-byte string that is not a
// valid scalar for this curve in practice) is rejected and re-rolled.
func GeneratePrivateKey() string {
	var buf [32]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		priv, _ := btcec.PrivKeyFromBytes(buf[:])
		if !priv.Key.IsZero() {
			return hex.EncodeToString(buf[:])
		}
	}
}

// GetPublicKey derives the x-only public key (BIP-340) for a hex secret key.
func GetPublicKey(secretKeyHex string) (string, error) {
	priv, err := privKeyFromHex(secretKeyHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}

func privKeyFromHex(secretKeyHex string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("secret key must be 32 bytes, got %d", len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}

func pubKeyFromXOnlyHex(pubKeyHex string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("public key must be 32 bytes, got %d", len(b))
	}
	return schnorr.ParsePubKey(b)
}
