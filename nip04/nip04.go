// Package nip04 implements the NIP-04 direct-message encryption scheme: an
// ECDH shared secret between sender and recipient keys, used as an
// AES-256-CBC key with a random IV, wire-encoded as
// base64(ciphertext) + "?iv=" + base64(iv).
package nip04

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ComputeSharedSecret derives the AES-256 key shared between our secret key
// and their x-only public key: sha256 of the ECDH-shared point's x
// coordinate, matching the NIP-04 reference derivation.
func ComputeSharedSecret(ourSecretKeyHex, theirPubKeyHex string) ([]byte, error) {
	skBytes, err := hex.DecodeString(ourSecretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("nip04: decode secret key: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(skBytes)

	pkBytes, err := hex.DecodeString(theirPubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("nip04: decode public key: %w", err)
	}
	if len(pkBytes) != 32 {
		return nil, fmt.Errorf("nip04: public key must be 32 bytes, got %d", len(pkBytes))
	}
	// x-only keys are even-y by BIP-340 convention; prefix with 0x02 to get a
	// compressed point btcec can parse.
	compressed := append([]byte{0x02}, pkBytes...)
	pub, err := btcec.ParsePubKey(compressed)
	if err != nil {
		return nil, fmt.Errorf("nip04: parse public key: %w", err)
	}

	point := new(btcec.JacobianPoint)
	pub.AsJacobian(point)

	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(&priv.Key, point, &result)
	result.ToAffine()
	xBytes := result.X.Bytes()

	secret := sha256.Sum256(xBytes[:])
	return secret[:], nil
}

// Encrypt produces the NIP-04 content string for plaintext under sharedSecret.
func Encrypt(plaintext string, sharedSecret []byte) (string, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("nip04: new cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("nip04: read iv: %w", err)
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt parses a NIP-04 content string and recovers the plaintext under
// sharedSecret.
func Decrypt(content string, sharedSecret []byte) (string, error) {
	parts := strings.SplitN(content, "?iv=", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("nip04: content missing iv marker")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("nip04: decode ciphertext: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("nip04: decode iv: %w", err)
	}
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("nip04: new cipher: %w", err)
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("nip04: ciphertext not block-aligned")
	}
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)
	plain, err := pkcs7Unpad(plainPadded)
	if err != nil {
		return "", fmt.Errorf("nip04: unpad: %w", err)
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	return data[:len(data)-padLen], nil
}
