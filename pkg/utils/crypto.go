package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SealedPrefix marks an access token stored encrypted by SealCredential.
const SealedPrefix = "enc:"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

func Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	nonce := make([]byte, aesGCM.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		log.Info(err.Error())
		return "", err
	}

	// nonce || ciphertext
	sealed := aesGCM.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encryptedData string, key []byte) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encryptedData)
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	nonceSize := aesGCM.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		log.Info(err.Error())
		return "", err
	}

	return string(plaintext), nil
}

func SealCredential(token string, key []byte) (string, error) {
	sealed, err := Encrypt([]byte(token), key)
	if err != nil {
		return "", err
	}
	return SealedPrefix + sealed, nil
}

// OpenCredential returns the usable token for a stored value. Values
// without SealedPrefix are returned unchanged.
func OpenCredential(stored string, key []byte) (string, error) {
	if !strings.HasPrefix(stored, SealedPrefix) {
		return stored, nil
	}
	return Decrypt(strings.TrimPrefix(stored, SealedPrefix), key)
}
