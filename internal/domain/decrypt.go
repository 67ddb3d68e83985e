package domain

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"unicode/utf8"
)

// urlSeedTable and the constants below mirror the platform client's key
// derivation byte-for-byte. They are a shared secret baked into the app, not
// data this tool chooses.
var urlSeedTable = [10]string{
	"3$fI*1", "7Y5s_@", "Jd_#rM", "P~wc>9", ".of#4a",
	"ga+f;S", "M?d}#f", "aI8=37", "k@x&d6", "5T^d.o",
}

const urlKeySuffix = "sp_Dh%voQ!20*22@"

var urlCipherIV = []byte("voq^sp_dnl%Ms+af")

// padRunes is the amount of anti-replay noise the platform adds to each end
// of an encrypted URL.
const padRunes = 6

// DecryptionError reports a paid media URL that could not be decrypted into
// usable text, usually because the key was derived from stale identifiers.
// Callers skip the affected item; the error is never fatal to the process.
type DecryptionError struct {
	Cause error
}

func (e *DecryptionError) Error() string { return "decrypt media url: " + e.Cause.Error() }
func (e *DecryptionError) Unwrap() error { return e.Cause }

func decryptFailed(format string, args ...any) error {
	return &DecryptionError{Cause: fmt.Errorf(format, args...)}
}

// DecryptMediaURL reverses the platform's obfuscation of a paid media URL.
//
// timestampMillis is the content's timestamp (the letter or postcard
// updatedAt), not necessarily the message's. The AES-256-CBC key is the
// literal bytes of "<seed1>_<seed2><suffix><last3>", where the seeds come
// from the fixed table indexed by userID mod 10 and seconds mod 10, and
// last3 is seconds mod 1000 in decimal.
func DecryptMediaURL(timestampMillis, userID int64, encrypted string) (string, error) {
	seconds := timestampMillis / 1000
	key := fmt.Sprintf("%s_%s%s%d",
		urlSeedTable[userID%10],
		urlSeedTable[seconds%10],
		urlKeySuffix,
		seconds%1000,
	)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", decryptFailed("invalid base64 payload: %w", err)
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", decryptFailed("derived key unusable: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", decryptFailed("ciphertext length %d is not a block multiple", len(raw))
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, urlCipherIV).CryptBlocks(plain, raw)

	plain, err = stripPKCS7(plain)
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	if !utf8.Valid(plain) {
		return "", decryptFailed("plaintext is not valid utf-8")
	}
	runes := []rune(string(plain))
	if len(runes) <= 2*padRunes {
		return "", decryptFailed("plaintext too short after unpadding: %d runes", len(runes))
	}
	return string(runes[padRunes : len(runes)-padRunes]), nil
}

func stripPKCS7(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, fmt.Errorf("invalid padding byte: %d", n)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return b[:len(b)-n], nil
}
