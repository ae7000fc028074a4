package orchestrator

import (
	"crypto/rand"
	"math/big"
)

const (
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	secretLength   = 60
)

func newClientSecret() (string, error) {
	limit := big.NewInt(int64(len(secretAlphabet)))
	b := make([]byte, secretLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = secretAlphabet[n.Int64()]
	}
	return string(b), nil
}
