package crypto

import (
	base64_ "assetflow/internal/utils/base64"
	"assetflow/internal/utils/logger"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/ssh"
)

var log = logger.New("crypto")

var PrivateKey *rsa.PrivateKey
var PublicKey *rsa.PublicKey

func InitializeKeys(privateKeyEnv string) error {

	log.Info("Initializing keys")

	if privateKeyEnv == "" {
		return errors.New("private key not found")
	}

	privateKeyEnv, err := base64_.DecodeFromBase64(privateKeyEnv)

	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}

	key, err := ssh.ParseRawPrivateKey([]byte(privateKeyEnv))

	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}

	PrivateKey = key.(*rsa.PrivateKey)
	PublicKey = &PrivateKey.PublicKey
	return nil
}

// SignAckToken mints a signed deep-link token carrying a handover id. The
// token is embedded in the notification sent to the receiver so they can
// acknowledge from the email without a session.
func SignAckToken(handoverID, receiverSocialID string) (string, error) {

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"handover_id": handoverID,
		"receiver":    receiverSocialID,
		"exp":         time.Now().Add(time.Hour * 72).Unix(),
	})

	signedString, err := token.SignedString(PrivateKey)

	if err != nil {
		return "", err
	}

	return signedString, nil
}

// VerifyAckToken validates a deep-link token and returns the handover id and
// receiver social id it was minted for.
func VerifyAckToken(tokenString string) (string, string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return PublicKey, nil
	})
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid acknowledgment token")
	}

	handoverID, _ := claims["handover_id"].(string)
	receiver, _ := claims["receiver"].(string)
	if handoverID == "" || receiver == "" {
		return "", "", errors.New("malformed acknowledgment token")
	}
	return handoverID, receiver, nil
}

// Encrypt encrypts small payloads with the server keypair. Used by the
// operator helper for sealing secrets passed through env files.
func Encrypt(plaintext string) (string, error) {
	if PublicKey == nil {
		return "", errors.New("public key not initialized")
	}

	ciphertext, err := rsa.EncryptOAEP(
		sha256.New(),
		rand.Reader,
		PublicKey,
		[]byte(plaintext),
		nil,
	)

	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func Decrypt(ciphertext string) (string, error) {
	if PrivateKey == nil {
		return "", errors.New("private key not initialized")
	}

	decodedCiphertext, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	plaintext, err := rsa.DecryptOAEP(
		sha256.New(),
		rand.Reader,
		PrivateKey,
		decodedCiphertext,
		nil,
	)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// ComputeWebhookSignature signs an identity-provider webhook body so the sync
// endpoint can verify the payload origin.
func ComputeWebhookSignature(requestBody []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(requestBody)
	return hex.EncodeToString(h.Sum(nil))
}
