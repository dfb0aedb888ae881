package push

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/marcus/shopsync/internal/models"
)

// GenerateReceiverKeys creates the transport credentials for a new
// subscription: a P-256 ECDH keypair (p256dh is the uncompressed public
// point) and a 16-byte auth secret, both base64url encoded. The private half
// is held by the receiving side; this agent only originates notifications.
func GenerateReceiverKeys() (models.SubscriptionKeys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return models.SubscriptionKeys{}, fmt.Errorf("generate p256 keypair: %w", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		return models.SubscriptionKeys{}, fmt.Errorf("generate auth secret: %w", err)
	}
	return models.SubscriptionKeys{
		P256dh: base64.RawURLEncoding.EncodeToString(priv.PublicKey().Bytes()),
		Auth:   base64.RawURLEncoding.EncodeToString(auth),
	}, nil
}

// GenerateVAPIDKeys creates a new VAPID signing keypair for push delivery.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}
