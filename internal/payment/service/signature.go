package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

func hmacHex(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCaptureSignature checks the client-submitted capture callback. The
// signed message is "<gateway_order_id>|<gateway_payment_id>", matching what
// the gateway signs at checkout completion.
func VerifyCaptureSignature(gatewayOrderID, gatewayPaymentID, signature, secret string) bool {
	expected := hmacHex(secret, []byte(gatewayOrderID+"|"+gatewayPaymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks a webhook delivery against the raw request
// body. The body must be the exact bytes received; re-serialized JSON will
// not verify.
func VerifyWebhookSignature(rawBody []byte, signature, secret string) bool {
	expected := hmacHex(secret, rawBody)
	return hmac.Equal([]byte(expected), []byte(signature))
}
