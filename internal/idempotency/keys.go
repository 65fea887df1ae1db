package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Kind namespaces keys by the delivery they deduplicate.
type Kind string

const (
	KindCallback     Kind = "callback"
	KindMessage      Kind = "message"
	KindPaymentEvent Kind = "payment"
)

// Longer keys are stored by digest.
const maxKeyLen = 128

// CallbackKey identifies one Telegram callback query.
func CallbackKey(callbackID string) string {
	return buildKey(KindCallback, callbackID)
}

// MessageKey identifies one message in a chat. Callbacks without an id fall back to it.
func MessageKey(chatID int64, messageID int) string {
	return buildKey(KindMessage, strconv.FormatInt(chatID, 10), strconv.Itoa(messageID))
}

// PaymentEventKey identifies one gateway event for a payment reference, so a
// redelivered webhook resolves the reference once.
func PaymentEventKey(event, reference string) string {
	return buildKey(KindPaymentEvent, event, reference)
}

func buildKey(kind Kind, parts ...string) string {
	key := string(kind) + ":" + strings.Join(parts, ":")
	if len(key) <= maxKeyLen {
		return key
	}

	sum := sha256.Sum256([]byte(key))
	return string(kind) + ":sha256:" + hex.EncodeToString(sum[:])
}
