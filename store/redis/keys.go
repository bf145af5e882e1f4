package redis

import "strconv"

// Redis key naming conventions for hookline data.
// All keys are prefixed with "hookline:" to avoid collisions.

const keyPrefix = "hookline:"

// webhookKey returns the key for a webhook entity: hookline:webhook:{id}
func webhookKey(id string) string { return keyPrefix + "webhook:" + id }

// webhookIDsKey is the Set tracking all webhook IDs for enumeration.
const webhookIDsKey = keyPrefix + "webhook_ids"

// attemptKey returns the key for one delivery attempt:
// hookline:attempt:{deliveryID}:{n}
func attemptKey(deliveryID string, attempt int) string {
	return keyPrefix + "attempt:" + deliveryID + ":" + strconv.Itoa(attempt)
}

// deliveryAttemptsKey is the Set tracking attempt numbers for a delivery:
// hookline:delivery:{deliveryID}
func deliveryAttemptsKey(deliveryID string) string {
	return keyPrefix + "delivery:" + deliveryID
}

// webhookAttemptsKey is the Set tracking attempt keys for a webhook:
// hookline:webhook_attempts:{webhookID}
func webhookAttemptsKey(webhookID string) string {
	return keyPrefix + "webhook_attempts:" + webhookID
}

// attemptIDsKey is the Set tracking all attempt keys for enumeration.
const attemptIDsKey = keyPrefix + "attempt_ids"
