package redis

// Redis key naming conventions for hookrelay data.
// All keys are prefixed with "hookrelay:" to avoid collisions.

const keyPrefix = "hookrelay:"

// itemKeyPrefix is the prefix for item body Hashes: hookrelay:item:{id}
const itemKeyPrefix = keyPrefix + "item:"

// itemKey returns the key for an item body Hash.
func itemKey(id string) string { return itemKeyPrefix + id }

// pendingKey is the List holding pending item IDs, FIFO.
const pendingKey = keyPrefix + "pending"

// inFlightKey is the List holding claimed item IDs, FIFO.
const inFlightKey = keyPrefix + "inflight"

// counterKey returns the key for a stats counter: hookrelay:stat:{name}
func counterKey(name string) string { return keyPrefix + "stat:" + name }

// lockKey stores the scheduler lock holder, with TTL.
const lockKey = keyPrefix + "lock"

// rateKey stores the last-dispatch rate marker, with TTL.
const rateKey = keyPrefix + "last_dispatch"
