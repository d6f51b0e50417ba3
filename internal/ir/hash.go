package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainEntity = "dsquery/entity/v1"
	DomainResult = "dsquery/result/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EntityDigest computes a content digest of an entity's canonical record.
// Two entities have the same digest iff they have the same key and the same
// property values in the same per-property order.
func EntityDigest(e Entity) (string, error) {
	rec, err := EncodeEntity(e)
	if err != nil {
		return "", fmt.Errorf("EntityDigest: %w", err)
	}
	return hashWithDomain(DomainEntity, rec), nil
}

// ResultDigest computes an order-sensitive digest over a result list.
// Used to compare query results across runs and backends.
func ResultDigest(entities []Entity) (string, error) {
	list := make([]any, len(entities))
	for i, e := range entities {
		d, err := EntityDigest(e)
		if err != nil {
			return "", fmt.Errorf("ResultDigest[%d]: %w", i, err)
		}
		list[i] = d
	}
	data, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("ResultDigest: %w", err)
	}
	return hashWithDomain(DomainResult, data), nil
}
