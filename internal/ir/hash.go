package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainDescriptor = "webstorage/descriptor/v1"
	DomainRecord     = "webstorage/record/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DescriptorDigest computes a stable digest of a descriptor.
// Audit logs carry the digest next to the text so rejected descriptors can
// be correlated across clients without comparing long strings.
func DescriptorDigest(desc StatementDescriptor) (string, error) {
	obj := Object{
		"category":   String(desc.Category.Name),
		"data_class": String(desc.Category.DataClass),
		"text":       String(desc.Text),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DescriptorDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDescriptor, canonical), nil
}

// RecordDigest computes a content digest for a stored record.
func RecordDigest(category string, doc Object) (string, error) {
	canonical, err := MarshalCanonical(doc)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, append([]byte(category+"\x00"), canonical...)), nil
}
