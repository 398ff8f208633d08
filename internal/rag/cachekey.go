package rag

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// CacheKey derives the canonical response-cache key from the normalized query
// and the requesting identity. The same derivation is used everywhere a
// response cache key is needed.
func CacheKey(query string, userID string, conversationID string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	payload := normalized + "\x00" + userID
	if conversationID != "" {
		payload += "\x00" + conversationID
	}
	sum := md5.Sum([]byte(payload))
	return "rag:" + hex.EncodeToString(sum[:])
}
