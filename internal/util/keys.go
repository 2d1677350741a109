package util

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// maxKeyLen bounds the user part of a storage key. Longer keys are replaced
// by a short digest so that remote stores with key limits (Cloudflare KV: 512
// bytes) accept them.
const maxKeyLen = 256

// Key returns "<ns>:<key>", or key alone when ns is empty.
func Key(ns, key string) string {
	if len(key) > maxKeyLen {
		key = "h:" + digest(key)
	}
	if ns == "" {
		return key
	}
	return ns + ":" + key
}

// digest is a fixed-width 16 hex char xxhash of s.
func digest(s string) string {
	h := strconv.FormatUint(xxhash.Sum64String(s), 16)
	return strings.Repeat("0", 16-len(h)) + h
}

// IsHex32 reports whether s is exactly 32 hexadecimal characters.
func IsHex32(s string) bool {
	if len(s) != 32 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F'))
	}) < 0
}
