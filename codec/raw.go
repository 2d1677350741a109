package codec

// String stores Go strings as their raw bytes. Attestation origins are kept
// this way so that Redis and Cloudflare KV hold the same plain value.
type String struct{}

var _ Codec[string] = String{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
