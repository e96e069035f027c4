package hmac

import (
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"hash"
)

// hmacTest is one HMAC known-answer test vector.
type hmacTest struct {
	hash      func() hash.Hash
	key       []byte
	in        []byte
	out       string
	size      int
	blocksize int
}

// hmacTests returns known-answer vectors for HMAC-SHA1 and HMAC-SHA256,
// both over the same key and input.
func hmacTests() []hmacTest {
	return []hmacTest{
		{
			hash:      sha1.New,
			key:       []byte("key"),
			in:        []byte("The quick brown fox jumps over the lazy dog"),
			out:       "de7c9b85b8b78aa6bc8a7a36f70a90701c9db4d9",
			size:      sha1.Size,
			blocksize: sha1.BlockSize,
		},
		{
			hash:      sha256.New,
			key:       []byte("key"),
			in:        []byte("The quick brown fox jumps over the lazy dog"),
			out:       "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
			size:      sha256.Size,
			blocksize: sha256.BlockSize,
		},
	}
}
