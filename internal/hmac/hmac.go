// Package hmac implements an HMAC that avoids the allocation crypto/hmac.New
// makes on every call, so it can be recycled through a sync.Pool.
package hmac

import (
	"crypto/subtle"
	"hash"
)

// hmac implements FIPS 198-1 to the same algorithm as crypto/hmac, but keeps
// the inner/outer hash state and pad buffers alive across resetTo calls
// instead of allocating them fresh every time a key changes.
type hmac struct {
	outer, inner hash.Hash
	ipad, opad   []byte
	blocksize    int
}

// New returns an HMAC using the given hash constructor and key. The returned
// hash.Hash may be type-asserted back to *hmac to call resetTo.
func New(h func() hash.Hash, key []byte) hash.Hash {
	hm := &hmac{
		outer:     h(),
		inner:     h(),
		blocksize: h().(interface{ BlockSize() int }).BlockSize(),
	}
	hm.ipad = make([]byte, hm.blocksize)
	hm.opad = make([]byte, hm.blocksize)
	hm.resetTo(key)

	return hm
}

func (h *hmac) Write(p []byte) (int, error) {
	return h.inner.Write(p)
}

func (h *hmac) Sum(in []byte) []byte {
	origLen := len(in)
	in = h.inner.Sum(in)
	h.outer.Reset()
	h.outer.Write(h.opad)   //nolint:errcheck,gosec
	h.outer.Write(in[origLen:]) //nolint:errcheck,gosec

	return h.outer.Sum(in[:origLen])
}

func (h *hmac) Reset() {
	h.inner.Reset()
	h.inner.Write(h.ipad) //nolint:errcheck,gosec
}

func (h *hmac) Size() int { return h.outer.Size() }

func (h *hmac) BlockSize() int { return h.blocksize }

func assertHMACSize(h *hmac, size, blocksize int) {
	if h.Size() != size || h.BlockSize() != blocksize {
		panic("hmac: pooled hash has unexpected size") //nolint:forbidigo
	}
}

// Equal reports whether mac1 and mac2 are the same HMAC value, comparing in
// constant time to avoid leaking timing information to an attacker probing
// MESSAGE-INTEGRITY or FINGERPRINT validation.
func Equal(mac1, mac2 []byte) bool {
	return subtle.ConstantTimeCompare(mac1, mac2) == 1
}
