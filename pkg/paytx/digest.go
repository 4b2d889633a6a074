package paytx

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// ClockID is the well-known identifier of the shared ledger clock.
const ClockID = "0x0000000000000000000000000000000000000000000000000000000000000006"

// Digest returns the content identifier of envelope bytes (CIDv1, raw codec, sha2-256).
func Digest(b []byte) (string, error) {
	sum, err := multihash.Sum(b, multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "could not hash envelope")
	}
	return cid.NewCidV1(cid.Raw, sum).String(), nil
}

// ParseDigest parses a transaction digest.
func ParseDigest(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "invalid digest")
	}
	if c.Prefix().Codec != cid.Raw || c.Prefix().MhType != multihash.SHA2_256 {
		return cid.Undef, errors.New("invalid digest: unexpected codec or hash")
	}
	return c, nil
}

// DeriveObjectID returns the identifier of the n-th object created by the transaction digest.
func DeriveObjectID(digest string, n uint64) string {
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], n)

	h, _ := blake2b.New256(nil)
	h.Write([]byte(digest))
	h.Write(counter[:])
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// IsObjectID returns true if s is a well-formed object identifier.
func IsObjectID(s string) bool {
	return isHex32(s)
}

// IsAddress returns true if s is a well-formed address.
func IsAddress(s string) bool {
	return isHex32(s)
}

// isHex32 accepts the lowercase hex form only, so an identity has a single spelling.
func isHex32(s string) bool {
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return false
	}
	for _, c := range s[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
