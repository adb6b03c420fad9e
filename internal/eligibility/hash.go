package eligibility

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	id "aurum/pkg/domain"
)

// HashSize is the byte length of all engine hashes.
const HashSize = 32

func keccak(parts ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func be64(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

// LeafHash computes the merkle leaf for an eligible account.
func LeafHash(addr id.Address) []byte {
	return keccak(addr.Bytes())
}

// MessageHash computes the signed payload for a recurring mint request.
func MessageHash(addr id.Address, device id.DeviceID, timestamp int64) []byte {
	return keccak(addr.Bytes(), []byte(device), be64(timestamp))
}

// BindingKey derives the replay-prevention key for a first-time mint. The
// account is part of the key so a device identifier cannot be replayed
// under a different address.
func BindingKey(addr id.Address, device id.DeviceID) string {
	return hex.EncodeToString(keccak(addr.Bytes(), []byte(device)))
}

// PeriodBindingKey derives the replay-prevention key for one recurring
// mint cycle.
func PeriodBindingKey(addr id.Address, device id.DeviceID, periodBucket int64) string {
	return hex.EncodeToString(keccak(addr.Bytes(), []byte(device), be64(periodBucket)))
}

// combine folds two merkle nodes in sorted order, so proofs carry no
// left/right direction bits.
func combine(a, b []byte) []byte {
	for i := 0; i < HashSize; i++ {
		if a[i] < b[i] {
			return keccak(a, b)
		}
		if a[i] > b[i] {
			return keccak(b, a)
		}
	}
	return keccak(a, b)
}
