package eligibility

import (
	"bytes"
	"sort"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// BuildRoot computes the merkle root over a verified-eligibility list.
// The collaborating application layer calls this (through the admin
// endpoint) whenever its off-chain list changes. Leaves are sorted so the
// root is independent of list order; odd nodes promote unpaired.
func BuildRoot(accounts []id.Address) ([]byte, error) {
	leaves, err := sortedLeaves(accounts)
	if err != nil {
		return nil, err
	}

	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, combine(level[i], level[i+1]))
		}
		level = next
	}
	return level[0], nil
}

// ProofFor computes the inclusion proof for one account in the list.
func ProofFor(accounts []id.Address, target id.Address) ([][]byte, error) {
	leaves, err := sortedLeaves(accounts)
	if err != nil {
		return nil, err
	}

	targetLeaf := LeafHash(target)
	index := -1
	for i, leaf := range leaves {
		if bytes.Equal(leaf, targetLeaf) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "account not in eligibility list")
	}

	var proof [][]byte
	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			if i == index {
				proof = append(proof, level[i+1])
			} else if i+1 == index {
				proof = append(proof, level[i])
			}
			next = append(next, combine(level[i], level[i+1]))
		}
		index /= 2
		level = next
	}
	return proof, nil
}

func sortedLeaves(accounts []id.Address) ([][]byte, error) {
	if len(accounts) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "eligibility list is empty")
	}
	leaves := make([][]byte, 0, len(accounts))
	for _, addr := range accounts {
		if addr.IsZero() {
			return nil, dErrors.New(dErrors.CodeInvalidAddress, "eligibility list contains an empty address")
		}
		leaves = append(leaves, LeafHash(addr))
	}
	sort.Slice(leaves, func(i, j int) bool { return bytes.Compare(leaves[i], leaves[j]) < 0 })
	return leaves, nil
}
