package state

import "encoding/binary"

// Key layout. Record keys embed numeric identifiers as 8-byte big-endian so
// prefix scans return them in ascending order; sequence counters live under
// distinct prefixes so they never appear in record scans.
const (
	marketPrefix      = "launch/market/"
	marketSeqKey      = "launch/market-seq"
	pausePrefix       = "launch/pause/"
	quorumPrefix      = "quorum/proposal/"
	quorumSeqKey      = "quorum/proposal-seq"
	weightPrefix      = "quorum/weight/"
	weightTotalPrefix = "quorum/weight-total/"
	govPrefix         = "gov/proposal/"
	govSeqKey         = "gov/proposal-seq"
	govVotePrefix     = "gov/vote/"
	accountPrefix     = "account/"
	bankSupplyPrefix  = "bank/supply/"
	bankBalancePrefix = "bank/balance/"
)

func u64Key(prefix string, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func marketKey(id uint64) []byte { return u64Key(marketPrefix, id) }

func pauseKey(marketID uint64) []byte { return u64Key(pausePrefix, marketID) }

func quorumProposalKey(id uint64) []byte { return u64Key(quorumPrefix, id) }

func weightKey(marketID uint64, member [20]byte) []byte {
	key := u64Key(weightPrefix, marketID)
	key = append(key, '/')
	return append(key, member[:]...)
}

func weightTotalKey(marketID uint64) []byte { return u64Key(weightTotalPrefix, marketID) }

func govProposalKey(id uint64) []byte { return u64Key(govPrefix, id) }

func govVoteKey(proposalID uint64, voter [20]byte) []byte {
	key := u64Key(govVotePrefix, proposalID)
	key = append(key, '/')
	return append(key, voter[:]...)
}

func accountKey(addr []byte) []byte {
	return append([]byte(accountPrefix), addr...)
}

func bankSupplyKey(asset string) []byte {
	return append([]byte(bankSupplyPrefix), asset...)
}

func bankBalanceKey(asset string, holder [20]byte) []byte {
	key := make([]byte, 0, len(bankBalancePrefix)+len(asset)+1+20)
	key = append(key, bankBalancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	return append(key, holder[:]...)
}
