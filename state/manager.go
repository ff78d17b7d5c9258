package state

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"agora/core/types"
	"agora/native/governance"
	"agora/native/launch"
	"agora/native/quorum"
	"agora/storage"
)

var (
	// ErrTxnOpen is returned by Begin when a transaction is already open.
	ErrTxnOpen = errors.New("state: transaction already open")
	// ErrNoTxn is returned by Commit and Rollback without an open
	// transaction.
	ErrNoTxn = errors.New("state: no open transaction")
)

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Manager is the persistence layer shared by the launch, quorum, and
// governance engines. It satisfies each engine's state interface over a
// single key-value backend, encoding records with RLP.
//
// Writes can be staged in an explicit transaction: between Begin and Commit
// every Put and Delete lands in an in-memory buffer that reads observe, and
// Rollback discards the buffer. The RPC layer wraps each mutating operation
// in one so a mid-operation failure leaves no partial state behind.
type Manager struct {
	mu  sync.Mutex
	db  storage.Database
	txn map[string]pendingWrite
}

// NewManager wraps a database in a state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Begin opens a write transaction. Only one may be open at a time.
func (m *Manager) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txn != nil {
		return ErrTxnOpen
	}
	m.txn = make(map[string]pendingWrite)
	return nil
}

// Commit flushes the staged writes to the backend and closes the
// transaction.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txn == nil {
		return ErrNoTxn
	}
	for key, write := range m.txn {
		if write.deleted {
			if err := m.db.Delete([]byte(key)); err != nil {
				return err
			}
			continue
		}
		if err := m.db.Put([]byte(key), write.value); err != nil {
			return err
		}
	}
	m.txn = nil
	return nil
}

// Rollback discards the staged writes and closes the transaction.
func (m *Manager) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txn == nil {
		return ErrNoTxn
	}
	m.txn = nil
	return nil
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txn != nil {
		if write, ok := m.txn[string(key)]; ok {
			if write.deleted {
				return nil, false, nil
			}
			return append([]byte(nil), write.value...), true, nil
		}
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txn != nil {
		m.txn[string(key)] = pendingWrite{value: append([]byte(nil), value...)}
		return nil
	}
	return m.db.Put(key, value)
}

func (m *Manager) delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txn != nil {
		m.txn[string(key)] = pendingWrite{deleted: true}
		return nil
	}
	return m.db.Delete(key)
}

// iteratePrefix merges backend keys with staged writes so scans observe the
// open transaction.
func (m *Manager) iteratePrefix(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.Lock()
	txn := m.txn
	m.mu.Unlock()

	seen := make(map[string]struct{})
	err := m.db.IteratePrefix(prefix, func(key, value []byte) error {
		seen[string(key)] = struct{}{}
		if txn != nil {
			if write, ok := txn[string(key)]; ok {
				if write.deleted {
					return nil
				}
				return fn(key, write.value)
			}
		}
		return fn(key, value)
	})
	if err != nil {
		return err
	}
	if txn == nil {
		return nil
	}
	for key, write := range txn {
		if write.deleted {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if len(key) < len(prefix) || key[:len(prefix)] != string(prefix) {
			continue
		}
		if err := fn([]byte(key), write.value); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) nextSeq(key string) (uint64, error) {
	raw, ok, err := m.get([]byte(key))
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if ok && len(raw) == 8 {
		next = binary.BigEndian.Uint64(raw) + 1
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := m.put([]byte(key), buf); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) putUint64(key []byte, value uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, value)
	return m.put(key, buf)
}

func (m *Manager) getUint64(key []byte) (uint64, bool, error) {
	raw, ok, err := m.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, errors.New("state: malformed uint64 record")
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

// --- launch engine state ---

// LaunchNextMarketID allocates the next market identifier.
func (m *Manager) LaunchNextMarketID() (uint64, error) {
	return m.nextSeq(marketSeqKey)
}

// LaunchPutMarket persists a market record.
func (m *Manager) LaunchPutMarket(market *launch.Market) error {
	raw, err := rlp.EncodeToBytes(encodeMarket(market))
	if err != nil {
		return err
	}
	return m.put(marketKey(market.ID), raw)
}

// LaunchGetMarket loads a market record.
func (m *Manager) LaunchGetMarket(id uint64) (*launch.Market, bool, error) {
	raw, ok, err := m.get(marketKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var codec marketCodec
	if err := rlp.DecodeBytes(raw, &codec); err != nil {
		return nil, false, err
	}
	return codec.decode(), true, nil
}

// LaunchMarketIDs lists every market identifier in ascending order.
func (m *Manager) LaunchMarketIDs() ([]uint64, error) {
	var ids []uint64
	err := m.iteratePrefix([]byte(marketPrefix), func(key, value []byte) error {
		if len(key) != len(marketPrefix)+8 {
			return nil
		}
		ids = append(ids, binary.BigEndian.Uint64(key[len(marketPrefix):]))
		return nil
	})
	return ids, err
}

// LaunchPauseRequestGet loads a staged pause request.
func (m *Manager) LaunchPauseRequestGet(marketID uint64) (*launch.PauseRequest, bool, error) {
	raw, ok, err := m.get(pauseKey(marketID))
	if err != nil || !ok {
		return nil, false, err
	}
	var codec pauseCodec
	if err := rlp.DecodeBytes(raw, &codec); err != nil {
		return nil, false, err
	}
	return codec.decode(), true, nil
}

// LaunchPauseRequestPut stages a pause request.
func (m *Manager) LaunchPauseRequestPut(req *launch.PauseRequest) error {
	raw, err := rlp.EncodeToBytes(encodePause(req))
	if err != nil {
		return err
	}
	return m.put(pauseKey(req.MarketID), raw)
}

// LaunchPauseRequestDelete clears a staged pause request.
func (m *Manager) LaunchPauseRequestDelete(marketID uint64) error {
	return m.delete(pauseKey(marketID))
}

// GetAccount loads the native value account for an address; a missing
// account yields nil without error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	raw, ok, err := m.get(accountKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	var account types.Account
	if err := rlp.DecodeBytes(raw, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// PutAccount persists the native value account for an address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	raw, err := rlp.EncodeToBytes(types.EnsureAccount(account))
	if err != nil {
		return err
	}
	return m.put(accountKey(addr), raw)
}

// --- quorum engine state ---

// QuorumNextProposalID allocates the next formation proposal identifier.
func (m *Manager) QuorumNextProposalID() (uint64, error) {
	return m.nextSeq(quorumSeqKey)
}

// QuorumPutProposal persists a formation proposal.
func (m *Manager) QuorumPutProposal(p *quorum.Proposal) error {
	raw, err := rlp.EncodeToBytes(encodeQuorumProposal(p))
	if err != nil {
		return err
	}
	return m.put(quorumProposalKey(p.ID), raw)
}

// QuorumGetProposal loads a formation proposal.
func (m *Manager) QuorumGetProposal(id uint64) (*quorum.Proposal, bool, error) {
	raw, ok, err := m.get(quorumProposalKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var codec quorumProposalCodec
	if err := rlp.DecodeBytes(raw, &codec); err != nil {
		return nil, false, err
	}
	return codec.decode(), true, nil
}

// QuorumWeightGet loads a member's snapshot voting weight.
func (m *Manager) QuorumWeightGet(marketID uint64, member [20]byte) (uint64, bool, error) {
	return m.getUint64(weightKey(marketID, member))
}

// QuorumWeightPut writes a member's snapshot voting weight.
func (m *Manager) QuorumWeightPut(marketID uint64, member [20]byte, weight uint64) error {
	return m.putUint64(weightKey(marketID, member), weight)
}

// QuorumWeightDelete clears a member's snapshot voting weight.
func (m *Manager) QuorumWeightDelete(marketID uint64, member [20]byte) error {
	return m.delete(weightKey(marketID, member))
}

// QuorumTotalWeightGet loads a market's total snapshot weight.
func (m *Manager) QuorumTotalWeightGet(marketID uint64) (uint64, bool, error) {
	return m.getUint64(weightTotalKey(marketID))
}

// QuorumTotalWeightPut writes a market's total snapshot weight.
func (m *Manager) QuorumTotalWeightPut(marketID uint64, total uint64) error {
	return m.putUint64(weightTotalKey(marketID), total)
}

// --- governance engine state ---

// GovernanceNextProposalID allocates the next governance proposal identifier.
func (m *Manager) GovernanceNextProposalID() (uint64, error) {
	return m.nextSeq(govSeqKey)
}

// GovernancePutProposal persists a governance proposal.
func (m *Manager) GovernancePutProposal(p *governance.Proposal) error {
	raw, err := rlp.EncodeToBytes(encodeGovProposal(p))
	if err != nil {
		return err
	}
	return m.put(govProposalKey(p.ID), raw)
}

// GovernanceGetProposal loads a governance proposal.
func (m *Manager) GovernanceGetProposal(id uint64) (*governance.Proposal, bool, error) {
	raw, ok, err := m.get(govProposalKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var codec govProposalCodec
	if err := rlp.DecodeBytes(raw, &codec); err != nil {
		return nil, false, err
	}
	return codec.decode(), true, nil
}

// GovernanceGetVote loads a member's recorded ballot.
func (m *Manager) GovernanceGetVote(id uint64, voter [20]byte) (*governance.Vote, bool, error) {
	raw, ok, err := m.get(govVoteKey(id, voter))
	if err != nil || !ok {
		return nil, false, err
	}
	var codec voteCodec
	if err := rlp.DecodeBytes(raw, &codec); err != nil {
		return nil, false, err
	}
	return codec.decode(), true, nil
}

// GovernancePutVote persists a member's ballot.
func (m *Manager) GovernancePutVote(v *governance.Vote) error {
	raw, err := rlp.EncodeToBytes(encodeVote(v))
	if err != nil {
		return err
	}
	return m.put(govVoteKey(v.ProposalID, v.Voter), raw)
}
