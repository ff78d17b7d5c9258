package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"agora/core/types"
	"agora/native/governance"
	"agora/native/launch"
	"agora/native/quorum"
	"agora/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func sampleMarket(id uint64) *launch.Market {
	return &launch.Market{
		ID:          id,
		Asset:       "AURA",
		Members:     [][20]byte{addr(1), addr(2), addr(3)},
		Weights:     []uint64{40, 35, 25},
		TargetRaise: big.NewInt(10_000),
		Raised:      big.NewInt(1_234),
		UnitsSold:   big.NewInt(567),
		BasePrice:   big.NewInt(100),
		Slope:       big.NewInt(1),
		CurveSupply: big.NewInt(800_000),
		TotalSupply: big.NewInt(1_000_000),
		Graduated:   false,
		Active:      true,
		Thesis:      "ai analytics",
		Pool:        "",
		CreatedAt:   1_700_000_000,
	}
}

func TestMarketRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	market := sampleMarket(7)
	require.NoError(t, manager.LaunchPutMarket(market))

	loaded, ok, err := manager.LaunchGetMarket(7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, market, loaded)

	_, ok, err = manager.LaunchGetMarket(8)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMarketIDsAscendingAndExcludeSequence(t *testing.T) {
	manager := newTestManager(t)
	for _, id := range []uint64{3, 1, 2} {
		_, err := manager.LaunchNextMarketID()
		require.NoError(t, err)
		require.NoError(t, manager.LaunchPutMarket(sampleMarket(id)))
	}
	ids, err := manager.LaunchMarketIDs()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3}, ids)
}

func TestSequencesAreIndependent(t *testing.T) {
	manager := newTestManager(t)
	first, err := manager.LaunchNextMarketID()
	require.NoError(t, err)
	second, err := manager.LaunchNextMarketID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(2), second)

	quorumID, err := manager.QuorumNextProposalID()
	require.NoError(t, err)
	govID, err := manager.GovernanceNextProposalID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), quorumID)
	require.Equal(t, uint64(1), govID)
}

func TestPauseRequestLifecycle(t *testing.T) {
	manager := newTestManager(t)
	req := &launch.PauseRequest{MarketID: 4, RequestedAt: 1_700_000_000, ExecuteAfter: 1_700_086_400}
	require.NoError(t, manager.LaunchPauseRequestPut(req))

	loaded, ok, err := manager.LaunchPauseRequestGet(4)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, req, loaded)

	require.NoError(t, manager.LaunchPauseRequestDelete(4))
	_, ok, err = manager.LaunchPauseRequestGet(4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	key := addr(1)
	missing, err := manager.GetAccount(key[:])
	require.NoError(t, err)
	require.Nil(t, missing)

	account := &types.Account{Balance: big.NewInt(42), Nonce: 3}
	require.NoError(t, manager.PutAccount(key[:], account))
	loaded, err := manager.GetAccount(key[:])
	require.NoError(t, err)
	require.Equal(t, account, loaded)
}

func TestQuorumProposalRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	proposal := &quorum.Proposal{
		ID:       1,
		Proposer: addr(1),
		Members:  [][20]byte{addr(1), addr(2), addr(3)},
		Weights:  []uint64{40, 35, 25},
		Params: launch.MarketParams{
			Symbol:      "AURA",
			Name:        "Aura Analytics",
			TotalSupply: big.NewInt(1_000_000),
			BasePrice:   big.NewInt(100),
			Slope:       big.NewInt(1),
			TargetRaise: big.NewInt(10_000),
			Thesis:      "ai analytics",
		},
		Approvals: [][20]byte{addr(1)},
		Deadline:  1_700_604_800,
		CreatedAt: 1_700_000_000,
	}
	require.NoError(t, manager.QuorumPutProposal(proposal))
	loaded, ok, err := manager.QuorumGetProposal(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, proposal, loaded)
}

func TestWeightLedger(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.QuorumWeightPut(1, addr(1), 40))
	require.NoError(t, manager.QuorumTotalWeightPut(1, 100))

	weight, ok, err := manager.QuorumWeightGet(1, addr(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(40), weight)

	_, ok, err = manager.QuorumWeightGet(1, addr(9))
	require.NoError(t, err)
	require.False(t, ok)

	total, ok, err := manager.QuorumTotalWeightGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(100), total)

	require.NoError(t, manager.QuorumWeightDelete(1, addr(1)))
	_, ok, err = manager.QuorumWeightGet(1, addr(1))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGovernanceRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	proposal := &governance.Proposal{
		ID:            1,
		MarketID:      1,
		Proposer:      addr(1),
		Action:        governance.ActionAddMember,
		Target:        addr(9),
		Value:         big.NewInt(10),
		Description:   "add operator",
		ForWeight:     75,
		AgainstWeight: 25,
		VoteDeadline:  1_700_259_200,
		ExecuteBy:     1_700_864_000,
		Status:        governance.ProposalStatusActive,
		CreatedAt:     1_700_000_000,
	}
	require.NoError(t, manager.GovernancePutProposal(proposal))
	loaded, ok, err := manager.GovernanceGetProposal(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, proposal, loaded)

	vote := &governance.Vote{ProposalID: 1, Voter: addr(2), Support: true, Weight: 35, Timestamp: 1_700_000_100}
	require.NoError(t, manager.GovernancePutVote(vote))
	loadedVote, ok, err := manager.GovernanceGetVote(1, addr(2))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, vote, loadedVote)

	_, ok, err = manager.GovernanceGetVote(1, addr(3))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	require.NoError(t, manager.LaunchPutMarket(sampleMarket(1)))

	require.NoError(t, manager.Begin())
	require.NoError(t, manager.LaunchPutMarket(sampleMarket(2)))
	require.NoError(t, manager.LaunchPauseRequestDelete(1))

	// Staged writes are visible inside the transaction.
	_, ok, err := manager.LaunchGetMarket(2)
	require.NoError(t, err)
	require.True(t, ok)
	ids, err := manager.LaunchMarketIDs()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)

	require.NoError(t, manager.Rollback())
	_, ok, err = manager.LaunchGetMarket(2)
	require.NoError(t, err)
	require.False(t, ok)
	ids, err = manager.LaunchMarketIDs()
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, ids)
}

func TestTransactionCommitFlushes(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)

	require.NoError(t, manager.Begin())
	require.Error(t, manager.Begin())
	require.NoError(t, manager.LaunchPutMarket(sampleMarket(1)))
	require.NoError(t, manager.QuorumWeightPut(1, addr(1), 40))
	require.NoError(t, manager.Commit())

	// Reads through a fresh manager over the same backend see the writes.
	reopened := NewManager(db)
	_, ok, err := reopened.LaunchGetMarket(1)
	require.NoError(t, err)
	require.True(t, ok)
	weight, ok, err := reopened.QuorumWeightGet(1, addr(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(40), weight)

	require.ErrorIs(t, manager.Commit(), ErrNoTxn)
	require.ErrorIs(t, manager.Rollback(), ErrNoTxn)
}

func TestTransactionStagedDeleteHidesRecord(t *testing.T) {
	manager := newTestManager(t)
	require.NoError(t, manager.QuorumWeightPut(1, addr(1), 40))

	require.NoError(t, manager.Begin())
	require.NoError(t, manager.QuorumWeightDelete(1, addr(1)))
	_, ok, err := manager.QuorumWeightGet(1, addr(1))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.Commit())
	_, ok, err = manager.QuorumWeightGet(1, addr(1))
	require.NoError(t, err)
	require.False(t, ok)
}
