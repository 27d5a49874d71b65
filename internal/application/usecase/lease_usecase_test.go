// internal/application/usecase/lease_usecase_test.go
package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candyhouse/internal/domain/minting"
	"candyhouse/internal/domain/whitelist"
)

// ------------------------------------------------------------
// in-memory whitelist.Repository fake
// ------------------------------------------------------------

type fakeWhitelistRepo struct {
	mu      sync.Mutex
	entries map[string]whitelist.Entry // keyed by ID

	casCalls int
}

var _ whitelist.Repository = (*fakeWhitelistRepo)(nil)

func newFakeWhitelistRepo(entries ...whitelist.Entry) *fakeWhitelistRepo {
	r := &fakeWhitelistRepo{entries: map[string]whitelist.Entry{}}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

func (r *fakeWhitelistRepo) FindByAddress(_ context.Context, address string) (whitelist.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if strings.EqualFold(e.Address, address) {
			return e, nil
		}
	}
	return whitelist.Entry{}, whitelist.ErrNotFound
}

func (r *fakeWhitelistRepo) CompareAndSetStatus(_ context.Context, id string, expected whitelist.Status, patch whitelist.StatusPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.casCalls++

	e, ok := r.entries[id]
	if !ok {
		return whitelist.ErrNotFound
	}
	if e.Status != expected {
		return whitelist.ErrStatusConflict
	}

	e.Status = patch.Status
	if patch.TxID != nil {
		e.TxID = *patch.TxID
	}
	if patch.MetadataKey != nil {
		e.MetadataKey = *patch.MetadataKey
	}
	e.UpdatedAt = time.Now()
	r.entries[id] = e
	return nil
}

func (r *fakeWhitelistRepo) get(t *testing.T, id string) whitelist.Entry {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	require.True(t, ok, "entry %s not found in fake repo", id)
	return e
}

const testAddress = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func notMintedEntry() whitelist.Entry {
	return whitelist.Entry{ID: "wl-1", Address: testAddress, Status: whitelist.StatusNotMinted}
}

// ------------------------------------------------------------
// FindLease
// ------------------------------------------------------------

func TestLeaseUsecase_FindLease(t *testing.T) {
	repo := newFakeWhitelistRepo(notMintedEntry())
	uc := NewLeaseUsecase(repo)

	entry, err := uc.FindLease(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, "wl-1", entry.ID)
	assert.Equal(t, whitelist.StatusNotMinted, entry.Status)
}

func TestLeaseUsecase_FindLease_NotRegistered(t *testing.T) {
	uc := NewLeaseUsecase(newFakeWhitelistRepo())

	_, err := uc.FindLease(context.Background(), testAddress)
	assert.ErrorIs(t, err, whitelist.ErrNotFound)
}

func TestLeaseUsecase_FindLease_EmptyAddress(t *testing.T) {
	uc := NewLeaseUsecase(newFakeWhitelistRepo(notMintedEntry()))

	_, err := uc.FindLease(context.Background(), "   ")
	assert.ErrorIs(t, err, whitelist.ErrInvalidAddress)
}

// ------------------------------------------------------------
// Acquire
// ------------------------------------------------------------

func TestLeaseUsecase_Acquire(t *testing.T) {
	repo := newFakeWhitelistRepo(notMintedEntry())
	uc := NewLeaseUsecase(repo)

	lease, err := uc.Acquire(context.Background(), notMintedEntry())
	require.NoError(t, err)
	assert.Equal(t, "wl-1", lease.EntryID)
	assert.Equal(t, testAddress, lease.Address)

	assert.Equal(t, whitelist.StatusMinting, repo.get(t, "wl-1").Status)
}

func TestLeaseUsecase_Acquire_AlreadyMinting(t *testing.T) {
	e := notMintedEntry()
	e.Status = whitelist.StatusMinting
	repo := newFakeWhitelistRepo(e)
	uc := NewLeaseUsecase(repo)

	_, err := uc.Acquire(context.Background(), e)
	assert.ErrorIs(t, err, whitelist.ErrAlreadyMinting)
	assert.Zero(t, repo.casCalls, "held lease must be rejected without a write")
}

func TestLeaseUsecase_Acquire_AlreadyMinted(t *testing.T) {
	e := notMintedEntry()
	e.Status = whitelist.StatusMinted
	repo := newFakeWhitelistRepo(e)
	uc := NewLeaseUsecase(repo)

	_, err := uc.Acquire(context.Background(), e)
	assert.ErrorIs(t, err, whitelist.ErrAlreadyMinted)
	assert.Zero(t, repo.casCalls)
}

// 読んだ時点では notMinted でも、CAS までの間に別プロセスが minting を
// 書いていたら競合として弾かれること。
func TestLeaseUsecase_Acquire_LostRace(t *testing.T) {
	stored := notMintedEntry()
	stored.Status = whitelist.StatusMinting
	repo := newFakeWhitelistRepo(stored)
	uc := NewLeaseUsecase(repo)

	_, err := uc.Acquire(context.Background(), notMintedEntry())
	assert.ErrorIs(t, err, whitelist.ErrAlreadyMinting)
	assert.Equal(t, whitelist.StatusMinting, repo.get(t, "wl-1").Status)
}

// ------------------------------------------------------------
// AttachSubmission
// ------------------------------------------------------------

func TestLeaseUsecase_AttachSubmission(t *testing.T) {
	repo := newFakeWhitelistRepo(notMintedEntry())
	uc := NewLeaseUsecase(repo)

	lease, err := uc.Acquire(context.Background(), notMintedEntry())
	require.NoError(t, err)

	require.NoError(t, uc.AttachSubmission(context.Background(), lease, "sig-123", "meta-456"))

	got := repo.get(t, "wl-1")
	assert.Equal(t, whitelist.StatusMinting, got.Status, "attach must not change the status")
	assert.Equal(t, "sig-123", got.TxID)
	assert.Equal(t, "meta-456", got.MetadataKey)
}

// ------------------------------------------------------------
// Commit
// ------------------------------------------------------------

func TestLeaseUsecase_Commit_Confirmed(t *testing.T) {
	repo := newFakeWhitelistRepo(notMintedEntry())
	uc := NewLeaseUsecase(repo)

	lease, err := uc.Acquire(context.Background(), notMintedEntry())
	require.NoError(t, err)
	lease.TxID = "sig-123"
	lease.MetadataKey = "meta-456"

	require.NoError(t, uc.Commit(context.Background(), lease, minting.Confirmed()))

	got := repo.get(t, "wl-1")
	assert.Equal(t, whitelist.StatusMinted, got.Status)
	assert.Equal(t, "sig-123", got.TxID)
	assert.Equal(t, "meta-456", got.MetadataKey)
}

func TestLeaseUsecase_Commit_RetryableFailureReleasesLease(t *testing.T) {
	repo := newFakeWhitelistRepo(notMintedEntry())
	uc := NewLeaseUsecase(repo)

	lease, err := uc.Acquire(context.Background(), notMintedEntry())
	require.NoError(t, err)

	tests := []struct {
		name string
		out  minting.Outcome
	}{
		{name: "sold out", out: minting.Failed(minting.ReasonSoldOut)},
		{name: "timed out", out: minting.TimedOut()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 前のサブテストで解放済みなら取り直す
			if repo.get(t, "wl-1").Status == whitelist.StatusNotMinted {
				lease, err = uc.Acquire(context.Background(), notMintedEntry())
				require.NoError(t, err)
			}

			require.NoError(t, uc.Commit(context.Background(), lease, tt.out))
			assert.Equal(t, whitelist.StatusNotMinted, repo.get(t, "wl-1").Status)
		})
	}
}

func TestLeaseUsecase_Commit_AmbiguousLeavesLeaseHeld(t *testing.T) {
	repo := newFakeWhitelistRepo(notMintedEntry())
	uc := NewLeaseUsecase(repo)

	lease, err := uc.Acquire(context.Background(), notMintedEntry())
	require.NoError(t, err)

	casBefore := repo.casCalls
	code := uint32(0x1770)
	require.NoError(t, uc.Commit(context.Background(), lease, minting.Ambiguous(&code)))

	assert.Equal(t, casBefore, repo.casCalls, "ambiguous outcomes must not touch the record store")
	assert.Equal(t, whitelist.StatusMinting, repo.get(t, "wl-1").Status)
}
