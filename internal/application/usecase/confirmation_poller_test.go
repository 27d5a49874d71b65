// internal/application/usecase/confirmation_poller_test.go
package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candyhouse/internal/domain/minting"
)

// scriptedStatusPort は呼び出しごとに用意した応答を順に返し、
// 使い切ったら最後の応答を繰り返します。
type scriptedStatusPort struct {
	mu      sync.Mutex
	script  []scriptedStatus
	calls   int
	lastReq string // 直近で要求された commitment
}

type scriptedStatus struct {
	st  SignatureStatus
	err error
}

var _ SignatureStatusPort = (*scriptedStatusPort)(nil)

func (p *scriptedStatusPort) GetSignatureStatus(_ context.Context, _ string, commitment string) (SignatureStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastReq = commitment
	i := p.calls
	if i >= len(p.script) {
		i = len(p.script) - 1
	}
	p.calls++
	return p.script[i].st, p.script[i].err
}

func (p *scriptedStatusPort) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

const testShortInterval = time.Millisecond

func TestConfirmationPoller_ImmediateConfirmation(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: true, ConfirmationStatus: CommitmentConfirmed}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "sig-1", time.Second, false)

	assert.Equal(t, minting.OutcomeConfirmed, out.Kind)
	assert.Equal(t, 1, port.callCount())
	assert.Equal(t, CommitmentConfirmed, port.lastReq)
}

func TestConfirmationPoller_PendingThenConfirmed(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: false}},
		{st: SignatureStatus{Found: true, ConfirmationStatus: CommitmentProcessed}},
		{st: SignatureStatus{Found: true, ConfirmationStatus: CommitmentFinalized}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "sig-1", time.Second, false)

	assert.Equal(t, minting.OutcomeConfirmed, out.Kind)
	assert.Equal(t, 3, port.callCount(), "processed must not satisfy a confirmed requirement")
}

func TestConfirmationPoller_StrictRequiresFinalized(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: true, ConfirmationStatus: CommitmentConfirmed}},
		{st: SignatureStatus{Found: true, ConfirmationStatus: CommitmentFinalized}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "sig-1", time.Second, true)

	assert.Equal(t, minting.OutcomeConfirmed, out.Kind)
	assert.Equal(t, CommitmentFinalized, port.lastReq)
	assert.Equal(t, 2, port.callCount())
}

func TestConfirmationPoller_DefiniteFailureStopsPolling(t *testing.T) {
	code := uint32(0x137)
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: false}},
		{st: SignatureStatus{Found: true, Err: &minting.LedgerError{Custom: &code}}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "sig-1", time.Second, false)

	assert.Equal(t, minting.OutcomeFailed, out.Kind)
	assert.Equal(t, minting.ReasonSoldOut, out.Reason)
	assert.Equal(t, 2, port.callCount(), "definite failures must not be re-polled")
}

func TestConfirmationPoller_PendingUntilTimeout(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: false}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "sig-1", 20*time.Millisecond, false)

	assert.Equal(t, minting.OutcomeTimedOut, out.Kind)
	assert.True(t, out.Resettable)
	assert.GreaterOrEqual(t, port.callCount(), 2)
}

// 問い合わせ自体のエラー（ネットワーク等）は確定失敗ではなく pending 扱い。
func TestConfirmationPoller_TransportErrorIsPending(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{err: errors.New("connection reset")},
		{st: SignatureStatus{Found: true, ConfirmationStatus: CommitmentConfirmed}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "sig-1", time.Second, false)

	assert.Equal(t, minting.OutcomeConfirmed, out.Kind)
}

func TestConfirmationPoller_ContextCancelIsTimeout(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: false}},
	}}
	p := NewConfirmationPoller(port, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := p.Await(ctx, "sig-1", time.Second, false)
	assert.Equal(t, minting.OutcomeTimedOut, out.Kind)
}

func TestConfirmationPoller_EmptySignatureIsTimeout(t *testing.T) {
	port := &scriptedStatusPort{script: []scriptedStatus{
		{st: SignatureStatus{Found: false}},
	}}
	p := NewConfirmationPoller(port, testShortInterval)

	out := p.Await(context.Background(), "   ", time.Second, false)

	require.Equal(t, minting.OutcomeTimedOut, out.Kind)
	assert.Zero(t, port.callCount())
}
