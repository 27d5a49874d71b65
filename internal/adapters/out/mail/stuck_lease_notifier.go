// internal/adapters/out/mail/stuck_lease_notifier.go
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	usecase "candyhouse/internal/application/usecase"
)

// StuckLeaseNotifier implements usecase.OperatorNotifier over SendGrid.
//
// AmbiguousFailure でリースが minting のまま残った場合、ユーザーには
// 「contact support」としか出ないため、オペレーター側へ対象アドレスと
// 署名を即時にメール通知し、手動リコンシリエーションを促します。
type StuckLeaseNotifier struct {
	Mailer *SendGridClient
	From   string
	To     string
}

// インターフェース実装チェック
var _ usecase.OperatorNotifier = (*StuckLeaseNotifier)(nil)

func NewStuckLeaseNotifier(mailer *SendGridClient, from, to string) *StuckLeaseNotifier {
	return &StuckLeaseNotifier{
		Mailer: mailer,
		From:   strings.TrimSpace(from),
		To:     strings.TrimSpace(to),
	}
}

func (n *StuckLeaseNotifier) NotifyStuckLease(ctx context.Context, address, txID string, rawCode *uint32) error {
	if n == nil || n.Mailer == nil {
		return errors.New("stuck lease notifier is not configured")
	}

	subject := "[candyhouse] stuck mint lease requires manual reconciliation"

	var b strings.Builder
	fmt.Fprintf(&b, "A mint attempt ended ambiguously and the lease was left at status=minting.\n\n")
	fmt.Fprintf(&b, "address : %s\n", address)
	if strings.TrimSpace(txID) != "" {
		fmt.Fprintf(&b, "txId    : %s\n", txID)
	} else {
		fmt.Fprintf(&b, "txId    : (none - failed before or during submission)\n")
	}
	if rawCode != nil {
		fmt.Fprintf(&b, "rawCode : 0x%x\n", *rawCode)
	}
	fmt.Fprintf(&b, "time    : %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Check the transaction on the explorer, then either mark the entry as minted (asset was issued) or reset it to notMinted (fee-only failure).\n")

	return n.Mailer.Send(ctx, n.From, n.To, subject, b.String())
}
