package mail

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/busbuskimki/tarotpay/internal/pkg/credits"
	"github.com/busbuskimki/tarotpay/internal/pkg/shopier"
)

// PaymentNotifier mails the admin about processed payments. It implements
// credits.Notifier; all failures are logged and swallowed.
type PaymentNotifier struct {
	adminEmail string
	log        *logrus.Logger
}

func NewPaymentNotifier(adminEmail string, log *logrus.Logger) *PaymentNotifier {
	return &PaymentNotifier{adminEmail: adminEmail, log: log}
}

func (p *PaymentNotifier) PaymentSucceeded(receipt *credits.Receipt, n *shopier.PaymentNotification) {
	subject := fmt.Sprintf("💳 Yeni Ödeme - %s (%d kredi)", receipt.PackageName, receipt.CreditsGranted)
	body := fmt.Sprintf(`<h2>Başarılı Kredi Satın Alma</h2>
<table>
<tr><td>Sipariş No:</td><td>%s</td></tr>
<tr><td>Paket:</td><td>%s</td></tr>
<tr><td>Tutar:</td><td>%.2f %s</td></tr>
<tr><td>Kredi:</td><td>+%d kredi</td></tr>
<tr><td>Yeni Bakiye:</td><td>%d kredi</td></tr>
<tr><td>Kullanıcı:</td><td>%s (%s)</td></tr>
<tr><td>Tarih:</td><td>%s</td></tr>
</table>`,
		receipt.OrderRef,
		receipt.PackageName,
		n.Amount, n.Currency,
		receipt.CreditsGranted,
		receipt.NewBalance,
		receipt.AccountName, receipt.AccountEmail,
		time.Now().Format("02.01.2006 15:04"),
	)

	if err := SendMail(p.adminEmail, subject, body); err != nil {
		p.log.WithError(err).WithField("order_ref", receipt.OrderRef).
			Warn("payment notification mail failed")
	}
}

func (p *PaymentNotifier) PaymentFailed(n *shopier.PaymentNotification) {
	statusText := shopier.StatusText(n.RawStatus)
	subject := fmt.Sprintf("⚠️ Ödeme Bildirimi - %s (%.2f %s)", statusText, n.Amount, n.Currency)
	body := fmt.Sprintf(`<h2>Ödeme Durumu: %s</h2>
<table>
<tr><td>Sipariş No:</td><td>%s</td></tr>
<tr><td>Tutar:</td><td>%.2f %s</td></tr>
<tr><td>Durum:</td><td>%s</td></tr>
<tr><td>Tarih:</td><td>%s</td></tr>
</table>
<p>Kullanıcının kredi bakiyesi güncellenmemiştir.</p>`,
		statusText,
		n.OrderRef,
		n.Amount, n.Currency,
		statusText,
		time.Now().Format("02.01.2006 15:04"),
	)

	if err := SendMail(p.adminEmail, subject, body); err != nil {
		p.log.WithError(err).WithField("order_ref", n.OrderRef).
			Warn("payment failure notification mail failed")
	}
}
