package email

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/dmitrymomot/billable/pkg/billing"
	"github.com/dmitrymomot/billable/pkg/email/templates"
)

const dateLayout = "January 2, 2006"

// Notifier turns billing notices into emails addressed to the owner.
type Notifier struct {
	sender  EmailSender
	lang    language.Tag
	product string
	support string
}

var _ billing.Notifier = (*Notifier)(nil)

// NewNotifier creates a Notifier. It panics if sender is nil.
func NewNotifier(sender EmailSender, cfg Config) *Notifier {
	if sender == nil {
		panic("email: sender is required")
	}
	tag, err := language.Parse(cfg.Language)
	if err != nil {
		tag = language.English
	}
	return &Notifier{
		sender:  sender,
		lang:    tag,
		product: cfg.ProductName,
		support: cfg.SupportEmail,
	}
}

// NewSender picks Postmark when both tokens are set, DevSender when DevDir
// is set, and nil otherwise.
func NewSender(cfg Config) (EmailSender, error) {
	switch {
	case cfg.PostmarkEnabled():
		return NewPostmarkClient(cfg)
	case cfg.DevDir != "":
		return NewDevSender(cfg.DevDir), nil
	default:
		return nil, nil
	}
}

// Notify renders and sends n. Owners without an email address are skipped.
func (n *Notifier) Notify(ctx context.Context, notice billing.Notice) error {
	if notice.Owner.Email == "" {
		return nil
	}

	subject, view, err := n.compose(notice)
	if err != nil {
		return err
	}
	body, err := templates.Render(ctx, templates.Notice(view))
	if err != nil {
		return fmt.Errorf("%w: render: %v", ErrFailedToSendEmail, err)
	}

	return n.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   notice.Owner.Email,
		Subject:  subject,
		BodyHTML: body,
		Tag:      string(notice.Kind),
	})
}

func (n *Notifier) compose(notice billing.Notice) (string, templates.NoticeView, error) {
	plan := notice.PlanName
	if plan == "" {
		plan = notice.Plan
	}
	view := templates.NoticeView{Product: n.product, Support: n.support}

	var subject string
	switch notice.Kind {
	case billing.NoticeSubscriptionStarted:
		subject = fmt.Sprintf("Your %s subscription is active", plan)
		view.Heading = "Welcome aboard"
		view.Lines = append(view.Lines, fmt.Sprintf("You are now subscribed to %s.", plan))
		if notice.TrialEndsAt != nil {
			view.Lines = append(view.Lines, "Your free trial ends on "+formatDate(*notice.TrialEndsAt)+".")
		}
	case billing.NoticeCancellationScheduled:
		subject = fmt.Sprintf("Your %s subscription has been canceled", plan)
		view.Heading = "Subscription canceled"
		if notice.EndsAt != nil {
			view.Lines = append(view.Lines, "You keep access until "+formatDate(*notice.EndsAt)+".")
		}
		view.Lines = append(view.Lines, "You can resume at any time before then.")
	case billing.NoticeSubscriptionEnded:
		subject = fmt.Sprintf("Your %s subscription has ended", plan)
		view.Heading = "Subscription ended"
		view.Lines = append(view.Lines, fmt.Sprintf("Your access to %s has ended.", plan))
	case billing.NoticeChargeSucceeded:
		amount := FormatAmount(n.lang, notice.Amount, notice.Currency)
		subject = "Payment received: " + amount
		view.Heading = "Thanks for your payment"
		view.Lines = append(view.Lines, fmt.Sprintf("We charged %s to your card.", amount))
		if notice.ChargeID != "" {
			view.Lines = append(view.Lines, "Reference: "+notice.ChargeID)
		}
	default:
		return "", view, fmt.Errorf("%w: %q", ErrUnknownNotice, notice.Kind)
	}
	return subject, view, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
