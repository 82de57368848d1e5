// Package classifier turns raw bank SMS text into a typed classification
// with a confidence score. It is a deterministic single pass over static
// keyword tables; identical input always yields an identical result.
package classifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// Type labels what kind of message an SMS is.
type Type string

const (
	TypeIncomingPayment Type = "incoming_payment"
	TypeOutgoingPayment Type = "outgoing_payment"
	TypeOtp             Type = "otp"
	TypeSpam            Type = "spam"
	TypeBalance         Type = "balance_notification"
	TypeOtherBank       Type = "other_bank_notification"
	TypeUnknown         Type = "unknown"
)

// Result is the outcome of classifying one SMS. Amount is zero when no
// parseable amount was found. ShouldProcess is true only for incoming
// payments that cleared the confidence threshold and carry a valid amount;
// everything else is stored but never dispatched.
type Result struct {
	Type          Type
	Confidence    float64
	BankCode      string
	BankName      string
	Amount        money.Amount
	Reference     string
	SenderName    string
	AccountMasked string
	TxTime        time.Time
	Reason        string
	ShouldProcess bool
}

// Classifier scores SMS bodies against the keyword tables. The threshold
// gates ShouldProcess, not the classification itself: low-confidence
// incoming payments still classify as incoming, they just do not produce
// payment events.
type Classifier struct {
	threshold float64
}

func New(threshold float64) *Classifier {
	return &Classifier{threshold: threshold}
}

// Classify runs the full decision ladder over one message. Steps are
// ordered by specificity: bank gate, OTP, spam, balance, then direction
// scoring as the catch-all for genuine transaction notifications.
func (c *Classifier) Classify(sender, body string, receivedAt time.Time) Result {
	res := Result{
		TxTime: receivedAt,
	}

	bank, ok := detectBank(sender + " " + body)
	if !ok {
		res.Type = TypeUnknown
		res.Confidence = 0.3
		res.Reason = "no known bank in sender or body"
		return res
	}
	res.BankCode = bank.Code
	res.BankName = bank.Name

	lowered := strings.ToLower(body)

	if containsAny(lowered, otpKeywords) {
		res.Type = TypeOtp
		res.Confidence = 0.95
		res.Reason = "otp keyword present"
		return res
	}

	if n := countMatches(lowered, spamKeywords); n >= 2 {
		res.Type = TypeSpam
		res.Confidence = 0.8 + 0.05*float64(n)
		if res.Confidence > 1.0 {
			res.Confidence = 1.0
		}
		res.Reason = fmt.Sprintf("%d promotional keywords", n)
		return res
	}

	incoming := directionScore(lowered, incomingKeywords)
	outgoing := directionScore(lowered, outgoingKeywords)

	if containsAny(lowered, balanceKeywords) && incoming == 0 && outgoing == 0 {
		res.Type = TypeBalance
		res.Confidence = 0.85
		res.Reason = "balance keyword with no transfer direction"
		return res
	}

	amount, amountFound := extractAmount(body)
	res.Amount = amount
	res.Reference = extractReference(body)
	res.SenderName = extractSenderName(body)
	res.AccountMasked = extractAccountMasked(body)
	res.TxTime = extractTxTime(body, receivedAt)

	switch {
	case incoming > outgoing:
		res.Type = TypeIncomingPayment
		res.Confidence = directionConfidence(incoming, outgoing, amount > 0)
		res.Reason = fmt.Sprintf("incoming score %.1f over outgoing %.1f", incoming, outgoing)
	case outgoing > incoming:
		res.Type = TypeOutgoingPayment
		res.Confidence = directionConfidence(outgoing, incoming, amount > 0)
		res.Reason = fmt.Sprintf("outgoing score %.1f over incoming %.1f", outgoing, incoming)
	default:
		res.Type = TypeOtherBank
		if amountFound {
			res.Confidence = 0.5
			res.Reason = "bank message with amount but ambiguous direction"
		} else {
			res.Confidence = 0.4
			res.Reason = "bank message without direction or amount"
		}
	}

	res.ShouldProcess = res.Type == TypeIncomingPayment &&
		res.Confidence >= c.threshold &&
		res.Amount > 0
	return res
}

// directionConfidence maps a score margin onto [0.6, 0.99]. The margin
// bonus saturates at 0.25 and a parseable amount adds a flat 0.1.
func directionConfidence(win, lose float64, hasAmount bool) float64 {
	margin := 0.05 * (win - lose)
	if margin > 0.25 {
		margin = 0.25
	}
	conf := 0.6 + margin
	if hasAmount {
		conf += 0.1
	}
	if conf > 0.99 {
		conf = 0.99
	}
	return conf
}
