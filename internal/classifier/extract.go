package classifier

import (
	"regexp"
	"strings"
	"time"

	"github.com/tanawath/sms-payment-gateway/internal/core/money"
)

// Amount extraction tries patterns in a fixed order and the first success
// wins. The keyword-anchored form is most reliable; the currency-word form
// catches bodies like "โอนเข้า 100.50 บาท" that skip the amount label.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:จำนวนเงิน|จำนวน|ยอดเงิน|ยอด|amount|amt)[\s:]*([0-9][0-9,]*(?:\.[0-9]+)?)`),
	regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:บาท|baht|thb|฿)`),
}

var (
	referencePattern = regexp.MustCompile(`(?i)(?:ref(?:erence)?\s*(?:no\.?)?|อ้างอิง|เลขที่รายการ|หมายเลขอ้างอิง)[.:#\s]*([A-Za-z0-9][A-Za-z0-9\-]{3,24})`)
	accountPattern   = regexp.MustCompile(`(?i)(?:บัญชี|a/c|acct|account)\s*(?:no\.?)?[\s:]*([xX*][xX*\-0-9]{2,14}[0-9]|[0-9]{3}-[0-9xX]-[0-9xX]{5}-[0-9])`)
	senderPattern    = regexp.MustCompile(`(?:จาก|from)[\s:]+([A-Za-zก-๙][A-Za-zก-๙0-9 .]{1,39})`)
	txTimePattern    = regexp.MustCompile(`([0-3]?[0-9])/([0-1]?[0-9])/([0-9]{2,4})[\s@]+([0-2]?[0-9]):([0-5][0-9])`)
)

// extractAmount runs the ordered amount patterns against the raw body and
// parses the first hit. A matched but unparseable number (zero, negative,
// more than two decimals) reports found=true with a zero amount so the
// caller can tell "no amount text" from "bad amount text".
func extractAmount(body string) (amt money.Amount, found bool) {
	for _, pattern := range amountPatterns {
		m := pattern.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		parsed, err := money.Parse(m[1])
		if err != nil {
			return 0, true
		}
		return parsed, true
	}
	return 0, false
}

func extractReference(body string) string {
	m := referencePattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

func extractAccountMasked(body string) string {
	m := accountPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func extractSenderName(body string) string {
	m := senderPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	// Cut trailing labels the loose capture may have swallowed.
	for _, stop := range []string{"จำนวน", "ยอด", "amount", "บาท", "ref"} {
		if idx := strings.Index(strings.ToLower(name), stop); idx > 0 {
			name = strings.TrimSpace(name[:idx])
		}
	}
	return name
}

// extractTxTime parses a dd/mm/yy hh:mm stamp. Thai bank SMS mixes
// Buddhist-era and Gregorian years, so a two-digit year resolves to
// whichever era lands closest to the receive year. The receive time
// supplies the location and a fallback when no usable stamp is present.
func extractTxTime(body string, receivedAt time.Time) time.Time {
	m := txTimePattern.FindStringSubmatch(body)
	if m == nil {
		return receivedAt
	}
	day := atoiSafe(m[1])
	month := atoiSafe(m[2])
	year := atoiSafe(m[3])
	hour := atoiSafe(m[4])
	minute := atoiSafe(m[5])
	switch {
	case year < 100:
		ce := 2000 + year
		be := 2500 + year - 543
		if absInt(ce-receivedAt.Year()) <= absInt(be-receivedAt.Year()) {
			year = ce
		} else {
			year = be
		}
	case year > 2400:
		year -= 543
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 {
		return receivedAt
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, receivedAt.Location())
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
