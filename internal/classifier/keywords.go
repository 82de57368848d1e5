package classifier

import (
	"strings"
	"unicode/utf8"
)

// Keyword tables are all matched case-insensitively as substrings of the
// message body. Thai entries stay in Thai script; banks never transliterate.

var otpKeywords = []string{
	"otp",
	"one-time password",
	"one time password",
	"verification code",
	"security code",
	"รหัสยืนยัน",
	"รหัสผ่านครั้งเดียว",
	"ห้ามบอกรหัส",
}

var spamKeywords = []string{
	"โปรโมชั่น",
	"ส่วนลด",
	"สมัครเลย",
	"สินเชื่อ",
	"กู้ด่วน",
	"ดอกเบี้ยพิเศษ",
	"ลุ้นรับ",
	"คลิก",
	"ผ่อน 0%",
	"promotion",
	"discount",
	"apply now",
	"special offer",
	"limited time",
	"cashback",
	"click",
}

var balanceKeywords = []string{
	"ยอดเงินคงเหลือ",
	"ยอดคงเหลือ",
	"เงินคงเหลือ",
	"ยอดเงินในบัญชี",
	"available balance",
	"balance inquiry",
}

var incomingKeywords = []string{
	"เงินเข้า",
	"โอนเข้า",
	"รับโอน",
	"รับเงิน",
	"ฝากเงิน",
	"เงินเข้าบัญชี",
	"received",
	"credited to",
	"deposit",
	"transfer in",
	"money in",
}

var outgoingKeywords = []string{
	"เงินออก",
	"โอนออก",
	"โอนไป",
	"ถอนเงิน",
	"หักบัญชี",
	"ชำระเงิน",
	"จ่ายเงิน",
	"withdrawn",
	"debited",
	"payment made",
	"transfer out",
	"purchase",
}

// containsAny reports whether any keyword from the table appears in body.
// body must already be lowercased.
func containsAny(body string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// countMatches returns how many distinct table entries appear in body.
func countMatches(body string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			n++
		}
	}
	return n
}

// directionScore sums the weight of every matched keyword. Longer keywords
// are stronger signals: a match contributes 1.0 plus 0.1 per rune, so
// "เงินเข้าบัญชี" outweighs a bare "deposit". Rune count, not byte count,
// keeps Thai and English keywords on the same scale.
func directionScore(body string, keywords []string) float64 {
	score := 0.0
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			score += 1.0 + 0.1*float64(utf8.RuneCountInString(kw))
		}
	}
	return score
}
