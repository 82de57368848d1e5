package classifier

import "strings"

// Bank is one entry of the static detection table. Aliases are matched
// case-insensitively as substrings of sender+body.
type Bank struct {
	Code    string
	Name    string
	Aliases []string
}

// thaiBanks covers the senders seen on Thai receiving accounts. Alias lists
// mix sender IDs, Thai names and app names because banks rotate between them.
var thaiBanks = []Bank{
	{Code: "kbank", Name: "Kasikorn Bank", Aliases: []string{"kbank", "kasikorn", "กสิกร", "kplus", "k plus", "k-plus"}},
	{Code: "scb", Name: "Siam Commercial Bank", Aliases: []string{"scb", "ไทยพาณิชย์", "siam commercial", "scb easy"}},
	{Code: "bbl", Name: "Bangkok Bank", Aliases: []string{"bbl", "bangkok bank", "ธ.กรุงเทพ", "ธนาคารกรุงเทพ", "bualuang", "บัวหลวง"}},
	{Code: "ktb", Name: "Krungthai Bank", Aliases: []string{"ktb", "krungthai", "krung thai", "กรุงไทย", "next by krungthai"}},
	{Code: "bay", Name: "Krungsri", Aliases: []string{"krungsri", "กรุงศรี", "ayudhya", "kma"}},
	{Code: "ttb", Name: "TMBThanachart Bank", Aliases: []string{"ttb", "tmb", "ทหารไทย", "thanachart", "ธนชาต"}},
	{Code: "gsb", Name: "Government Savings Bank", Aliases: []string{"gsb", "ออมสิน", "mymo"}},
	{Code: "baac", Name: "BAAC", Aliases: []string{"baac", "ธกส", "ธ.ก.ส"}},
	{Code: "uob", Name: "UOB Thailand", Aliases: []string{"uob", "ยูโอบี"}},
	{Code: "cimb", Name: "CIMB Thai", Aliases: []string{"cimb", "ซีไอเอ็มบี"}},
	{Code: "kkp", Name: "Kiatnakin Phatra Bank", Aliases: []string{"kkp", "เกียรตินาคิน"}},
	{Code: "lhb", Name: "LH Bank", Aliases: []string{"lh bank", "แลนด์ แอนด์ เฮ้าส์"}},
	{Code: "promptpay", Name: "PromptPay", Aliases: []string{"promptpay", "พร้อมเพย์"}},
}

// detectBank returns the first bank whose alias appears in the haystack.
// Table order is deterministic so repeated classification of the same SMS
// always names the same bank.
func detectBank(haystack string) (Bank, bool) {
	lowered := strings.ToLower(haystack)
	for _, bank := range thaiBanks {
		for _, alias := range bank.Aliases {
			if strings.Contains(lowered, alias) {
				return bank, true
			}
		}
	}
	return Bank{}, false
}
