package model

// GlobalScope is the bank scope of a rule that applies to every account.
const GlobalScope = "global"

// Rule assigns Category to records whose description contains Keyword.
type Rule struct {
	Keyword   string    `yaml:"keyword" json:"keyword"`
	Direction Direction `yaml:"direction" json:"direction"`
	BankScope string    `yaml:"bank_scope" json:"bankScope"`
	Category  string    `yaml:"category" json:"category"`
}

// AppliesTo reports whether the rule's scope covers accountID.
func (r Rule) AppliesTo(accountID string) bool {
	return r.BankScope == "" || r.BankScope == GlobalScope || r.BankScope == accountID
}
