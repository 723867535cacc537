package domain

// Account holds a resident's commissary funds. Balance never goes
// negative; only the ledger engine mutates it.
type Account struct {
	ID         int64
	ResidentID int64
	Balance    Money
	IsDeleted  bool
}
