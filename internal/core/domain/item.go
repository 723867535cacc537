package domain

// Item is a stocked commissary catalog entry, keyed by UPC.
type Item struct {
	ID             int64
	UPC            string
	Name           string
	UnitPrice      Money
	QuantityOnHand int
	Version        int // optimistic locking
}
