package sync

// TransactionUpserter writes canonical financial transactions.
type TransactionUpserter struct {
	baseUpserter
}

// EntityType returns the entity discriminator this upserter handles.
func (u *TransactionUpserter) EntityType() string {
	return EntityTransaction
}

// Upsert transforms a transaction payload and writes it through the mapping.
func (u *TransactionUpserter) Upsert(item *Item) (Result, error) {
	patch := parseTransactionPatch(item.Payload, item, u.now())

	tags := patch.Tags
	if tags == nil {
		tags = []string{}
	}

	data := map[string]any{
		"user":        item.UserID,
		"source":      item.Provider,
		"amount":      patch.Amount,
		"type":        patch.Type,
		"category":    patch.Category,
		"date":        patch.Date,
		"description": patch.Description,
		"tags":        tags,
	}
	return u.upsertMapped(item, u.schema.Transactions, EntityTransaction, data)
}
