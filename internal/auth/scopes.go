package auth

// Known OAuth scopes used by the ledger API.
const (
	ScopeLedgerRead  = "ledger:read"
	ScopeLedgerWrite = "ledger:write"
)
