package trading

import "database/sql"

// LedgerSchema holds the wallet, holdings and transactions tables in ledger.db
const LedgerSchema = `
CREATE TABLE IF NOT EXISTS wallets (
    user_id TEXT PRIMARY KEY,
    cash_balance REAL NOT NULL,
    total_invested REAL NOT NULL DEFAULT 0,
    total_returns REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
    id INTEGER PRIMARY KEY,
    user_id TEXT NOT NULL,
    symbol TEXT NOT NULL,
    company_name TEXT,
    quantity INTEGER NOT NULL CHECK(quantity > 0),
    average_price REAL NOT NULL,
    total_cost REAL NOT NULL,
    current_price REAL NOT NULL DEFAULT 0,
    current_value REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    last_updated TEXT NOT NULL,
    UNIQUE(user_id, symbol)
);

CREATE TABLE IF NOT EXISTS transactions (
    id INTEGER PRIMARY KEY,
    reference TEXT UNIQUE NOT NULL,
    user_id TEXT NOT NULL,
    symbol TEXT,
    company_name TEXT,
    type TEXT NOT NULL CHECK(type IN ('BUY','SELL','DEPOSIT','WITHDRAWAL')),
    quantity INTEGER NOT NULL DEFAULT 0,
    price_per_share REAL NOT NULL DEFAULT 0,
    total_amount REAL NOT NULL,
    fees REAL NOT NULL DEFAULT 0,
    net_amount REAL NOT NULL,
    status TEXT NOT NULL,
    notes TEXT,
    transaction_date TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_holdings_user ON holdings(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, transaction_date);
CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(user_id, symbol);
`

// InitSchema ensures the trading tables exist in ledger.db
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(LedgerSchema)
	return err
}
