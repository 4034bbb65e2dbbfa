package models

// Wallet holds a player's spendable chips. Stakes are drawn from here into
// the house pool at game creation and payouts are credited back; it stands
// in for the native-value transfers of the payment boundary.
type Wallet struct {
	Player       string `json:"player" redis:"player"`
	Balance      int64  `json:"balance" redis:"balance"`
	TotalWagered int64  `json:"total_wagered" redis:"total_wagered"`
	TotalWon     int64  `json:"total_won" redis:"total_won"`

	// Nonce feeds the classic (v1) provably-fair seed chain and increments
	// once per game created.
	Nonce int64 `json:"nonce" redis:"nonce"`
}

type TransactionType string

const (
	TransactionTypeBet      TransactionType = "bet"
	TransactionTypeWin      TransactionType = "win"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeFee      TransactionType = "fee"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeDeposit  TransactionType = "deposit"
)

type Transaction struct {
	ID            string          `json:"id" redis:"id"`
	Player        string          `json:"player" redis:"player"`
	Type          TransactionType `json:"type" redis:"type"`
	Amount        int64           `json:"amount" redis:"amount"`
	BalanceBefore int64           `json:"balance_before" redis:"balance_before"`
	BalanceAfter  int64           `json:"balance_after" redis:"balance_after"`
	GameID        string          `json:"game_id,omitempty" redis:"game_id"`
	Description   string          `json:"description" redis:"description"`
	CreatedAt     int64           `json:"created_at" redis:"created_at"`
}
