package ledger

import "fmt"

// Номер списания из счетчика: монотонно растет,
// пропуски при ретраях транзакций допустимы
func NextRedemptionID(count int64) string {
	return fmt.Sprintf("R%04d", count+1)
}
