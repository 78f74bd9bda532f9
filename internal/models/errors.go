package ledger

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation error")
	ErrCustomerNotFound     = errors.New("customer not found")
	ErrInsufficientBalance  = errors.New("not enough points")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	// чтение после записи внутри транзакции запрещено
	ErrReadAfterWrite = errors.New("transaction read after staged write")
)
