// Package approval хранит одноразовые коды подтверждения пропусков.
//
// Код выдаётся при сканировании пропуска, живёт ограниченное время и
// потребляется при успешном подтверждении. Новый код для того же пропуска
// замещает старый.
package approval

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// CodeDigits — длина кода подтверждения.
const CodeDigits = 4

var codeSpace = big.NewInt(10_000)

// Store — эфемерное хранилище кодов, ключом служит идентификатор пропуска.
type Store interface {
	// Put сохраняет код, замещая предыдущий, на время ttl.
	Put(ctx context.Context, passID, code string, ttl time.Duration) error
	// Match сообщает, совпадает ли code с действующим кодом пропуска.
	Match(ctx context.Context, passID, code string) (bool, error)
	// Delete удаляет код, только если он всё ещё равен code.
	Delete(ctx context.Context, passID, code string) error
	// Discard удаляет любой код пропуска.
	Discard(ctx context.Context, passID string) error
}

// Generate возвращает случайный код из CodeDigits цифр с ведущими нулями.
func Generate() (string, error) {
	const op = "approval.Generate"
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}
