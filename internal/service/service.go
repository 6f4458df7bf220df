// Package service wires the audit-chain core: the entry writer, the
// verification runner, the alert lifecycle and the compliance report
// generator. Each service is a thin orchestrator over the domain
// repositories; chain semantics live in internal/chain.
package service

import (
	"errors"

	apperrors "github.com/clarimed/auditchain/internal/errors"
)

func isTailConflict(err error) bool {
	return errors.Is(err, apperrors.ErrTailConflict)
}

func isEmptyChain(err error) bool {
	return errors.Is(err, apperrors.ErrEmptyChain)
}

func isRunNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrRunNotFound)
}
