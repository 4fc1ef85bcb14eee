package fragdecoder

import (
	"github.com/pkg/errors"
)

// errors
var (
	ErrInvalidParameters = errors.New("fragdecoder: invalid session parameters")
	ErrInvalidFragment   = errors.New("fragdecoder: invalid fragment")
	ErrStorage           = errors.New("fragdecoder: storage error")
)
