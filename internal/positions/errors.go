package positions

import "errors"

var (
	ErrBelowMinimumTrade  = errors.New("positions: amount below minimum trade")
	ErrInsufficientMargin = errors.New("positions: insufficient margin")
	ErrInvalidLeverage    = errors.New("positions: invalid leverage")
	ErrInvalidSide        = errors.New("positions: invalid side")
)
