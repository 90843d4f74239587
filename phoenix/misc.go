package phoenix

import (
	"errors"
)

var ErrNoResultFound = errors.New("no result found")
