package util

import (
	"fmt"
)

// SafeKeyOperation runs an evaluator operation against the buffer for one aggregation key, such that
// panics are recovered and nice error messages are constructed. The original error stays reachable
// through errors.Is and errors.As.
func SafeKeyOperation(opName string, key string, op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = fmt.Errorf("%s panic: %w\nKey: %s\n%s", opName, anErr, key, GetTrace())
			} else {
				err = fmt.Errorf("%s panic: %v\nKey: %s\n%s", opName, r, key, GetTrace())
			}
		} else if err != nil {
			err = fmt.Errorf("%s error for key %q: %w", opName, key, err)
		}
	}()
	err = op()
	return
}
