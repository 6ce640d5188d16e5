package diagnostics

import "fmt"

// safeCall converts a panic raised by a client or surface call into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}

func safeBool(fn func() (bool, error)) (v bool, err error) {
	err = safeCall(func() error {
		var ierr error
		v, ierr = fn()
		return ierr
	})
	return v, err
}

func safeString(fn func() (string, error)) (v string, err error) {
	err = safeCall(func() error {
		var ierr error
		v, ierr = fn()
		return ierr
	})
	return v, err
}
