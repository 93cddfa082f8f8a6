//go:build !unix

package scheduler

import "errors"

func dupFD(fd int) (int, error) { return 0, errors.New("dup not supported on this platform") }
func closeFD(fd int) error      { return nil }
