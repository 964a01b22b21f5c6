// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !unix && !windows

package pipe

func createIPC(string, string) (*Pipe, error) {
	return nil, ErrPlatformUnsupported
}

func isPlatformClose(error) bool { return false }
