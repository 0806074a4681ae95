//go:build windows

package interrupt

import "os"

// platformSignals: windows has no SIGHUP/SIGQUIT equivalent delivered
// through os/signal, so only SIGINT/SIGTERM are forwarded there.
func platformSignals() []os.Signal {
	return nil
}

func signalNumber(sig os.Signal) int {
	return 1
}
