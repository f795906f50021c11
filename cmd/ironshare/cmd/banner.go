package cmd

import (
	"fmt"
	"io"
)

const banner = `
  _                     _
 (_)_ __ ___  _ __  ___| |__   __ _ _ __ ___
 | | '__/ _ \| '_ \/ __| '_ \ / _` + "`" + ` | '__/ _ \
 | | | | (_) | | | \__ \ | | | (_| | | |  __/
 |_|_|  \___/|_| |_|___/_| |_|\__,_|_|  \___|
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Time-limited secret sharing - Version %s\x1b[0m\n\n", Version)
}
