package cmd

import (
	"fmt"
)

const banner = `
   _____          _                        _
  / ____|        | |                      | |
 | |     ___ _ __| |___      ____ _ _ __ _| |
 | |    / _ \ '__| __\ \ /\ / / _` + "`" + ` | '__/ _` + "`" + ` |
 | |___|  __/ |  | |_ \ V  V / (_| | | | (_| |
  \_____\___|_|   \__| \_/\_/ \__,_|_|  \__,_|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Instance Identity Service - Version %s\x1b[0m\n\n", Version)
}
