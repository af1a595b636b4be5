// SPDX-License-Identifier: MPL-2.0

package main

import cmd "mu-cli/cmd/mu"

func main() {
	cmd.Execute()
}
