// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/mkptool/mkp/cmd/mkp"

func main() {
	cmd.Execute()
}
