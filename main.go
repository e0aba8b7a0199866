// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/leisureslots/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
