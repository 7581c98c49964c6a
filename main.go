// SPDX-License-Identifier: AGPL-3.0-or-later
// dabmux - A software DAB ensemble multiplexer
// Copyright (C) 2026 The dabmux Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/digitalradio/dabmux/cmd"
	"github.com/digitalradio/dabmux/internal/config"
	"github.com/USA-RedDragon/configulator"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	c, err := configulator.New[config.Config]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create configulator: %v\n", err)
		os.Exit(1)
	}

	root := cmd.NewCommand(version, commit)
	root.SetContext(c.Context(context.Background()))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
