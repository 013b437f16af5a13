// Copyright (C) 2022 Sneller, Inc.
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
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	updateLoadSources []string
	updateLoadGraph   string
)

var updateCmd = &cobra.Command{
	Use:   "update [flags] <update-text-or-@file>",
	Short: "run a SPARQL 1.1 Update request",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdate,
}

func init() {
	fs := updateCmd.Flags()
	fs.StringArrayVar(&updateLoadSources, "load", nil, "RDF document to load before running the update (repeatable)")
	fs.StringVar(&updateLoadGraph, "into", "", "graph IRI to load --load sources into (default graph if unset)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	text, err := readArg(args[0])
	if err != nil {
		return err
	}
	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := loadSources(e, updateLoadSources, updateLoadGraph); err != nil {
		return err
	}
	if err := e.Update(rootCtx, text); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}
